package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListQuery(t *testing.T) {
	q, args := listQuery(0)
	assert.NotContains(t, q, "LIMIT")
	assert.Empty(t, args)

	q, args = listQuery(5)
	assert.True(t, strings.HasSuffix(q, "LIMIT $2"))
	assert.Equal(t, []any{5}, args)
}

func TestSolutionID(t *testing.T) {
	id, err := solutionID("")
	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", id.String())

	id, err = solutionID("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", id.String())

	_, err = solutionID("best-so-far")
	assert.Error(t, err)
}

func TestRoutesColumn(t *testing.T) {
	b, err := encodeRoutes(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	routes, err := decodeRoutes([]byte(`[[1,4],[],[2,3]]`))
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 4}, {}, {2, 3}}, routes)

	_, err = decodeRoutes(nil)
	assert.Error(t, err)
}
