package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()
	assert.NotEmpty(t, info["version"])
	assert.Equal(t, runtime.Version(), info["go"])
	assert.Contains(t, info, "commit")
	assert.Contains(t, info, "builtAt")
}
