//go:build redis_integration

package migration

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}
	r, err := NewRedis(url, "nurseroute.test."+t.Name())
	require.NoError(t, err)
	defer r.Close()

	ch, err := r.Subscribe(t.Context())
	require.NoError(t, err)
	require.NoError(t, r.Publish(t.Context(), []byte(`{"routes":[[1]]}`)))
	select {
	case got := <-ch:
		assert.JSONEq(t, `{"routes":[[1]]}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for migrant")
	}
}
