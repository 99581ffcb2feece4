package migration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nurseroute/internal/config"
	"nurseroute/internal/model"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestMemoryFanOut(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	a, err := m.Subscribe(ctx)
	require.NoError(t, err)
	b, err := m.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Publish(ctx, []byte("x")))
	for _, ch := range []<-chan []byte{a, b} {
		select {
		case got := <-ch:
			assert.Equal(t, "x", string(got))
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for payload")
		}
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-a:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Close())
	_, ok := <-b
	assert.False(t, ok)
	assert.ErrorIs(t, m.Publish(ctx, []byte("y")), ErrClosed)
	_, err = m.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryDropsForSlowSubscribers(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ch, err := m.Subscribe(context.Background())
	require.NoError(t, err)
	for range 100 {
		require.NoError(t, m.Publish(context.Background(), []byte("p")))
	}
	assert.Equal(t, cap(ch), len(ch))
}

func TestCodec(t *testing.T) {
	env := Envelope{Origin: "o", Instance: "train_0", Island: 3, Fitness: 12.5, Routes: [][]int{{2, 1}, {}, {3}}}
	b, err := Encode(env)
	require.NoError(t, err)
	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, env.Routes, got.Routes)
	ind := got.Individual()
	assert.Equal(t, []int{1, 0}, ind.Routes[0].Patients)
	assert.False(t, ind.Evaluated)

	_, err = Decode([]byte(`{"origin":"o"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`nope`))
	assert.Error(t, err)
}

func TestMigratorSkipsOwnIsland(t *testing.T) {
	tr := NewMemory()
	defer tr.Close()
	ctx := context.Background()
	m, err := NewMigrator(ctx, tr, "train_0", quiet())
	require.NoError(t, err)
	defer m.Close()

	x := model.FromOneIndexed([][]int{{1, 2}, {3}})
	got, err := m.Exchange(ctx, 0, x)
	require.NoError(t, err)
	assert.Nil(t, got)
	require.Eventually(t, func() bool { return m.Pending() == 1 }, time.Second, 5*time.Millisecond)

	got, err = m.Exchange(ctx, 0, x)
	require.NoError(t, err)
	assert.Nil(t, got, "an island never receives its own migrant")

	y := model.FromOneIndexed([][]int{{3}, {2, 1}})
	got, err = m.Exchange(ctx, 1, y)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.SameRoutes(x))
	assert.NotSame(t, x, got)
}

func TestMigratorAcrossProcesses(t *testing.T) {
	tr := NewMemory()
	defer tr.Close()
	ctx := context.Background()
	a, err := NewMigrator(ctx, tr, "train_0", quiet())
	require.NoError(t, err)
	defer a.Close()
	b, err := NewMigrator(ctx, tr, "train_0", quiet())
	require.NoError(t, err)
	defer b.Close()
	other, err := NewMigrator(ctx, tr, "train_9", quiet())
	require.NoError(t, err)
	defer other.Close()

	x := model.FromOneIndexed([][]int{{1}, {2, 3}})
	_, err = a.Exchange(ctx, 0, x)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.Pending() == 1 }, time.Second, 5*time.Millisecond)

	// same island number, different process
	got, err := b.Exchange(ctx, 0, model.FromOneIndexed([][]int{{3, 2, 1}, {}}))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.SameRoutes(x))

	assert.Zero(t, other.Pending(), "migrants for other instances are ignored")
}

func TestOpen(t *testing.T) {
	tr, err := Open(config.Transport{Kind: "slot"})
	require.NoError(t, err)
	assert.Nil(t, tr)

	tr, err = Open(config.Transport{Kind: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, tr)

	_, err = Open(config.Transport{Kind: "kafka"})
	assert.Error(t, err)
	_, err = Open(config.Transport{Kind: "redis", URL: "::not a url"})
	assert.Error(t, err)
}
