package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nurseroute/internal/config"
	"nurseroute/internal/model"
	"nurseroute/internal/store"
)

type received struct {
	mu     sync.Mutex
	events []Event
	sigs   []string
	bodies [][]byte
}

func (r *received) handler(fail *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if fail != nil && fail.Add(-1) >= 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body, _ := io.ReadAll(req.Body)
		var e Event
		_ = json.Unmarshal(body, &e)
		r.mu.Lock()
		r.events = append(r.events, e)
		r.sigs = append(r.sigs, req.Header.Get(SignatureHeader))
		r.bodies = append(r.bodies, body)
		r.mu.Unlock()
	}
}

func newPublisher(urls []string, attempts int) *Publisher {
	return NewPublisher(config.Webhooks{
		URLs:        urls,
		Secret:      "hook-secret",
		MaxAttempts: attempts,
		Timeout:     time.Second,
		Backoff:     time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func runUntilDrained(t *testing.T, p *Publisher) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()
	p.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher did not drain")
	}
}

func TestNotifyingStoreSignsAndDelivers(t *testing.T) {
	var rec received
	srv := httptest.NewServer(rec.handler(nil))
	defer srv.Close()

	p := newPublisher([]string{srv.URL}, 1)
	st := NotifyingStore{Store: store.NewMemory(), Pub: p}
	saved, err := st.SaveSolution(context.Background(), model.Solution{Instance: "train_0", Fitness: 830, Feasible: true, Routes: [][]int{{1}}})
	require.NoError(t, err)
	runUntilDrained(t, p)

	require.Len(t, rec.events, 1)
	assert.Equal(t, EventImproved, rec.events[0].Type)
	assert.NotEmpty(t, rec.events[0].ID)
	data := rec.events[0].Data.(map[string]any)
	assert.Equal(t, saved.ID, data["id"])
	assert.Equal(t, 830.0, data["fitness"])
	require.NoError(t, Verify("hook-secret", rec.bodies[0], rec.sigs[0]))
	assert.Error(t, Verify("other", rec.bodies[0], rec.sigs[0]))
	assert.Error(t, Verify("hook-secret", rec.bodies[0], "md5=00"))

	best, err := st.BestSolution(context.Background(), "train_0")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, best.ID)
}

func TestDeliveryRetries(t *testing.T) {
	var rec received
	var fail atomic.Int32
	fail.Store(2)
	srv := httptest.NewServer(rec.handler(&fail))
	defer srv.Close()

	p := newPublisher([]string{srv.URL}, 3)
	require.NoError(t, p.Emit(EventImproved, map[string]int{"n": 1}))
	runUntilDrained(t, p)
	assert.Len(t, rec.events, 1)
}

func TestDeliveryGivesUp(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := newPublisher([]string{srv.URL}, 2)
	require.NoError(t, p.Emit(EventImproved, nil))
	runUntilDrained(t, p)
	assert.Equal(t, int32(2), hits.Load())
}

func TestEmitAfterCloseIsNoop(t *testing.T) {
	p := newPublisher([]string{"http://127.0.0.1:1/hook"}, 1)
	p.Close()
	p.Close()
	assert.NoError(t, p.Emit(EventImproved, nil))
	assert.Empty(t, p.queue)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(time.Second, -1))
	assert.Equal(t, 4*time.Second, nextBackoff(time.Second, 2))
	assert.Equal(t, time.Hour, nextBackoff(time.Minute, 10))
}
