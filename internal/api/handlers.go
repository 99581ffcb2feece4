package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"nurseroute/internal/buildinfo"
	"nurseroute/internal/store"
)

func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"instance": s.Instance,
		"build":    buildinfo.Info(),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}

// BestHandler serves the best stored solution, for ?instance= or the
// instance being solved.
func (s *Server) BestHandler(w http.ResponseWriter, r *http.Request) {
	inst := r.URL.Query().Get("instance")
	if inst == "" {
		inst = s.Instance
	}
	sol, err := s.Store.BestSolution(r.Context(), inst)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, r, problemNoSolution, "no solution stored for instance "+inst)
		return
	}
	if err != nil {
		s.log.Error("load best solution", "instance", inst, "error", err)
		writeProblem(w, r, problemStore, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sol)
}

// ProgressHandler returns the latest summary per island, or the whole
// history of one island with ?island=N.
func (s *Server) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("island")
	if v == "" {
		writeJSON(w, http.StatusOK, map[string]any{"items": s.History.Latest()})
		return
	}
	island, err := strconv.Atoi(v)
	if err != nil || island < 0 {
		writeProblem(w, r, problemBadIsland, "island must be a non-negative integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"island": island, "items": s.History.Island(island)})
}

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsPingEvery = 20 * time.Second
	wsReadWait  = 60 * time.Second
	wsWriteWait = 5 * time.Second
)

// ProgressWSHandler streams progress messages. New clients first get the
// latest summary of every island.
func (s *Server) ProgressWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.hub.Subscribe()
	if ch == nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(wsWriteWait))
		return
	}
	defer s.hub.Unsubscribe(ch)

	// clients only ever send control frames; the read loop keeps pongs flowing
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))
		conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsReadWait)) })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, p := range s.History.Latest() {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(progressMessage{Type: "snapshot", Progress: p}); err != nil {
			return
		}
	}

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "run finished"), time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
