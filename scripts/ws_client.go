// Package main tails the progress websocket of a running solver.
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"nurseroute/internal/auth"
	"nurseroute/internal/model"
)

type progressMessage struct {
	Type     string         `json:"type"`
	Progress model.Progress `json:"progress"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "status server host:port")
	secret := flag.String("secret", os.Getenv("NURSE_SERVER_AUTH_SECRET"), "sign a short-lived token with this secret")
	island := flag.Int("island", -1, "only show this island")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/v1/progress/ws"}
	hdr := http.Header{}
	if *secret != "" {
		tok, err := auth.Sign(*secret, "ws-client", time.Hour, time.Now())
		if err != nil {
			log.Error("sign token", "error", err)
			os.Exit(1)
		}
		hdr.Set("Authorization", "Bearer "+tok)
	}

	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Error("dial", "url", u.String(), "error", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				log.Info("stream closed", "reason", err)
				return
			}
			var m progressMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				log.Warn("bad message", "error", err)
				continue
			}
			p := m.Progress
			if *island >= 0 && p.Island != *island {
				continue
			}
			log.Info(m.Type, "island", p.Island, "generation", p.Generation, "best", p.Best, "mean", p.Mean, "feasible", p.Feasible, "restarts", p.Restarts)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	select {
	case <-done:
	case <-sig:
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}
}
