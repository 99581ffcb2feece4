package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	SignatureHeader = "X-Nurseroute-Signature"
	EventHeader     = "X-Nurseroute-Event"
)

// Run delivers queued events until Close has been called and the queue is
// empty, or until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-p.queue:
			if !ok {
				return
			}
			p.deliver(ctx, d)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, d delivery) {
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextBackoff(p.backoff, attempt-1)):
			}
		}
		start := time.Now()
		code, err := p.post(ctx, d)
		if err == nil && code >= 200 && code < 300 {
			p.log.Debug("delivered", "url", d.url, "event", d.event, "attempt", attempt+1, "latency", time.Since(start))
			return
		}
		p.log.Warn("delivery failed", "url", d.url, "event", d.event, "attempt", attempt+1, "status", code, "error", err)
	}
	p.log.Error("giving up on delivery", "url", d.url, "event", d.event, "attempts", p.maxAttempts)
}

func (p *Publisher) post(ctx context.Context, d delivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(d.body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, d.event)
	if p.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(p.secret, d.body))
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// nextBackoff doubles base per attempt, capped at an hour.
func nextBackoff(base time.Duration, attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	d := base * time.Duration(1<<attempts)
	if d > time.Hour {
		d = time.Hour
	}
	return d
}

// Sign returns the lowercase hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value ("sha256=<hex>") against body.
// Receivers use it to authenticate deliveries.
func Verify(secret string, body []byte, header string) error {
	hexSig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return fmt.Errorf("signature %q: missing sha256= prefix", header)
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	if !hmac.Equal(got, want) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
