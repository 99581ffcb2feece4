package api

import (
	"net/http"
	"net/url"
)

// ConfigHandler returns the effective configuration with credentials
// stripped from connection strings.
func (s *Server) ConfigHandler(w http.ResponseWriter, _ *http.Request) {
	if s.Config == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	cfg := *s.Config
	cfg.Store.DSN = redact(cfg.Store.DSN)
	cfg.Transport.URL = redact(cfg.Transport.URL)
	cfg.Server.AuthSecret = mask(cfg.Server.AuthSecret)
	cfg.Webhooks.Secret = mask(cfg.Webhooks.Secret)
	writeJSON(w, http.StatusOK, cfg)
}

func redact(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "redacted"
	}
	return u.Redacted()
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "redacted"
}
