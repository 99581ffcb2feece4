package api

import (
	"net/http"

	"nurseroute/internal/auth"
)

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.verifier.Verify(auth.FromRequest(r))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="nurseroute"`)
			writeProblem(w, r, problemUnauthorized, err.Error())
			return
		}
		s.log.Debug("authorized", "subject", p.Subject, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
