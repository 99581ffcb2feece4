package api

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 body. Type is a URN naming the failure so
// clients can branch on it without parsing Title.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

type problemKind struct {
	urn    string
	title  string
	status int
}

var (
	problemNoSolution   = problemKind{"urn:nurseroute:problem:no-solution", "No solution yet", http.StatusNotFound}
	problemStore        = problemKind{"urn:nurseroute:problem:store", "Solution store error", http.StatusInternalServerError}
	problemBadIsland    = problemKind{"urn:nurseroute:problem:bad-island", "Invalid island", http.StatusBadRequest}
	problemUnauthorized = problemKind{"urn:nurseroute:problem:unauthorized", "Unauthorized", http.StatusUnauthorized}
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, kind problemKind, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(kind.status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     kind.urn,
		Title:    kind.title,
		Status:   kind.status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}
