package migration

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nurseroute/internal/model"
)

// Envelope is the wire form of a migrant. Routes are 1-indexed like every
// other persisted or printed solution; fitness is informational only since
// receivers re-evaluate.
type Envelope struct {
	Origin   string    `json:"origin"`
	Instance string    `json:"instance"`
	Island   int       `json:"island"`
	Fitness  float64   `json:"fitness"`
	Routes   [][]int   `json:"routes"`
	Sent     time.Time `json:"sent"`
}

var errEmptyEnvelope = errors.New("migrant envelope has no routes")

func Encode(e Envelope) ([]byte, error) { return json.Marshal(e) }

func Decode(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode migrant: %w", err)
	}
	if len(e.Routes) == 0 {
		return Envelope{}, errEmptyEnvelope
	}
	return e, nil
}

// Individual rebuilds an unevaluated individual from the envelope.
func (e Envelope) Individual() *model.Individual {
	return model.FromOneIndexed(e.Routes)
}
