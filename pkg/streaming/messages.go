// Package streaming defines the JSON envelopes exchanged with the
// leaderboard server over WebSocket.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/pitlane/kart/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeSessionStart = "session_start"
	TypeSessionEnd   = "session_end"
	TypeGhostRun     = "ghost_run"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SessionStartPayload identifies the simulation session runs belong to.
type SessionStartPayload struct {
	SessionID string    `json:"sessionId"`
	Started   time.Time `json:"started"`
	Players   int       `json:"players"`
}

// GhostRunPayload carries a finished run and its derived figures.
type GhostRunPayload struct {
	SessionID string          `json:"sessionId"`
	Run       *core.GhostRun  `json:"run"`
	Summary   core.RunSummary `json:"summary"`
}

// NewEnvelope builds a JSON-encoded Envelope from a message type and
// payload.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
