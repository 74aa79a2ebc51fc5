// Package websocket streams finished ghost runs to the leaderboard server.
package websocket

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pitlane/kart/internal/geo"
	"github.com/pitlane/kart/internal/storage"
	"github.com/pitlane/kart/pkg/core"
	"github.com/pitlane/kart/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL       string
	Secret    string
	SessionID string
	Started   time.Time
	Players   int
	Logger    *slog.Logger
}

// Backend streams runs over WebSocket to the leaderboard server.
// It is write-only: lookups return storage.ErrNotSupported.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	return &Backend{
		conn: newConnection(cfg.Logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server and announces the session.
func (b *Backend) Init() error {
	if err := b.conn.dial(b.cfg.URL, b.cfg.Secret); err != nil {
		return err
	}

	data, err := streaming.NewEnvelope(streaming.TypeSessionStart, streaming.SessionStartPayload{
		SessionID: b.cfg.SessionID,
		Started:   b.cfg.Started,
		Players:   b.cfg.Players,
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", streaming.TypeSessionStart, err)
	}
	b.conn.setHello(data)
	return b.conn.sendAndWait(data, streaming.TypeSessionStart, ackTimeout)
}

// Close announces the end of the session and disconnects.
func (b *Backend) Close() error {
	err := b.sendEnvelopeAndWait(streaming.TypeSessionEnd, nil)
	b.conn.setHello(nil)
	return errors.Join(err, b.conn.close())
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (b *Backend) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return b.conn.sendAndWait(data, msgType, ackTimeout)
}

// SaveRun sends the run with its summary and waits for the server ack.
func (b *Backend) SaveRun(run *core.GhostRun) error {
	if err := storage.Validate(run); err != nil {
		return err
	}
	return b.sendEnvelopeAndWait(streaming.TypeGhostRun, streaming.GhostRunPayload{
		SessionID: b.cfg.SessionID,
		Run:       run,
		Summary:   geo.Summarize(run.Samples),
	})
}

func (b *Backend) LoadRun(id string) (*core.GhostRun, error) {
	return nil, fmt.Errorf("load run %s: %w", id, storage.ErrNotSupported)
}

func (b *Backend) BestRun(course string) (*core.GhostRun, error) {
	return nil, fmt.Errorf("best run on %q: %w", course, storage.ErrNotSupported)
}

// HTTPToWS converts the API base URL to the streaming endpoint.
// http://host/api -> ws://host/api/v1/stream
func HTTPToWS(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1/stream"
	return u.String(), nil
}
