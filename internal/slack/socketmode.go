package slack

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
	"github.com/pkg/errors"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
)

const reconnectDelay = 3 * time.Second

// SocketMode receives Events API and interactivity payloads over Slack's
// Socket Mode WebSocket, acknowledges each envelope, and hands the payload to
// the handler synchronously. One envelope is fully processed before the next
// is read, so event handling stays strictly serial.
type SocketMode struct {
	client   *Client
	appToken string
	handler  Handler
	logger   internal.Logger
}

func NewSocketMode(client *Client, appToken string, handler Handler, logger internal.Logger) *SocketMode {
	return &SocketMode{client: client, appToken: appToken, handler: handler, logger: logger}
}

type socketEnvelope struct {
	Type       string          `json:"type"`
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

type eventsAPIPayload struct {
	Event json.RawMessage `json:"event"`
}

// Run connects and processes envelopes until ctx is cancelled, reconnecting
// whenever Slack drops or rotates the connection.
func (s *SocketMode) Run(ctx context.Context) error {
	for {
		err := s.connectOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warnf("socket mode: connection lost, reconnecting in %s: %v", reconnectDelay, err)

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *SocketMode) connectOnce(ctx context.Context) error {
	wssURL, err := s.client.ConnectionsOpen(ctx, s.appToken)
	if err != nil {
		return errors.Wrap(err, "failed to open socket mode connection")
	}

	conn, _, err := ws.Dial(ctx, wssURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to dial socket mode url")
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	// Slack's envelopes can exceed the library default read limit.
	conn.SetReadLimit(1 << 20)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return errors.Wrap(err, "socket read failed")
		}

		var envelope socketEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			s.logger.Errorf("socket mode: bad envelope: %v", err)
			continue
		}

		switch envelope.Type {
		case "hello":
			s.logger.Info("socket mode: connected")

		case "disconnect":
			return errors.Errorf("server requested disconnect: %s", envelope.Reason)

		case "events_api":
			s.ack(ctx, conn, envelope.EnvelopeID)

			var payload eventsAPIPayload
			if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
				s.logger.Errorf("socket mode: bad events payload: %v", err)
				continue
			}
			var event Event
			if err := json.Unmarshal(payload.Event, &event); err != nil {
				s.logger.Errorf("socket mode: bad inner event: %v", err)
				continue
			}
			s.handler.HandleEvent(ctx, event)

		case "interactive":
			s.ack(ctx, conn, envelope.EnvelopeID)

			var interaction Interaction
			if err := json.Unmarshal(envelope.Payload, &interaction); err != nil {
				s.logger.Errorf("socket mode: bad interactive payload: %v", err)
				continue
			}
			s.handler.HandleInteraction(ctx, interaction)

		default:
			s.logger.Debugf("socket mode: ignoring envelope type %q", envelope.Type)
		}
	}
}

func (s *SocketMode) ack(ctx context.Context, conn *ws.Conn, envelopeID string) {
	if envelopeID == "" {
		return
	}
	raw, err := json.Marshal(map[string]string{"envelope_id": envelopeID})
	if err != nil {
		return
	}
	if err := conn.Write(ctx, ws.MessageText, raw); err != nil {
		s.logger.Errorf("socket mode: failed to ack envelope %s: %v", envelopeID, err)
	}
}
