package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSocketModeProcessesEnvelopes runs a fake Socket Mode session: the fake
// Slack hands out a WebSocket URL, sends hello, one events_api envelope and a
// disconnect, and expects an ack for the envelope.
func TestSocketModeProcessesEnvelopes(t *testing.T) {
	acks := make(chan string, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/socket", func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.Close(ws.StatusNormalClosure, "")
		ctx := r.Context()

		require.NoError(t, conn.Write(ctx, ws.MessageText, []byte(`{"type": "hello"}`)))
		require.NoError(t, conn.Write(ctx, ws.MessageText,
			[]byte(`{"type": "events_api", "envelope_id": "env-1", "payload": {"event": {"type": "app_home_opened", "user": "U1"}}}`)))

		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var ack map[string]string
		require.NoError(t, json.Unmarshal(data, &ack))
		acks <- ack["envelope_id"]

		_ = conn.Write(ctx, ws.MessageText, []byte(`{"type": "disconnect", "reason": "test over"}`))
	})

	var srv *httptest.Server
	mux.HandleFunc("/apps.connections.open", func(w http.ResponseWriter, r *http.Request) {
		wsURL := strings.Replace(srv.URL, "http://", "ws://", 1) + "/socket"
		fmt.Fprintf(w, `{"ok": true, "url": %q}`, wsURL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.Client(), srv.URL, "xoxb-test")
	require.NoError(t, err)

	handler := &recordingHandler{}
	s := NewSocketMode(client, "xapp-test", handler, nopLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = s.connectOnce(ctx)
	require.Error(t, err) // the disconnect envelope ends the session
	assert.Contains(t, err.Error(), "test over")

	assert.Equal(t, "env-1", <-acks)
	require.Len(t, handler.events, 1)
	assert.Equal(t, "app_home_opened", handler.events[0].Type)
	assert.Equal(t, "U1", handler.events[0].User)
}
