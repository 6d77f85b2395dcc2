package slack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Perth-Artifactory/Volunteer-Tokens/internal"
)

// signatureMaxSkew rejects replayed requests per Slack's signing guidance.
const signatureMaxSkew = 5 * time.Minute

// EventServer is the HTTP alternative to Socket Mode: Slack delivers Events
// API callbacks and interactivity payloads to signed endpoints. Selected with
// slack.mode=events.
type EventServer struct {
	srv     *http.Server
	handler Handler
	secret  string
	logger  internal.Logger
}

func NewEventServer(addr, signingSecret string, handler Handler, logger internal.Logger) *EventServer {
	gin.SetMode(gin.ReleaseMode)

	s := &EventServer{handler: handler, secret: signingSecret, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/slack/events", s.verifySignature, s.handleEvents)
	r.POST("/slack/interactive", s.verifySignature, s.handleInteractive)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Run serves until ctx is cancelled.
func (s *EventServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()
	s.logger.Infof("event server listening on %s", s.srv.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// verifySignature checks the v0 HMAC request signature and timestamp skew,
// then restores the body for the route handler.
func (s *EventServer) verifySignature(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	tsHeader := c.GetHeader("X-Slack-Request-Timestamp")
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	skew := time.Since(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > signatureMaxSkew {
		s.logger.Warnf("rejecting request with stale timestamp %s", tsHeader)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte("v0:" + tsHeader + ":"))
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(c.GetHeader("X-Slack-Signature"))) {
		s.logger.Warn("rejecting request with bad signature")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	c.Set("rawBody", body)
	c.Next()
}

type eventCallback struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

func (s *EventServer) handleEvents(c *gin.Context) {
	body := c.MustGet("rawBody").([]byte)

	var callback eventCallback
	if err := json.Unmarshal(body, &callback); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	switch callback.Type {
	case "url_verification":
		c.JSON(http.StatusOK, gin.H{"challenge": callback.Challenge})

	case "event_callback":
		// A retry means the original delivery was dispatched but the ack
		// arrived late; dispatching again would duplicate the fan-out.
		if c.GetHeader("X-Slack-Retry-Num") != "" {
			s.logger.Warnf("dropping retried event delivery (retry %s)", c.GetHeader("X-Slack-Retry-Num"))
			c.Header("X-Slack-No-Retry", "1")
			c.Status(http.StatusOK)
			return
		}

		// Flush the ack before dispatching: gin only sends the status when
		// the handler returns, and the fan-out can outlast Slack's deadline.
		c.Status(http.StatusOK)
		c.Writer.Flush()

		var event Event
		if err := json.Unmarshal(callback.Event, &event); err != nil {
			s.logger.Errorf("bad inner event: %v", err)
			return
		}
		s.handler.HandleEvent(c.Request.Context(), event)

	default:
		c.Status(http.StatusOK)
	}
}

func (s *EventServer) handleInteractive(c *gin.Context) {
	payload := c.PostForm("payload")
	if payload == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	var interaction Interaction
	if err := json.Unmarshal([]byte(payload), &interaction); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	// As with events, ack before the (potentially slow) dispatch.
	c.Status(http.StatusOK)
	c.Writer.Flush()
	s.handler.HandleInteraction(c.Request.Context(), interaction)
}
