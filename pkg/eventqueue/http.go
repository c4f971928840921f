package eventqueue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Path returns the long-poll path of a capability, relative to where
// Routes is mounted.
func Path(capID uuid.UUID) string {
	return "/" + capID.String() + "/eventqueue"
}

// Routes returns the HTTP handler serving every queue:
//
//	GET /{cap}/eventqueue?ack=N   long-poll, one JSON batch per response
//	GET /{cap}/eventqueue/ws      WebSocket stream of the same batches
func (m *Manager) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/{cap}/eventqueue", m.handlePoll)
	r.Get("/{cap}/eventqueue/ws", m.handleStream)
	return r
}

// queueFor resolves the {cap} URL parameter.
func (m *Manager) queueFor(r *http.Request) (*Queue, bool) {
	capID, err := uuid.Parse(chi.URLParam(r, "cap"))
	if err != nil {
		return nil, false
	}
	return m.Queue(capID)
}

func (m *Manager) handlePoll(w http.ResponseWriter, r *http.Request) {
	q, ok := m.queueFor(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ack := 0
	if s := r.URL.Query().Get("ack"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid ack", http.StatusBadRequest)
			return
		}
		ack = n
	}

	ctx, span := m.tracer.Start(r.Context(), "simwire.eventqueue.poll",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.Int("simwire.ack", ack)),
	)
	defer span.End()

	b, err := q.Poll(ctx, ack, m.cfg.PollTimeout)
	switch {
	case err == nil:
	case errors.Is(err, ErrSuperseded):
		b = Batch{ID: ack, Events: []Event{}}
	case errors.Is(err, ErrClosed):
		m.polls.WithLabelValues("closed").Inc()
		http.NotFound(w, r)
		return
	default:
		// Client went away or the server is shutting down.
		m.polls.WithLabelValues("canceled").Inc()
		span.SetStatus(codes.Error, err.Error())
		return
	}

	m.polls.WithLabelValues(pollResult(b, err)).Inc()
	span.SetAttributes(attribute.Int("simwire.batch_id", b.ID), attribute.Int("simwire.events", len(b.Events)))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(b); err != nil {
		m.logger.Debug("poll response failed", "error", err)
	}
}

func pollResult(b Batch, err error) string {
	switch {
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case len(b.Events) == 0:
		return "empty"
	default:
		return "events"
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleStream pushes batches over a WebSocket as soon as they fill. A
// batch counts as received once written, so the stream acks for itself.
func (m *Manager) handleStream(w http.ResponseWriter, r *http.Request) {
	q, ok := m.queueFor(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reads only detect the peer closing the stream.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ack := 0
	for {
		b, err := q.Poll(ctx, ack, m.cfg.PollTimeout)
		if err != nil {
			m.polls.WithLabelValues(streamEnd(err)).Inc()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, streamEnd(err))
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}

		if err := conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout)); err != nil {
			m.logger.Debug("stream write deadline failed", "error", err)
			return
		}
		if len(b.Events) == 0 {
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.logger.Debug("stream ping failed", "error", err)
				return
			}
			continue
		}
		if err := conn.WriteJSON(b); err != nil {
			m.logger.Debug("stream write failed", "error", err)
			return
		}
		m.polls.WithLabelValues("events").Inc()
		ack = b.ID
	}
}

func streamEnd(err error) string {
	switch {
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "canceled"
	}
}
