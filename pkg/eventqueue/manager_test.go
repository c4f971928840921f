package eventqueue

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/simwire/simwire/pkg/circuit"
	"github.com/simwire/simwire/pkg/server"
)

var _ server.EventQueue = (*Manager)(nil)

func newCircuit(t *testing.T, port uint16) *circuit.Circuit {
	t.Helper()
	c := circuit.New(circuit.Params{
		Addr:    netip.AddrPortFrom(netip.MustParseAddr("10.0.0.1"), port),
		AgentID: uuid.New(),
	}, circuit.Config{}, time.Now())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestManagerRegister(t *testing.T) {
	m := NewManager(Config{MaxEvents: 2})
	c := newCircuit(t, 1)

	if m.Attached(c) {
		t.Error("Attached() before Register = true")
	}
	if err := m.Enqueue(c, "EnableSimulator", nil); !errors.Is(err, ErrNoQueue) {
		t.Errorf("Enqueue() without queue error = %v, want ErrNoQueue", err)
	}

	capID := m.Register(c)
	if again := m.Register(c); again != capID {
		t.Errorf("Register() again = %v, want %v", again, capID)
	}
	if !m.Attached(c) || m.Len() != 1 {
		t.Errorf("Attached() = %v, Len() = %d, want true, 1", m.Attached(c), m.Len())
	}

	m.Enqueue(c, "a", nil)
	m.Enqueue(c, "b", nil)
	if err := m.Enqueue(c, "c", nil); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Enqueue() on full queue error = %v, want ErrQueueFull", err)
	}
	if got := testutil.ToFloat64(m.rejected); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}

	q, ok := m.Queue(capID)
	if !ok || q.Len() != 2 {
		t.Fatalf("Queue() = %v, %v, want queue with 2 events", q, ok)
	}

	m.Unregister(c)
	m.Unregister(c)
	if m.Attached(c) || m.Len() != 0 {
		t.Error("queue still registered after Unregister")
	}
	if _, ok := m.Queue(capID); ok {
		t.Error("capability still valid after Unregister")
	}
	if got := testutil.ToFloat64(m.queues); got != 0 {
		t.Errorf("queues gauge = %v, want 0", got)
	}
}

func TestHTTPPoll(t *testing.T) {
	m := NewManager(Config{PollTimeout: 50 * time.Millisecond})
	c := newCircuit(t, 1)
	capID := m.Register(c)
	srv := httptest.NewServer(m.Routes())
	defer srv.Close()

	m.Enqueue(c, "EnableSimulator", map[string]any{"SimulatorInfo": []map[string]any{{"IP": "127.0.0.1"}}})

	resp, err := http.Get(srv.URL + Path(capID))
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var b Batch
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if b.ID != 1 || len(b.Events) != 1 || b.Events[0].Message != "EnableSimulator" {
		t.Fatalf("batch = %+v, want id 1 with EnableSimulator", b)
	}
	info := b.Events[0].Body["SimulatorInfo"].([]any)[0].(map[string]any)
	if info["IP"] != "127.0.0.1" {
		t.Errorf("IP = %v, want 127.0.0.1", info["IP"])
	}

	// Acked and nothing pending: the poll times out with an empty batch.
	resp2, err := http.Get(srv.URL + Path(capID) + "?ack=1")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()
	if got := strings.TrimSpace(string(body)); got != `{"id":1,"events":[]}` {
		t.Errorf("empty poll body = %s, want {\"id\":1,\"events\":[]}", got)
	}
}

func TestHTTPPollErrors(t *testing.T) {
	m := NewManager(Config{PollTimeout: 50 * time.Millisecond})
	c := newCircuit(t, 1)
	capID := m.Register(c)
	srv := httptest.NewServer(m.Routes())
	defer srv.Close()

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown capability", Path(uuid.New()), http.StatusNotFound},
		{"malformed capability", "/not-a-uuid/eventqueue", http.StatusNotFound},
		{"bad ack", Path(capID) + "?ack=x", http.StatusBadRequest},
		{"negative ack", Path(capID) + "?ack=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	m.Unregister(c)
	resp, err := http.Get(srv.URL + Path(capID))
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status after Unregister = %d, want 404", resp.StatusCode)
	}
}

func TestWebSocketStream(t *testing.T) {
	m := NewManager(Config{PollTimeout: 50 * time.Millisecond})
	c := newCircuit(t, 1)
	capID := m.Register(c)
	srv := httptest.NewServer(m.Routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + Path(capID) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	m.Enqueue(c, "TeleportFinish", map[string]any{})
	m.Enqueue(c, "CrossedRegion", map[string]any{})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []string
	for len(got) < 2 {
		var b Batch
		if err := conn.ReadJSON(&b); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		got = append(got, names(b)...)
	}
	if got[0] != "TeleportFinish" || got[1] != "CrossedRegion" {
		t.Errorf("streamed = %v, want [TeleportFinish CrossedRegion]", got)
	}

	// Dropping the queue ends the stream with a close frame.
	m.Unregister(c)
	var b Batch
	err = conn.ReadJSON(&b)
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("ReadJSON() after Unregister error = %v, want normal close", err)
	}
}

func TestWebSocketStreamKeepalive(t *testing.T) {
	m := NewManager(Config{PollTimeout: 20 * time.Millisecond, WriteTimeout: time.Second})
	c := newCircuit(t, 1)
	capID := m.Register(c)
	srv := httptest.NewServer(m.Routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + Path(capID) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	pings := make(chan struct{}, 16)
	conn.SetPingHandler(func(string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return nil
	})
	batches := make(chan Batch, 1)
	go func() {
		for {
			var b Batch
			if err := conn.ReadJSON(&b); err != nil {
				close(batches)
				return
			}
			batches <- b
		}
	}()

	// Idle polls become pings; each write gets a fresh deadline, so the
	// stream keeps delivering after several of them.
	for i := 0; i < 3; i++ {
		select {
		case <-pings:
		case <-time.After(2 * time.Second):
			t.Fatalf("no ping %d on an idle stream", i+1)
		}
	}

	m.Enqueue(c, "TeleportFinish", map[string]any{})
	select {
	case b, ok := <-batches:
		if !ok {
			t.Fatal("stream ended before the event")
		}
		if got := names(b); len(got) != 1 || got[0] != "TeleportFinish" {
			t.Errorf("streamed = %v, want [TeleportFinish]", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not streamed after keepalives")
	}
}
