package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
)

func TestHub_DeliversPublishedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeWS(w, r, "user-1"); err != nil {
			t.Errorf("ServeWS returned error: %v", err)
		}
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Connected() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sent := Event{ID: "evt-1", Type: TypeBookingCreated, RoomID: "room-1", BookingID: "booking-1", Status: "approved"}
	if err := hub.Publish(ctx, sent); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.ID != sent.ID || got.Type != TypeBookingCreated || got.BookingID != "booking-1" {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestHub_PublishAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	for i := 0; i < cap(hub.broadcast)+1; i++ {
		if err := hub.Publish(context.Background(), Event{Type: TypeRoomChanged}); err != nil {
			if !errors.Is(err, ErrHubClosed) {
				t.Fatalf("expected ErrHubClosed, got %v", err)
			}
			return
		}
	}
	t.Fatal("expected publishing to a stopped hub to fail once the buffer is full")
}

func TestClient_RoomSubscriptions(t *testing.T) {
	c := newClient(nil, nil, "user-1")
	if !c.wants("room-1") {
		t.Fatal("client without subscriptions should receive every room")
	}

	c.apply(ControlMessage{Action: "subscribe", RoomID: "room-2"})
	if c.wants("room-1") || !c.wants("room-2") {
		t.Fatal("subscription filter not applied")
	}
	if !c.wants("") {
		t.Fatal("events without a room should reach every subscriber")
	}

	c.apply(ControlMessage{Action: "unsubscribe", RoomID: "room-2"})
	if !c.wants("room-1") {
		t.Fatal("removing the last subscription should restore the full stream")
	}
}

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	writer := &recordingWriter{}
	p := &KafkaPublisher{writer: writer}

	ev := Event{ID: "evt-1", Type: TypeBookingStatusChanged, RoomID: "room-7", Status: "rejected"}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(writer.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.msgs))
	}
	msg := writer.msgs[0]
	if string(msg.Key) != "room-7" {
		t.Fatalf("expected room key, got %q", msg.Key)
	}
	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil || decoded.Status != "rejected" {
		t.Fatalf("unexpected payload %s (%v)", msg.Value, err)
	}

	writer.err = errors.New("broker down")
	if err := p.Publish(context.Background(), ev); err == nil {
		t.Fatal("expected write error to propagate")
	}
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "bookings"); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewKafkaPublisher([]string{"localhost:9092"}, ""); err == nil {
		t.Fatal("expected error without topic")
	}
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func TestFanout_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	err := Fanout{failingPublisher{}, nil, failingPublisher{err: boom}}.Publish(context.Background(), Event{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
}
