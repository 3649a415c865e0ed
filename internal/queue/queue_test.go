package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := NewInMemory(4)
	if err := q.Publish(ctx, Message{Type: "attendance.marked", Body: []byte("rec-1")}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	select {
	case msg := <-msgs:
		if msg.Type != "attendance.marked" || string(msg.Body) != "rec-1" {
			t.Fatalf("got %q/%q", msg.Type, msg.Body)
		}
	case <-ctx.Done():
		t.Fatal("no message before timeout")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	cases := []Message{
		{Type: "attendance.marked", Body: []byte("rec-1")},
		{Type: "x", Body: []byte("body|with|pipes")},
		{Type: "", Body: nil},
	}
	for _, msg := range cases {
		got := deserialize(serialize(msg))
		if got.Type != msg.Type || string(got.Body) != string(msg.Body) {
			t.Errorf("round trip of %+v = %+v", msg, got)
		}
	}
}
