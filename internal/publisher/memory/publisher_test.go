package memory

import (
	"context"
	"testing"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "topic-a", map[string]string{"k": "v"})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "topic-b", "payload")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if string(msgs[0].Data) != `{"k":"v"}` || string(msgs[1].Data) != `"payload"` {
		t.Fatalf("payloads not encoded: %+v", msgs)
	}
	if got := pub.Topic("topic-b"); len(got) != 1 || got[0].ID != "memory-2" {
		t.Fatalf("unexpected topic filter result %+v", got)
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestPublisherRejectsUnencodable(t *testing.T) {
	t.Parallel()

	if _, err := New().Publish(context.Background(), "t", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
