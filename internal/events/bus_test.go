package events

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBus_PublishMatchesPatterns(t *testing.T) {
	b := NewBus(zap.NewNop())
	var got []string
	b.Subscribe("tool.registered", "exact", func(_ context.Context, e Event) {
		got = append(got, "exact:"+e.Topic)
	})
	b.Subscribe("tool.*", "glob", func(_ context.Context, e Event) {
		got = append(got, "glob:"+e.Topic)
	})
	b.Subscribe("agent.*", "other", func(_ context.Context, e Event) {
		got = append(got, "other:"+e.Topic)
	})

	n := b.Publish(context.Background(), "tool.registered", "test", map[string]any{"k": "v"})
	if n != 2 {
		t.Fatalf("expected 2 handlers, got %d", n)
	}
	want := []string{"exact:tool.registered", "glob:tool.registered"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBus_EventFields(t *testing.T) {
	b := NewBus(nil)
	var seen Event
	b.Subscribe("x", "s", func(_ context.Context, e Event) { seen = e })
	b.Publish(context.Background(), "x", "src", map[string]any{"a": 1})

	if seen.Source != "src" || seen.Topic != "x" {
		t.Fatalf("unexpected event %+v", seen)
	}
	if seen.Data["a"] != 1 {
		t.Fatalf("unexpected data %v", seen.Data)
	}
	if seen.Timestamp.IsZero() {
		t.Fatal("expected timestamp")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus(nil)
	calls := 0
	id := b.Subscribe("x", "s", func(context.Context, Event) { calls++ })

	if !b.Unsubscribe(id) {
		t.Fatal("expected subscription to exist")
	}
	if b.Unsubscribe(id) {
		t.Fatal("second unsubscribe must return false")
	}
	if n := b.Publish(context.Background(), "x", "s", nil); n != 0 {
		t.Fatalf("expected no handlers, got %d", n)
	}
	if calls != 0 {
		t.Fatalf("handler called after unsubscribe")
	}
}

func TestBus_PanicIsRecovered(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	b := NewBus(zap.New(core))
	after := false
	b.Subscribe("x", "bad", func(context.Context, Event) { panic("boom") })
	b.Subscribe("x", "good", func(context.Context, Event) { after = true })

	if n := b.Publish(context.Background(), "x", "s", nil); n != 2 {
		t.Fatalf("expected 2 handlers, got %d", n)
	}
	if !after {
		t.Fatal("handler after a panic must still run")
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 error log, got %d", logs.Len())
	}
}

func TestBus_Subscribers(t *testing.T) {
	b := NewBus(nil)
	b.Subscribe("tool.*", "a", func(context.Context, Event) {})
	b.Subscribe("tool.canonicalized", "b", func(context.Context, Event) {})
	if n := b.Subscribers("tool.canonicalized"); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	if n := b.Subscribers("tool.registered"); n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
}
