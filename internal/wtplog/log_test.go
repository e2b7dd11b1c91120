package wtplog

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBufferWriteAndRecent(t *testing.T) {
	b := NewBuffer(4)
	line, _ := json.Marshal(map[string]interface{}{
		"level": "info", "message": "plant started", "seed": float64(42),
	})
	if _, err := b.Write(line); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	recent := b.Recent()
	if len(recent) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(recent))
	}
	if recent[0].Level != "info" || recent[0].Message != "plant started" {
		t.Fatalf("unexpected entry: %+v", recent[0])
	}
	if recent[0].Fields["seed"] != float64(42) {
		t.Fatalf("expected seed field preserved, got %+v", recent[0].Fields)
	}
}

func TestBufferWriteNonJSONFallsBackToRawMessage(t *testing.T) {
	b := NewBuffer(2)
	if _, err := b.Write([]byte("not json")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recent := b.Recent()
	if len(recent) != 1 || recent[0].Message != "not json" {
		t.Fatalf("expected raw fallback entry, got %+v", recent)
	}
}

func TestBufferWrapsAroundAtCapacity(t *testing.T) {
	b := NewBuffer(2)
	for i := 0; i < 3; i++ {
		line, _ := json.Marshal(map[string]interface{}{"message": string(rune('a' + i))})
		_, _ = b.Write(line)
	}
	recent := b.Recent()
	if len(recent) != 2 {
		t.Fatalf("expected ring buffer capped at 2 entries, got %d", len(recent))
	}
	// oldest entry ("a") should have been evicted; only "b" and "c" remain.
	if recent[0].Message == "a" {
		t.Fatalf("expected oldest entry evicted, got %+v", recent)
	}
}

func TestBufferSubscribeReceivesNewEntries(t *testing.T) {
	b := NewBuffer(4)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	line, _ := json.Marshal(map[string]interface{}{"message": "hello"})
	_, _ = b.Write(line)

	select {
	case e := <-ch:
		if e.Message != "hello" {
			t.Fatalf("unexpected subscribed entry: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribed entry")
	}
}

func TestBufferUnsubscribeClosesChannel(t *testing.T) {
	b := NewBuffer(4)
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestNewLoggerWritesToBuffer(t *testing.T) {
	l := New(Options{})
	l.Info("boot")
	l.Sync()

	recent := l.Buffer().Recent()
	if len(recent) == 0 {
		t.Fatal("expected at least one buffered log entry")
	}
}

func TestNamedLoggerSharesBuffer(t *testing.T) {
	l := New(Options{})
	child := l.Named("fieldbus")
	child.Info("listening")
	child.Sync()

	if child.Buffer() != l.Buffer() {
		t.Fatal("expected named child logger to share the parent ring buffer")
	}
}
