package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/andes-fintech/condor/internal/domain"
)

func TestChannelBusPublishSubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()

	received := make(chan *domain.Message, 1)
	_, err := b.Subscribe(ctx, "tenant-001", domain.TopicApplicationReceived, func(_ context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := b.Publish(ctx, "tenant-001", domain.TopicApplicationReceived, []byte(`{"id":"app-1"}`)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg.TenantID != "tenant-001" {
			t.Errorf("expected tenant-001, got %s", msg.TenantID)
		}
		if string(msg.Payload) != `{"id":"app-1"}` {
			t.Errorf("unexpected payload: %s", msg.Payload)
		}
		if msg.ID == "" {
			t.Error("message ID not assigned")
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestChannelBusTenantIsolation(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()

	var mu sync.Mutex
	var got []string
	b.Subscribe(ctx, "tenant-a", domain.TopicAlert, func(_ context.Context, msg *domain.Message) error {
		mu.Lock()
		got = append(got, msg.TenantID)
		mu.Unlock()
		return nil
	})

	b.Publish(ctx, "tenant-b", domain.TopicAlert, []byte("other tenant"))
	b.Publish(ctx, "tenant-a", domain.TopicAlert, []byte("mine"))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "tenant-a" {
		t.Errorf("expected only tenant-a messages, got %v", got)
	}
}

func TestChannelBusUnsubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	sub, err := b.Subscribe(ctx, "tenant-001", domain.TopicEvaluationCompleted, func(context.Context, *domain.Message) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if sub.Topic() != domain.TopicEvaluationCompleted {
		t.Errorf("unexpected topic: %s", sub.Topic())
	}

	b.Publish(ctx, "tenant-001", domain.TopicEvaluationCompleted, []byte("one"))
	time.Sleep(50 * time.Millisecond)

	sub.Unsubscribe()
	time.Sleep(10 * time.Millisecond)

	b.Publish(ctx, "tenant-001", domain.TopicEvaluationCompleted, []byte("two"))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestChannelBusClose(t *testing.T) {
	b := NewChannelBus(10)

	ctx := context.Background()
	if err := b.Ping(ctx); err != nil {
		t.Errorf("Ping failed before close: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := b.Ping(ctx); err == nil {
		t.Error("expected Ping to fail after close")
	}
	if err := b.Publish(ctx, "tenant-001", domain.TopicAlert, []byte("late")); err == nil {
		t.Error("expected Publish to fail after close")
	}
	if _, err := b.Subscribe(ctx, "tenant-001", domain.TopicAlert, nil); err == nil {
		t.Error("expected Subscribe to fail after close")
	}
}

func TestChannelBusRequiresTenantID(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()
	if err := b.Publish(ctx, "", domain.TopicAlert, nil); err == nil {
		t.Error("expected error for empty tenantID")
	}
	if _, err := b.Subscribe(ctx, "", domain.TopicAlert, nil); err == nil {
		t.Error("expected error for empty tenantID")
	}
}

func TestNewBusFromConfig(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 10})
	if err != nil {
		t.Fatalf("failed to create channel bus: %v", err)
	}
	b.Close()

	if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
		t.Error("expected error for unsupported bus type")
	}
}
