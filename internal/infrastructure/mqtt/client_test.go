package mqtt

import (
	"bytes"
	"errors"
	"testing"
)

func TestPublish_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 0, ErrInvalidTopic},
		{"invalid qos", "device/d1/data", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "device/d1/data", bytes.Repeat([]byte("a"), maxPayloadSize+1), 0, ErrPublishFailed},
		{"not connected", "device/d1/data", []byte("x"), 0, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(topic string, payload []byte) error { return nil }

	if err := c.Subscribe("", 0, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("device/+/data", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("invalid qos error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("device/+/data", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("device/+/data", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
	if c.HasSubscription("device/+/data") {
		t.Error("HasSubscription should be false for untracked topic")
	}

	c.subscriptions["device/+/data"] = subscription{topic: "device/+/data", qos: 1}

	if c.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", c.SubscriptionCount())
	}
	if !c.HasSubscription("device/+/data") {
		t.Error("HasSubscription should be true for tracked topic")
	}
}

func TestClose_NilClient(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero-value client error = %v", err)
	}
}
