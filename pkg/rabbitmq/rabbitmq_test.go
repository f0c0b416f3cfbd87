package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackCall struct {
	ack     bool
	requeue bool
}

type recordingAcknowledger struct {
	mu    sync.Mutex
	calls []ackCall
}

func (r *recordingAcknowledger) Ack(tag uint64, multiple bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ackCall{ack: true})
	return nil
}

func (r *recordingAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ackCall{requeue: requeue})
	return nil
}

func (r *recordingAcknowledger) Reject(tag uint64, requeue bool) error {
	return r.Nack(tag, false, requeue)
}

func (r *recordingAcknowledger) recorded() []ackCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ackCall(nil), r.calls...)
}

func newTestClient(retryDelay time.Duration) *Client {
	return &Client{
		queue:      DefaultQueue,
		retryDelay: retryDelay,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func removalDelivery(t *testing.T, acker amqp.Acknowledger) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(AssetRemoval{Ref: "http://store/book-covers/a.png", Kind: "image", Reason: "book_deleted"})
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: body}
}

func TestDispatch_AcksHandledMessage(t *testing.T) {
	c := newTestClient(time.Hour)
	acker := &recordingAcknowledger{}

	var got AssetRemoval
	c.dispatch(context.Background(), removalDelivery(t, acker), func(ctx context.Context, msg AssetRemoval) error {
		got = msg
		return nil
	})

	assert.Equal(t, "http://store/book-covers/a.png", got.Ref)
	assert.Equal(t, []ackCall{{ack: true}}, acker.recorded())
}

func TestDispatch_DropsMalformedMessage(t *testing.T) {
	c := newTestClient(time.Hour)
	acker := &recordingAcknowledger{}
	called := false

	c.dispatch(context.Background(), amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte("{not json")}, func(ctx context.Context, msg AssetRemoval) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.Equal(t, []ackCall{{requeue: false}}, acker.recorded())
}

func TestDispatch_WaitsBeforeRequeue(t *testing.T) {
	delay := 50 * time.Millisecond
	c := newTestClient(delay)
	acker := &recordingAcknowledger{}

	start := time.Now()
	c.dispatch(context.Background(), removalDelivery(t, acker), func(ctx context.Context, msg AssetRemoval) error {
		return errors.New("store unavailable")
	})

	assert.GreaterOrEqual(t, time.Since(start), delay)
	assert.Equal(t, []ackCall{{requeue: true}}, acker.recorded())
}

func TestDispatch_RequeuesAtOnceWhenStopping(t *testing.T) {
	c := newTestClient(time.Hour)
	acker := &recordingAcknowledger{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := removalDelivery(t, acker)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.dispatch(ctx, d, func(ctx context.Context, msg AssetRemoval) error {
			return errors.New("store unavailable")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not return after the context was cancelled")
	}
	assert.Equal(t, []ackCall{{requeue: true}}, acker.recorded())
}
