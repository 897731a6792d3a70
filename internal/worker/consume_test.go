package worker

import (
	"context"
	"errors"
	"testing"

	"subtrack/internal/amqp"
)

type fakeEventSource struct {
	consumeErrs []error
	consumes    int
	reconnects  int

	reconnectErr error
	onConsume    func(call int)
}

func (f *fakeEventSource) ConsumeSubscriptionEvents(ctx context.Context, handler func(*amqp.SubscriptionEventMessage) error) error {
	f.consumes++
	if f.onConsume != nil {
		f.onConsume(f.consumes)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(f.consumeErrs) > 0 {
		err := f.consumeErrs[0]
		f.consumeErrs = f.consumeErrs[1:]
		return err
	}
	return errors.New("message channel closed")
}

func (f *fakeEventSource) Reconnect(ctx context.Context) error {
	f.reconnects++
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return f.reconnectErr
}

func TestConsumeWithRecoveryResumesAfterDrop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeEventSource{
		consumeErrs: []error{errors.New("message channel closed")},
		// Second consume stands for the resumed loop; stop the test there.
		onConsume: func(call int) {
			if call == 2 {
				cancel()
			}
		},
	}

	err := ConsumeWithRecovery(ctx, src, func(*amqp.SubscriptionEventMessage) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ConsumeWithRecovery() = %v, want context.Canceled", err)
	}
	if src.reconnects != 1 {
		t.Errorf("reconnects = %d, want 1", src.reconnects)
	}
	if src.consumes != 2 {
		t.Errorf("consumes = %d, want 2: the loop must resume after a drop", src.consumes)
	}
}

func TestConsumeWithRecoveryStopsWhenReconnectFails(t *testing.T) {
	src := &fakeEventSource{
		consumeErrs:  []error{errors.New("message channel closed")},
		reconnectErr: errors.New("dial AMQP: connection refused"),
	}

	err := ConsumeWithRecovery(context.Background(), src, func(*amqp.SubscriptionEventMessage) error { return nil })
	if err == nil || !errors.Is(err, src.reconnectErr) {
		t.Fatalf("ConsumeWithRecovery() = %v, want wrapped reconnect error", err)
	}
	if src.consumes != 1 {
		t.Errorf("consumes = %d, want 1", src.consumes)
	}
}

func TestConsumeWithRecoveryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeEventSource{}
	err := ConsumeWithRecovery(ctx, src, func(*amqp.SubscriptionEventMessage) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ConsumeWithRecovery() = %v, want context.Canceled", err)
	}
	if src.reconnects != 0 {
		t.Errorf("reconnects = %d, want 0 after cancellation", src.reconnects)
	}
}
