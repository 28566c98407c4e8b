package lmclient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeChatModel struct {
	failures int32
	calls    int32
}

func (f *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= atomic.LoadInt32(&f.failures) {
		return nil, errors.New("upstream 503")
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func newTestClient(fake *fakeChatModel) *RealClient {
	return &RealClient{
		chatModel: fake,
		sem:       make(chan struct{}, 4),
		sleep:     func(time.Duration) {},
		rand:      func() float64 { return 0.5 },
	}
}

func TestCompleteSucceedsAfterTransientFailures(t *testing.T) {
	fake := &fakeChatModel{failures: 2}
	c := newTestClient(fake)

	out, err := c.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "ok" {
		t.Fatalf("got %q, want ok", out)
	}
	if fake.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", fake.calls)
	}
}

func TestCompleteExhaustsRetriesAndWrapsError(t *testing.T) {
	fake := &fakeChatModel{failures: 100}
	c := newTestClient(fake)

	_, err := c.Complete(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if fake.calls != maxRetries {
		t.Fatalf("expected %d attempts, got %d", maxRetries, fake.calls)
	}
}

func TestCompleteRespectsContextCancellation(t *testing.T) {
	fake := &fakeChatModel{failures: 100}
	c := newTestClient(fake)
	c.sem = make(chan struct{}, 1)
	c.sem <- struct{}{} // saturate so Complete must block on the semaphore

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Complete(ctx, "hello"); err == nil {
		t.Fatalf("expected context cancellation error")
	}
}
