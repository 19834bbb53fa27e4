package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ivlev/topic2video/internal/errs"
)

func TestNewRequest(t *testing.T) {
	req, err := NewRequest([]string{" a red fox ", "", "  ", "a blue sea"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(req.Prompts) != 2 || req.Prompts[0] != "a red fox" {
		t.Errorf("prompts = %q", req.Prompts)
	}
	if req.Expected() != 4 {
		t.Errorf("Expected = %d, want 4", req.Expected())
	}
	if req.CreatedAt.IsZero() || req.ID.String() == "" {
		t.Error("request not stamped")
	}

	if _, err := NewRequest([]string{" "}, 2); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("blank prompts: %v", err)
	}
	if r, _ := NewRequest([]string{"x"}, 0); r.ImagesPerPrompt != 1 {
		t.Errorf("ImagesPerPrompt = %d, want 1", r.ImagesPerPrompt)
	}
}

func TestChannelQueueAck(t *testing.T) {
	q := NewChannelQueue(1, time.Second)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var got Request
	go q.Serve(ctx, func(_ context.Context, req Request) error {
		got = req
		return nil
	})

	req, _ := NewRequest([]string{"prompt"}, 2)
	ack, err := q.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !ack.Accepted || ack.RequestID != req.ID || ack.Error != "" {
		t.Errorf("ack = %+v", ack)
	}
	if got.ID != req.ID {
		t.Errorf("handler saw %s", got.ID)
	}
}

func TestChannelQueueRejected(t *testing.T) {
	q := NewChannelQueue(0, time.Second)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Serve(ctx, func(context.Context, Request) error { return errors.New("generator busy") })

	req, _ := NewRequest([]string{"prompt"}, 1)
	ack, err := q.Submit(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if ack.Accepted || ack.Error != "generator busy" {
		t.Errorf("ack = %+v", ack)
	}
}

func TestChannelQueueAckTimeout(t *testing.T) {
	q := NewChannelQueue(1, 20*time.Millisecond)
	defer q.Close()

	req, _ := NewRequest([]string{"prompt"}, 1)
	if _, err := q.Submit(context.Background(), req); !errors.Is(err, ErrAckTimeout) {
		t.Errorf("expected ErrAckTimeout, got %v", err)
	}
}

func TestChannelQueueClosed(t *testing.T) {
	q := NewChannelQueue(0, time.Second)
	q.Close()
	q.Close()

	req, _ := NewRequest([]string{"prompt"}, 1)
	if _, err := q.Submit(context.Background(), req); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := q.Serve(context.Background(), nil); err != nil {
		t.Errorf("Serve on closed queue: %v", err)
	}
}

func TestEnvelopeAckOnce(t *testing.T) {
	env := Envelope{Request: Request{}, reply: make(chan Ack, 1)}
	env.Ack(nil)
	env.Ack(errors.New("late"))
	if ack := <-env.reply; !ack.Accepted {
		t.Errorf("first ack lost: %+v", ack)
	}
}
