// Package queue carries image generation requests to the image source and
// waits for its acknowledgement.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ivlev/topic2video/internal/errs"
)

var (
	// ErrAckTimeout is returned when the image source does not acknowledge
	// a request in time.
	ErrAckTimeout = errors.New("image request not acknowledged")
	ErrClosed     = errors.New("queue closed")
)

// Request asks the image source to generate ImagesPerPrompt images for each
// prompt, in order.
type Request struct {
	ID              uuid.UUID `json:"id"`
	Prompts         []string  `json:"prompts"`
	ImagesPerPrompt int       `json:"imagesPerPrompt"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewRequest drops blank prompts and rejects an empty list.
func NewRequest(prompts []string, perPrompt int) (Request, error) {
	var clean []string
	for _, p := range prompts {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return Request{}, errs.Validation("image request", "no prompts")
	}
	if perPrompt <= 0 {
		perPrompt = 1
	}
	return Request{
		ID:              uuid.New(),
		Prompts:         clean,
		ImagesPerPrompt: perPrompt,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// Expected is the number of images the request should produce.
func (r Request) Expected() int {
	return len(r.Prompts) * r.ImagesPerPrompt
}

type Ack struct {
	RequestID uuid.UUID `json:"requestId"`
	Accepted  bool      `json:"accepted"`
	Error     string    `json:"error,omitempty"`
}

type Queue interface {
	Submit(ctx context.Context, req Request) (Ack, error)
	Close() error
}

// Handler processes one request on the consuming side.
type Handler func(ctx context.Context, req Request) error

// AckFor builds the acknowledgement for the outcome of h.
func AckFor(req Request, err error) Ack {
	ack := Ack{RequestID: req.ID, Accepted: err == nil}
	if err != nil {
		ack.Error = err.Error()
	}
	return ack
}

// Envelope is a request in flight on a ChannelQueue.
type Envelope struct {
	Request Request
	reply   chan Ack
}

// Ack answers the submitter. Only the first call has an effect.
func (e Envelope) Ack(err error) {
	select {
	case e.reply <- AckFor(e.Request, err):
	default:
	}
}

// ChannelQueue connects a submitter and an in-process consumer.
type ChannelQueue struct {
	requests   chan Envelope
	done       chan struct{}
	closeOnce  sync.Once
	ackTimeout time.Duration
}

func NewChannelQueue(buffer int, ackTimeout time.Duration) *ChannelQueue {
	return &ChannelQueue{
		requests:   make(chan Envelope, buffer),
		done:       make(chan struct{}),
		ackTimeout: ackTimeout,
	}
}

// Requests is the consuming end.
func (q *ChannelQueue) Requests() <-chan Envelope {
	return q.requests
}

func (q *ChannelQueue) Submit(ctx context.Context, req Request) (Ack, error) {
	ctx, cancel := withAckTimeout(ctx, q.ackTimeout)
	defer cancel()

	env := Envelope{Request: req, reply: make(chan Ack, 1)}
	select {
	case q.requests <- env:
	case <-q.done:
		return Ack{}, ErrClosed
	case <-ctx.Done():
		return Ack{}, ackError(ctx, req)
	}

	select {
	case ack := <-env.reply:
		return ack, nil
	case <-q.done:
		return Ack{}, ErrClosed
	case <-ctx.Done():
		return Ack{}, ackError(ctx, req)
	}
}

// Serve hands every request to h and acknowledges it until ctx is done or
// the queue is closed.
func (q *ChannelQueue) Serve(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return nil
		case env := <-q.requests:
			err := h(ctx, env.Request)
			if err != nil {
				log.Error().Err(err).Str("request", env.Request.ID.String()).Msg("image request failed")
			}
			env.Ack(err)
		}
	}
}

func (q *ChannelQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

func withAckTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func ackError(ctx context.Context, req Request) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("submit %s: %w", req.ID, ErrAckTimeout)
	}
	return ctx.Err()
}
