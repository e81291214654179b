// Package worker provides the generic poll/process/acknowledge loop shared by
// every pipeline stage. Retry is implicit: a message whose handler fails is
// simply not acknowledged and becomes re-deliverable once its visibility
// timeout elapses.
package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/your-org/segmentflow/pkg/queue"
)

// Queue is the slice of the queue client the loop needs.
type Queue interface {
	Receive(ctx context.Context, max int, wait, visibility time.Duration) ([]queue.Message, error)
	Acknowledge(ctx context.Context, handle string) error
	ExtendVisibility(ctx context.Context, handle string, timeout time.Duration) error
}

// Handler processes one message body. A nil return acknowledges the message;
// any error leaves it in flight for redelivery.
type Handler func(ctx context.Context, body []byte) error

// Options tunes one worker loop.
type Options struct {
	// Name labels log lines, e.g. "split".
	Name string

	// BatchSize is the receive size (1-10).
	BatchSize int

	// WaitTime is the long-poll duration per receive.
	WaitTime time.Duration

	// Visibility hides received messages from other consumers while this
	// worker processes them.
	Visibility time.Duration

	// ExtendedVisibility, when positive, is granted to each message before
	// processing starts, for stages whose jobs can outlast Visibility.
	ExtendedVisibility time.Duration

	// MaxErrorPause caps the backoff between receives after transport errors.
	MaxErrorPause time.Duration
}

// Worker drives one stage against one queue.
type Worker struct {
	queue   Queue
	handler Handler
	logger  *zap.Logger
	opts    Options
}

// New constructs a Worker, applying defaults for unset options.
func New(q Queue, handler Handler, logger *zap.Logger, opts Options) *Worker {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.WaitTime <= 0 {
		opts.WaitTime = queue.MaxWaitTime
	}
	if opts.Visibility <= 0 {
		opts.Visibility = 15 * time.Minute
	}
	if opts.MaxErrorPause <= 0 {
		opts.MaxErrorPause = 30 * time.Second
	}
	return &Worker{queue: q, handler: handler, logger: logger, opts: opts}
}

// Run polls until ctx is cancelled. Transient errors never terminate the loop;
// the only exit path is context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	logger := w.logger.With(zap.String("worker", w.opts.Name))
	logger.Info("worker starting",
		zap.Int("batch_size", w.opts.BatchSize),
		zap.Duration("visibility", w.opts.Visibility),
	)

	// Long-polling already bounds the request rate on empty queues; the
	// backoff only paces transport errors.
	pause := backoff.NewExponentialBackOff()
	pause.MaxInterval = w.opts.MaxErrorPause
	pause.MaxElapsedTime = 0

	emptyPolls := 0
	for {
		if ctx.Err() != nil {
			logger.Info("worker stopping")
			return ctx.Err()
		}

		messages, err := w.queue.Receive(ctx, w.opts.BatchSize, w.opts.WaitTime, w.opts.Visibility)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("worker stopping")
				return ctx.Err()
			}
			wait := pause.NextBackOff()
			logger.Error("receive failed", zap.Error(err), zap.Duration("pause", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		pause.Reset()

		if len(messages) == 0 {
			emptyPolls++
			if emptyPolls%10 == 0 {
				logger.Debug("no messages received", zap.Int("empty_polls", emptyPolls))
			}
			continue
		}
		emptyPolls = 0

		for _, msg := range messages {
			if ctx.Err() != nil {
				logger.Info("worker stopping")
				return ctx.Err()
			}
			w.processOne(ctx, logger, msg)
		}
	}
}

func (w *Worker) processOne(ctx context.Context, logger *zap.Logger, msg queue.Message) {
	logger = logger.With(zap.String("message_id", msg.ID))

	if w.opts.ExtendedVisibility > 0 {
		if err := w.queue.ExtendVisibility(ctx, msg.Handle, w.opts.ExtendedVisibility); err != nil {
			logger.Warn("extend visibility failed", zap.Error(err))
		}
	}

	if err := w.handler(ctx, msg.Body); err != nil {
		// No acknowledge: the message reappears after its visibility timeout.
		logger.Error("message processing failed", zap.Error(err))
		return
	}

	if err := w.queue.Acknowledge(ctx, msg.Handle); err != nil {
		logger.Error("acknowledge failed", zap.Error(err))
		return
	}
	logger.Info("message processed")
}
