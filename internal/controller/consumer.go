package controller

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rogeraird/rgo/internal/codec"
	"github.com/rogeraird/rgo/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	// errorRetryPerSec caps how often the consumer retries after a failed
	// receive, so a broken channel cannot spin the CPU.
	errorRetryPerSec = 5
	errorRetryBurst  = 1
)

// Receiver yields whole command-channel payloads, blocking until one is
// available. A nil payload with a nil error means nothing to do.
type Receiver interface {
	Receive(ctx context.Context) ([]byte, error)
}

// Consumer is the background loop between the command channel and the
// controller.
type Consumer struct {
	ch      Receiver
	ctrl    *Controller
	metrics *metrics.Metrics
	limiter *rate.Limiter
}

// NewConsumer wires a consumer. A missing receiver is a configuration error.
func NewConsumer(ch Receiver, ctrl *Controller, m *metrics.Metrics) (*Consumer, error) {
	if ch == nil {
		return nil, errors.New("controller: consumer needs a command channel")
	}
	if ctrl == nil {
		return nil, errors.New("controller: consumer needs a controller")
	}
	return &Consumer{
		ch:      ch,
		ctrl:    ctrl,
		metrics: m,
		limiter: rate.NewLimiter(rate.Limit(errorRetryPerSec), errorRetryBurst),
	}, nil
}

// Run receives and dispatches payloads until ctx is cancelled. Receive
// errors, malformed payloads and failed commands are logged and skipped.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("consumer: started")
	defer slog.Info("consumer: stopped")

	for {
		payload, err := c.ch.Receive(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.metrics.ChannelFailed()
			slog.Warn("consumer: receive failed", "err", err)
			if err := c.limiter.Wait(ctx); err != nil {
				return nil
			}
			continue
		}
		if len(payload) == 0 {
			continue
		}
		c.dispatch(ctx, payload)
	}
}

func (c *Consumer) dispatch(ctx context.Context, payload []byte) {
	id := uuid.NewString()

	cmds, decodeErr := codec.DecodeAll(payload)
	for _, cmd := range cmds {
		slog.Debug("consumer: dispatching", "msg", id, "cmd", cmd)
		if err := c.ctrl.Apply(ctx, cmd); err != nil {
			slog.Error("consumer: command failed", "msg", id, "kind", cmd.Kind(), "err", err)
		}
	}
	if decodeErr != nil {
		c.metrics.DecodeFailed()
		slog.Warn("consumer: dropping malformed payload",
			"msg", id,
			"bytes", len(payload),
			"applied", len(cmds),
			"err", decodeErr,
		)
	}
}
