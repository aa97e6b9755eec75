package redisstore

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// latencyHook reports the duration of every command; a missing key is not a failure.
type latencyHook struct {
	observe func(elapsed time.Duration, err error)
}

// NewLatencyHook returns a redis.Hook feeding observe. Install it with client.AddHook.
func NewLatencyHook(observe func(elapsed time.Duration, err error)) redis.Hook {
	return latencyHook{observe: observe}
}

func (h latencyHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h latencyHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.report(time.Since(start), err)
		return err
	}
}

func (h latencyHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.report(time.Since(start), err)
		return err
	}
}

func (h latencyHook) report(elapsed time.Duration, err error) {
	if h.observe == nil {
		return
	}
	if errors.Is(err, redis.Nil) {
		err = nil
	}
	h.observe(elapsed, err)
}
