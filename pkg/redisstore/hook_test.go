package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestLatencyHook(t *testing.T) {
	var errs []error
	hook := NewLatencyHook(func(elapsed time.Duration, err error) {
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		errs = append(errs, err)
	})

	ctx := context.Background()
	cmd := redis.NewStringCmd(ctx, "get", "k")
	boom := errors.New("boom")

	process := hook.ProcessHook(func(ctx context.Context, cmd redis.Cmder) error { return redis.Nil })
	assert.ErrorIs(t, process(ctx, cmd), redis.Nil)

	process = hook.ProcessHook(func(ctx context.Context, cmd redis.Cmder) error { return boom })
	assert.ErrorIs(t, process(ctx, cmd), boom)

	pipeline := hook.ProcessPipelineHook(func(ctx context.Context, cmds []redis.Cmder) error { return nil })
	assert.NoError(t, pipeline(ctx, []redis.Cmder{cmd}))

	assert.Equal(t, []error{nil, boom, nil}, errs, "a missing key is not a failure")
}
