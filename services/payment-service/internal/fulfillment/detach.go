package fulfillment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Detach runs fn in its own goroutine with a context that outlives the
// request but keeps its values. Errors and panics are logged, never returned.
func Detach(parent context.Context, log *zap.Logger, what string, timeout time.Duration, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Error(what+" panicked", zap.String("panic", fmt.Sprint(r)))
			}
		}()
		if err := fn(ctx); err != nil {
			log.Warn(what+" failed", zap.Error(err))
		}
	}()
}
