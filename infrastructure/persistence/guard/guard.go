// Package guard serializes mutating operations per story within a single
// process. Callers for the same story run strictly in arrival order; callers
// for different stories never block each other. It offers no cross-process
// protection: two processes pointed at the same data directory can still
// interleave writes.
package guard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"storyforge-backend/pkg/observability"
)

// KeyedSerializer runs functions one at a time per key, FIFO
type KeyedSerializer struct {
	mu      sync.Mutex
	tails   map[string]chan struct{}
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewKeyedSerializer creates a serializer. metrics may be nil.
func NewKeyedSerializer(logger *zap.Logger, metrics *observability.Collector) *KeyedSerializer {
	return &KeyedSerializer{
		tails:   make(map[string]chan struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Do enqueues fn behind every operation previously enqueued for key, waits
// for its turn, runs fn to completion, and releases the queue. fn always
// runs once admitted, even if a predecessor failed, and is not interrupted
// by ctx cancellation: partial writes are worse than a late result. ctx is
// passed through to fn.
func (s *KeyedSerializer) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	done := make(chan struct{})

	s.mu.Lock()
	prev, queued := s.tails[key]
	s.tails[key] = done
	s.mu.Unlock()

	if queued {
		start := time.Now()
		<-prev
		wait := time.Since(start)
		if s.metrics != nil {
			s.metrics.GuardWaitSeconds.Observe(wait.Seconds())
		}
		if s.logger != nil {
			s.logger.Debug("guard wait finished",
				zap.String("key", key),
				zap.Duration("waited", wait))
		}
	}

	defer func() {
		close(done)
		s.mu.Lock()
		// prune only if no successor replaced us as tail
		if s.tails[key] == done {
			delete(s.tails, key)
		}
		s.mu.Unlock()
	}()

	return fn(ctx)
}
