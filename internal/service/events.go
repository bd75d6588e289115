package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-festival/internal/queue"
)

// publishTimeout bounds how long a request waits on the broker after its
// transaction committed.
const publishTimeout = 3 * time.Second

// events publishes workflow events after their transaction committed.
// Publishing never fails the operation that produced the event.
type events struct {
	pub    queue.Publisher
	logger *zap.Logger
}

func newEvents(pub queue.Publisher, logger *zap.Logger) events {
	if pub == nil {
		pub = queue.NopPublisher{}
	}
	return events{pub: pub, logger: logger}
}

func (e events) emit(ctx context.Context, ev queue.WorkflowEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.logger.Warn("workflow event not published", zap.String("kind", ev.Kind), zap.Error(err))
	}
}
