package repository

import (
	"context"

	"github.com/example/tablepos/pkg/notify"
	"go.uber.org/zap"
)

// Hooks are the side channels every successful write feeds. Both are
// optional.
type Hooks struct {
	Publisher notify.Publisher
	Audit     AuditLogger
}

func (h Hooks) publish(ctx context.Context, logger *zap.Logger, table string, typ notify.EventType) {
	if h.Publisher == nil {
		return
	}
	if err := h.Publisher.Publish(ctx, notify.NewEvent(table, typ)); err != nil {
		logger.Warn("Failed to publish change event",
			zap.String("table", table),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}
