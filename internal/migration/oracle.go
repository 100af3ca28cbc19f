package migration

import (
	"context"

	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/metrics"
	"github.com/PratikDhanave/attendance-sync-service/internal/models"
	"github.com/PratikDhanave/attendance-sync-service/internal/store"
)

// Oracle answers whether a natural key is already in the sink.
//
// A failed lookup is logged and reported as absent. The sink's unique
// constraint then decides, so a lookup error can cost a redundant insert
// attempt but never drops a record.
type Oracle struct {
	sink    store.Sink
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewOracle(sink store.Sink, m *metrics.Metrics, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{sink: sink, metrics: m, logger: logger}
}

// Exists runs a point query for k.
func (o *Oracle) Exists(ctx context.Context, k models.Key) bool {
	rows, err := o.sink.Select(ctx, store.ByKey(k))
	if err != nil {
		o.metrics.OracleError()
		o.logger.Error("Existence check failed, assuming absent",
			zap.Int64("emp_id", k.EmpID),
			zap.String("time_stamp", k.TimeStamp),
			zap.Error(err))
		return false
	}
	return len(rows) > 0
}
