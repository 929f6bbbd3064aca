package repository

import (
	"context"

	"MarketSync/internal/domain/models"
)

// SnapshotSink receives every applied quote snapshot for downstream consumers.
type SnapshotSink interface {
	Name() string
	Publish(ctx context.Context, snap *models.Snapshot) error
	Close() error
}

type Metrics interface {
	RecordFetch(endpoint, result string, seconds float64)
	RecordTokenAcquisition(kind, result string)
	RecordPollTick(loop string)
	RecordSnapshot(records int)
	RecordSinkPublish(sink string, records int, err error)
	RecordError(kind string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordFetch(string, string, float64)   {}
func (NopMetrics) RecordTokenAcquisition(string, string) {}
func (NopMetrics) RecordPollTick(string)                 {}
func (NopMetrics) RecordSnapshot(int)                    {}
func (NopMetrics) RecordSinkPublish(string, int, error)  {}
func (NopMetrics) RecordError(string)                    {}
