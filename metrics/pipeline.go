package metrics

import "sync/atomic"

// PipelineMetrics tracks in-flight progress of one import or sync run.
type PipelineMetrics struct {
	ProcessedCount atomic.Int32
	SuccessCount   atomic.Int32
	ErrorCount     atomic.Int32
	WorkerCount    atomic.Int32
}
