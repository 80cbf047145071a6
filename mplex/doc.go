package mplex

import (
	"context"

	"github.com/opengauss-go/gaussconn/gaussconn"
)

// NewFromConfig builds a Scheduler sized from cfg: MaxPoolSize dedicated
// connectors, a queue deep enough to hold one pending command per
// connector times four, and WriteCoalescingBufferThresholdBytes as the
// writer's batching threshold (spec.md section 6). Callers must already
// have validated cfg.Multiplexing==true (connstring.Validate enforces
// Multiplexing requires Pooling; the caller decides whether to build a
// Scheduler or a plain gausspool.Pool).
func NewFromConfig(ctx context.Context, cfg *gaussconn.Config) (*Scheduler, error) {
	numConns := cfg.MaxPoolSize
	if numConns < 1 {
		numConns = 1
	}
	threshold := cfg.WriteCoalescingBufferThresholdBytes
	if threshold <= 0 {
		threshold = 1000
	}
	return New(ctx, cfg, numConns, numConns*4, threshold)
}
