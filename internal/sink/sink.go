package sink

import (
	"context"
	"time"
)

// Point is one tagged, timestamped record.
//
// Field typing contract: a field name must keep one value type across every
// point ever written to it. Amount-like fields are therefore always decimal
// strings, since uint256 values overflow the store's native integers.
type Point struct {
	Measurement string                 `json:"measurement"`
	Tags        map[string]string      `json:"tags"`
	Fields      map[string]interface{} `json:"fields"`
	Time        time.Time              `json:"time"`
}

// Sink persists points. Write failures are returned to the caller, which
// decides retry or drop; the sink itself never retries.
type Sink interface {
	// WritePoints persists a batch. No transactionality across points is
	// assumed.
	WritePoints(ctx context.Context, points []Point) error
	// QueryLatestBlock returns the highest block_number field written to
	// the blocks measurement, used only at startup to resume.
	QueryLatestBlock(ctx context.Context) (uint64, bool, error)
	// Reset drops all stored points. Only the operator resync command
	// calls this.
	Reset(ctx context.Context) error
	// Close releases resources.
	Close() error
}
