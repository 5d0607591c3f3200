package domain

import (
	"context"
	"time"
)

// RawEvent is an unprocessed message from the source topic: one raw weather
// or traffic record as published by an upstream collector, plus enough
// transport metadata to commit it after processing.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Source returns the collector-stamped source header that selects the
// record's field mapping.
func (e RawEvent) Source() string {
	return e.Headers["source"]
}
