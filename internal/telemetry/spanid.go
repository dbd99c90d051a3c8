package telemetry

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 representing a span.
//
// A span is a sequence of operations that can fail in a single, specific
// way: one collector poll cycle, one quality-pipeline pass over a record,
// one buffer flush, one ring-aligner tick for a single ring. Use a span ID
// to correlate the Start/Done log pair and any intermediate events for that
// operation.
//
// The span terminology is borrowed from OTel.
//
// This function panics if the system random number generator fails, which
// should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}

// NewPoisonBatchID returns a UUIDv7 suitable for naming a poison-sidecar
// batch file, so that batches written within the same wall-clock second
// still sort and dedupe correctly.
func NewPoisonBatchID() string {
	return NewSpanID()
}
