// SPDX-License-Identifier: GPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
)

// Kind is the error taxonomy from the edge pipeline's error-handling design:
// each component maps its failures onto one of these kinds to decide retry,
// fail-fast, or log-and-continue policy.
type Kind string

const (
	// KindSourceTransient covers network hiccups and protocol timeouts.
	// Policy: retry with backoff; health flips to degraded.
	KindSourceTransient Kind = "source-transient"

	// KindSourceConfiguration covers bad endpoints, auth failures, and
	// unknown tags. Policy: fail-fast at Start(), never enter the run loop.
	KindSourceConfiguration Kind = "source-configuration"

	// KindDataQuality is handled in-band by the quality pipeline; records
	// are flagged, nothing aborts.
	KindDataQuality Kind = "data-quality"

	// KindBufferOverflow is reported via counters and handled per the
	// configured overflow policy. Never fatal.
	KindBufferOverflow Kind = "buffer-overflow"

	// KindStorageTransient covers "database busy/locked" conditions.
	// Policy: bounded retry, then poison the batch.
	KindStorageTransient Kind = "storage-transient"

	// KindStorageFatal covers corruption and disk-full conditions. Policy:
	// stop writing, let buffers grow under drop_oldest, flip health to
	// critical, keep the process running for inspection.
	KindStorageFatal Kind = "storage-fatal"

	// KindAlignerLogic covers divisor-zero and missing-input conditions in
	// the ring aligner. Policy: null the affected indicator, continue.
	KindAlignerLogic Kind = "aligner-logic"
)

// ClassifyTransport maps a transport-level error (from a collector dial,
// read, or HTTP round trip) onto a [Kind], using [DefaultErrClassifier] for
// the underlying OS-level label. context.DeadlineExceeded and
// context.Canceled are treated as transient: a caller-imposed deadline is
// not a configuration problem.
func ClassifyTransport(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindSourceTransient
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return KindSourceConfiguration
	}
	return KindSourceTransient
}

// ConfigurationError marks a collector failure that must fail fast at
// Start() rather than retry (bad endpoint, auth failure, unknown tag).
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
