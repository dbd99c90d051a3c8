// SPDX-License-Identifier: GPL-3.0-or-later

package telemetry

import "github.com/bassosimone/errclass"

// ErrClassifier classifies errors into categorical strings for analysis.
//
// Implementations map errors to short, descriptive labels (e.g., "ETIMEDOUT",
// "ECONNRESET") that facilitate systematic analysis of collector and store
// failures without requiring every caller to understand OS-level errno
// values.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
//
// This allows using simple functions as classifiers:
//
//	op.ErrClassifier = ErrClassifierFunc(errclass.New)
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier classifies errors using [errclass.New], which maps
// network and I/O errors to short OS-independent labels (ETIMEDOUT,
// ECONNRESET, ...). Collectors use this to tag structured log
// events without branching on platform-specific error values themselves.
var DefaultErrClassifier = ErrClassifierFunc(errclass.New)
