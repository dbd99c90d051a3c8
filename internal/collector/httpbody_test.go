// SPDX-License-Identifier: GPL-3.0-or-later

package collector

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

type nopCloser struct {
	io.Reader
}

func (nopCloser) Close() error { return nil }

func TestHTTPBodyWrapLogsOnlyWhenRead(t *testing.T) {
	wrapped := httpBodyWrap(nopCloser{bytes.NewReader([]byte("payload"))}, telemetry.DefaultErrClassifier, "", telemetry.DefaultSLogger(), "http://example", time.Now)

	buf := make([]byte, 7)
	n, err := wrapped.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "payload", string(buf))

	require.NoError(t, wrapped.Close())
}

func TestHTTPBodyWrapCloseWithoutReadDoesNotPanic(t *testing.T) {
	wrapped := httpBodyWrap(nopCloser{bytes.NewReader(nil)}, telemetry.DefaultErrClassifier, "", telemetry.DefaultSLogger(), "http://example", time.Now)
	assert.NoError(t, wrapped.Close())
}
