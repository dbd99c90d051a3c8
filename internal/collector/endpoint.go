// SPDX-License-Identifier: GPL-3.0-or-later

package collector

import (
	"net/netip"

	"github.com/tbmedge/edgecore/internal/pipe"
)

// newEndpointFunc returns a [pipe.Func] that always returns the given
// [netip.AddrPort]. Convenience wrapper around [pipe.ConstFunc] for
// injecting a polling source's endpoint into its dial pipeline.
func newEndpointFunc(endpoint netip.AddrPort) pipe.Func[pipe.Unit, netip.AddrPort] {
	return pipe.ConstFunc(endpoint)
}
