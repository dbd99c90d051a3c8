// SPDX-License-Identifier: GPL-3.0-or-later

package ringaligner

import "github.com/tbmedge/edgecore/internal/ringsummary"

// completenessInputs is the set of facts data_completeness_flag is
// computed from (I3: complete iff all four hold).
type completenessInputs struct {
	HasPLC           bool
	RequiredPLCNull  bool
	HasAttitude      bool
	SettlementFound  bool
}

// completeness applies I3's four-way AND, reporting the single most
// specific failure when more than one input is missing: a ring with no
// PLC data at all is reported missing_plc even though its attitude and
// monitoring data may also be absent, since nothing else can be trusted
// without a PLC-derived time window.
func completeness(in completenessInputs) ringsummary.Completeness {
	switch {
	case !in.HasPLC:
		return ringsummary.MissingPLC
	case in.RequiredPLCNull:
		return ringsummary.PartialPLC
	case !in.HasAttitude:
		return ringsummary.PartialAttitude
	case !in.SettlementFound:
		return ringsummary.MissingMonitoring
	default:
		return ringsummary.Complete
	}
}
