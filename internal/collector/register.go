// SPDX-License-Identifier: GPL-3.0-or-later

package collector

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tbmedge/edgecore/internal/config"
)

// decodeRegister decodes one tag's register value from a raw register
// block, per its declared [config.RegisterType] (spec.md §4.1: "Decode each
// register per its declared type (float32 big-/little-endian, uint16,
// int16, ...)").
//
// No pack library offers typed register decode without pulling in an
// unrelated industrial-protocol stack, so this uses encoding/binary
// directly (stdlib; justified in DESIGN.md).
func decodeRegister(block []byte, tag config.TagConfig) (float64, error) {
	const wordSize = 2 // one register is 16 bits

	offset := int(tag.Register) * wordSize
	switch tag.RegisterType {
	case config.RegisterUint16:
		if offset+wordSize > len(block) {
			return 0, fmt.Errorf("register %d out of range for tag %q", tag.Register, tag.Name)
		}
		return float64(binary.BigEndian.Uint16(block[offset:])), nil

	case config.RegisterInt16:
		if offset+wordSize > len(block) {
			return 0, fmt.Errorf("register %d out of range for tag %q", tag.Register, tag.Name)
		}
		return float64(int16(binary.BigEndian.Uint16(block[offset:]))), nil

	case config.RegisterFloat32BE:
		if offset+2*wordSize > len(block) {
			return 0, fmt.Errorf("register %d out of range for tag %q", tag.Register, tag.Name)
		}
		bits := binary.BigEndian.Uint32(block[offset:])
		return float64(math.Float32frombits(bits)), nil

	case config.RegisterFloat32LE:
		if offset+2*wordSize > len(block) {
			return 0, fmt.Errorf("register %d out of range for tag %q", tag.Register, tag.Name)
		}
		bits := binary.LittleEndian.Uint32(block[offset:])
		return float64(math.Float32frombits(bits)), nil

	default:
		return 0, fmt.Errorf("unknown register type %q for tag %q", tag.RegisterType, tag.Name)
	}
}
