// Copyright 2021 by the minilora authors, see LICENSE file

// Package region holds the uplink frequency plans the radio driver transmits
// on. Each plan is a fixed set of 8 channels matching the channel block The
// Things Network assigns to single-channel and hopping nodes in that region.
//
// The radio chip takes carrier frequencies as a 24-bit word in units of
// 32MHz/2^19 (about 61.035Hz). The plans are stored as center frequencies in
// Hz and converted to frequency words once at startup.
package region

import (
	"errors"
	"fmt"
	"strings"
)

// Region identifies one of the supported regional frequency plans.
type Region byte

const (
	US Region = iota // US915, channels 903.9-905.3 MHz
	EU               // EU868, channels 867.1-868.5 MHz
	AU               // AU915, channels 916.8-918.2 MHz
	AS               // AS923, channels 922.0-923.4 MHz
)

// ErrUnknownRegion is returned for region names or values outside the
// supported set. There is no fallback plan: transmitting on an undefined
// frequency table is never acceptable.
var ErrUnknownRegion = errors.New("region: unknown region")

// Parse maps a region name such as "US" or "eu" to its Region value.
func Parse(name string) (Region, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "US":
		return US, nil
	case "EU":
		return EU, nil
	case "AU":
		return AU, nil
	case "AS":
		return AS, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRegion, name)
}

func (r Region) String() string {
	switch r {
	case US:
		return "US"
	case EU:
		return "EU"
	case AU:
		return "AU"
	case AS:
		return "AS"
	}
	return fmt.Sprintf("Region(%d)", byte(r))
}

// Word is a 24-bit carrier frequency word as the chip's three frequency
// registers expect it: MSB, MID, LSB.
type Word [3]byte

// Plan is the ordered channel table of one region, indexed by channel number.
type Plan [8]Word

// Channel center frequencies in Hz. The EU and AS blocks are not contiguous:
// they follow the TTN channel ordering, not ascending frequency.
var frequencies = map[Region][8]uint32{
	US: {903900000, 904100000, 904300000, 904500000, 904700000, 904900000, 905100000, 905300000},
	EU: {868100000, 868300000, 868500000, 867100000, 867300000, 867500000, 867700000, 867900000},
	AU: {916800000, 917000000, 917200000, 917400000, 917600000, 917800000, 918000000, 918200000},
	AS: {923200000, 923400000, 922200000, 922400000, 922600000, 922800000, 923000000, 922000000},
}

var plans = map[Region]Plan{}

func init() {
	for r, freqs := range frequencies {
		var p Plan
		for i, hz := range freqs {
			p[i] = WordForFrequency(hz)
		}
		plans[r] = p
	}
}

// Lookup returns the frequency plan for a region.
func Lookup(r Region) (Plan, error) {
	p, found := plans[r]
	if !found {
		return Plan{}, fmt.Errorf("%w: %s", ErrUnknownRegion, r)
	}
	return p, nil
}

// WordForFrequency converts a carrier frequency in Hz to the chip's frequency
// word. frf = hz * 2^19 / 32e6, truncated; the error stays below the 32MHz
// crystal's own tolerance.
func WordForFrequency(hz uint32) Word {
	frf := uint64(hz) << 19 / 32000000
	return Word{byte(frf >> 16), byte(frf >> 8), byte(frf)}
}
