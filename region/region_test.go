// Copyright 2021 by the minilora authors, see LICENSE file

package region

import (
	"errors"
	"testing"
)

var words = map[string]struct {
	region  Region
	channel int
	word    Word
}{
	"us-903.9": {US, 0, Word{0xE1, 0xF9, 0x99}},
	"us-905.3": {US, 7, Word{0xE2, 0x53, 0x33}},
	"eu-868.1": {EU, 0, Word{0xD9, 0x06, 0x66}},
	"eu-867.1": {EU, 3, Word{0xD8, 0xC6, 0x66}},
	"eu-867.9": {EU, 7, Word{0xD8, 0xF9, 0x99}},
	"au-916.8": {AU, 0, Word{0xE5, 0x33, 0x33}},
	"au-918.2": {AU, 7, Word{0xE5, 0x8C, 0xCC}},
	"as-923.2": {AS, 0, Word{0xE6, 0xCC, 0xCC}},
	"as-922.0": {AS, 7, Word{0xE6, 0x80, 0x00}},
}

func TestPlanWords(t *testing.T) {
	for n, tc := range words {
		plan, err := Lookup(tc.region)
		if err != nil {
			t.Fatalf("Lookup %s: unexpected error %v", n, err)
		}
		if got := plan[tc.channel]; got != tc.word {
			t.Errorf("%s channel %d got %#v expected %#v", n, tc.channel, got, tc.word)
		}
	}
}

func TestWordForFrequency(t *testing.T) {
	// 868.1 MHz * 2^19 / 32e6 = 0xD90666
	if got := WordForFrequency(868100000); got != (Word{0xD9, 0x06, 0x66}) {
		t.Errorf("868.1MHz got %#v", got)
	}
	// One LSB unit is 32e6/2^19 Hz, so 62 Hz must already move the word.
	if WordForFrequency(868100000) == WordForFrequency(868100062) {
		t.Errorf("word did not move by one step unit")
	}
}

func TestParse(t *testing.T) {
	for _, name := range []string{"US", "eu", " AU ", "as"} {
		if _, err := Parse(name); err != nil {
			t.Errorf("Parse(%q): unexpected error %v", name, err)
		}
	}
	for _, name := range []string{"", "FR", "US915", "moon"} {
		if _, err := Parse(name); !errors.Is(err, ErrUnknownRegion) {
			t.Errorf("Parse(%q): expected ErrUnknownRegion, got %v", name, err)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup(Region(99)); !errors.Is(err, ErrUnknownRegion) {
		t.Errorf("expected ErrUnknownRegion, got %v", err)
	}
	for _, r := range []Region{US, EU, AU, AS} {
		if _, err := Lookup(r); err != nil {
			t.Errorf("Lookup(%s): unexpected error %v", r, err)
		}
	}
}
