// Copyright 2021 by the minilora authors, see LICENSE file

package lorawan

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

// stubCipher passes the payload through untouched and stamps a fixed MIC so
// the wire layout can be checked byte for byte.
type stubCipher struct{}

func (stubCipher) Encrypt(fcnt uint32, payload []byte) ([]byte, error) {
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (stubCipher) MIC(fcnt uint32, msg []byte) ([4]byte, error) {
	return [4]byte{0xDE, 0xAD, 0xBE, 0xEF}, nil
}

func testSession() Session {
	s := Session{DevAddr: [4]byte{0xAA, 0xBB, 0xCC, 0xDD}}
	for i := range s.NwkSKey {
		s.NwkSKey[i] = byte(0x10 + i)
		s.AppSKey[i] = byte(0x20 + i)
	}
	return s
}

func TestHeaderLayout(t *testing.T) {
	frame, err := BuildUplink(testSession(), stubCipher{}, 300, []byte{0x42, 0x43})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	want := []byte{
		0x40,                   // MHDR unconfirmed data up
		0xDD, 0xCC, 0xBB, 0xAA, // device address, reversed
		0x00,       // FCtrl
		0x2C, 0x01, // FCnt 300, low byte first
		0x01,       // FPort
		0x42, 0x43, // payload
		0xDE, 0xAD, 0xBE, 0xEF, // MIC
	}
	if !bytes.Equal(frame, want) {
		t.Fatalf("frame mismatch\ngot      %x\nexpected %x", frame, want)
	}
}

func TestDeterministic(t *testing.T) {
	s := testSession()
	c := NewCipher(s)
	a, err := BuildUplink(s, c, 7, []byte("determinism"))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	b, err := BuildUplink(s, c, 7, []byte("determinism"))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("same inputs produced different frames\n%x\n%x", a, b)
	}
}

func TestPayloadBounds(t *testing.T) {
	s := testSession()
	frame, err := BuildUplink(s, stubCipher{}, 1, make([]byte, MaxPayload))
	if err != nil {
		t.Fatalf("payload of MaxPayload bytes: unexpected error %v", err)
	}
	if len(frame) != 64 {
		t.Errorf("full frame is %d bytes, expected 64", len(frame))
	}
	if _, err = BuildUplink(s, stubCipher{}, 1, make([]byte, MaxPayload+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

// Known-good frames for the real cipher, cross-checked against an independent
// AES/CMAC implementation.
var uplinks = map[string]struct {
	fcnt    uint32
	payload []byte
	frame   string
}{
	"short": {300, []byte("hello"),
		"40ddccbbaa002c01011384763c96ba2a3164"},
	"two-blocks": {1, []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
		"40ddccbbaa00010001cf7997051ab28cae45c2383a01c78172238299074c3f9feb"},
}

func TestSessionCipher(t *testing.T) {
	s := testSession()
	c := NewCipher(s)
	for n, tc := range uplinks {
		frame, err := BuildUplink(s, c, tc.fcnt, tc.payload)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", n, err)
		}
		want, _ := hex.DecodeString(tc.frame)
		if !bytes.Equal(frame, want) {
			t.Errorf("%s frame mismatch\ngot      %x\nexpected %x", n, frame, want)
		}
	}
}

func TestEncryptLength(t *testing.T) {
	c := NewCipher(testSession())
	for _, n := range []int{0, 1, 15, 16, 17, 32, MaxPayload} {
		enc, err := c.Encrypt(5, make([]byte, n))
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if len(enc) != n {
			t.Errorf("plaintext of %d bytes encrypted to %d bytes", n, len(enc))
		}
	}
}
