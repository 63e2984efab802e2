// Copyright 2021 by the minilora authors, see LICENSE file

// Package lorawan assembles unconfirmed LoRaWAN data uplinks for an ABP
// session, that is, a session whose device address and session keys were
// provisioned ahead of time instead of negotiated through a join exchange.
//
// Frame assembly is pure: it never touches the radio, which makes it the
// easiest part of the stack to test. The cryptography is injected through the
// Cipher interface so the wire layout can be verified with a stub; NewCipher
// provides the real LoRaWAN 1.0 payload encryption and message integrity
// code for use against an actual network.
//
// The assembled frame is
//
//	MHDR | DevAddr[3..0] | FCtrl | FCnt lo | FCnt hi | FPort | payload | MIC
//
// with the device address reversed on the wire (the network expects it
// least-significant byte first) and the frame counter as a little-endian
// 16-bit pair.
package lorawan

import (
	"errors"
	"fmt"

	"github.com/minilora/minilora/region"
)

// Session holds the identity of one ABP session. It is created once at
// startup and never mutated.
type Session struct {
	DevAddr [4]byte  // device address, most significant byte first
	NwkSKey [16]byte // network session key, authenticates frames
	AppSKey [16]byte // application session key, encrypts the payload
	Region  region.Region
}

// Cipher is the cryptographic collaborator used during frame assembly.
// Encrypt turns the plaintext payload into a ciphertext of identical length.
// MIC computes the 4-byte integrity tag over an assembled frame (header plus
// encrypted payload).
type Cipher interface {
	Encrypt(fcnt uint32, payload []byte) ([]byte, error)
	MIC(fcnt uint32, msg []byte) ([4]byte, error)
}

const (
	headerLen = 9
	micLen    = 4

	// MaxPayload is the largest payload that still fits the radio's 64-byte
	// FIFO together with the 9-byte header and the 4-byte MIC.
	MaxPayload = 64 - headerLen - micLen
)

// ErrPayloadTooLarge is returned when a payload cannot fit the radio FIFO.
var ErrPayloadTooLarge = errors.New("lorawan: payload too large")

// BuildUplink assembles one unconfirmed data-up frame. The frame counter is
// supplied by the caller, who owns its monotonicity. Given identical inputs
// and a deterministic cipher the result is byte-identical on every call.
func BuildUplink(s Session, c Cipher, fcnt uint32, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}

	enc, err := c.Encrypt(fcnt, payload)
	if err != nil {
		return nil, fmt.Errorf("lorawan: payload encryption failed: %w", err)
	}

	frame := make([]byte, 0, headerLen+len(enc)+micLen)
	frame = append(frame, 0x40) // MHDR: unconfirmed data up
	frame = append(frame, s.DevAddr[3], s.DevAddr[2], s.DevAddr[1], s.DevAddr[0])
	frame = append(frame, 0x00)                      // FCtrl: no ADR, no ACK, no FOpts
	frame = append(frame, byte(fcnt), byte(fcnt>>8)) // FCnt, low byte first
	frame = append(frame, 0x01)                      // FPort
	frame = append(frame, enc...)

	mic, err := c.MIC(fcnt, frame)
	if err != nil {
		return nil, fmt.Errorf("lorawan: MIC computation failed: %w", err)
	}
	return append(frame, mic[:]...), nil
}
