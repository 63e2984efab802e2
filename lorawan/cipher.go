// Copyright 2021 by the minilora authors, see LICENSE file

package lorawan

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/jacobsa/crypto/cmac"
)

// sessionCipher implements the LoRaWAN 1.0 frame cryptography for one
// session: counter-mode payload encryption under the application session key
// (spec section 4.3.3) and a CMAC message integrity code under the network
// session key (section 4.4).
type sessionCipher struct {
	app  cipher.Block // AES-128 of the application session key
	nwk  [16]byte
	addr [4]byte // device address, least significant byte first
}

// NewCipher returns the standard frame cipher for a session.
func NewCipher(s Session) Cipher {
	block, err := aes.NewCipher(s.AppSKey[:])
	if err != nil {
		panic(err) // unreachable, the key is always 16 bytes
	}
	c := &sessionCipher{app: block, nwk: s.NwkSKey}
	// The crypto blocks carry the address in wire order.
	c.addr = [4]byte{s.DevAddr[3], s.DevAddr[2], s.DevAddr[1], s.DevAddr[0]}
	return c
}

// Encrypt XORs the payload with the AES keystream derived from the device
// address, the direction, the frame counter and a block counter. Same length
// in, same length out.
func (c *sessionCipher) Encrypt(fcnt uint32, payload []byte) ([]byte, error) {
	var a, s [aes.BlockSize]byte
	a[0] = 0x01
	// a[5] is the direction, 0 for uplink
	copy(a[6:10], c.addr[:])
	binary.LittleEndian.PutUint32(a[10:14], fcnt)

	out := make([]byte, len(payload))
	for i := 0; i*aes.BlockSize < len(payload); i++ {
		a[15] = byte(i + 1)
		c.app.Encrypt(s[:], a[:])
		blk := payload[i*aes.BlockSize:]
		if len(blk) > aes.BlockSize {
			blk = blk[:aes.BlockSize]
		}
		for j := range blk {
			out[i*aes.BlockSize+j] = blk[j] ^ s[j]
		}
	}
	return out, nil
}

// MIC computes the 4-byte integrity tag: AES-CMAC under the network session
// key over the B0 block followed by the frame, truncated to the first 4
// bytes.
func (c *sessionCipher) MIC(fcnt uint32, msg []byte) ([4]byte, error) {
	var mic [4]byte

	b0 := make([]byte, 0, 16+len(msg))
	b0 = append(b0, 0x49, 0x00, 0x00, 0x00, 0x00, 0x00)
	b0 = append(b0, c.addr[:]...)
	var fb [4]byte
	binary.LittleEndian.PutUint32(fb[:], fcnt)
	b0 = append(b0, fb[:]...)
	b0 = append(b0, 0x00, byte(len(msg)))
	b0 = append(b0, msg...)

	hash, err := cmac.New(c.nwk[:])
	if err != nil {
		return mic, fmt.Errorf("lorawan: cmac: %w", err)
	}
	hash.Write(b0)
	copy(mic[:], hash.Sum(nil)[:4])
	return mic, nil
}
