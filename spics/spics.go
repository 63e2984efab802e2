// Copyright 2021 by the minilora authors, see LICENSE file

package spics

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Conn represents a connection to a device on an SPI bus whose chip select is
// driven by a plain gpio pin instead of the bus controller.
//
// Radio breakouts are frequently wired with NSS on an arbitrary gpio because
// the board's hardware chip selects are taken. Conn makes such a device look
// like a regular spi.Conn: every transaction takes an exclusive lock on the
// shared bus, pulls the select pin low for the duration of the exchange and
// releases both on every exit path, including a failed transfer. The radio
// only ever sees whole transactions.
//
// There are no retries at this layer. An error from the underlying bus is a
// transport fault and is handed to the caller untouched.
type Conn struct {
	mu   sync.Mutex // prevent interleaved transactions on the shared bus
	conn spi.Conn   // the underlying SPI bus
	cs   gpio.PinOut
}

// New returns a Conn that gates transactions to the device behind the given
// chip-select pin. The pin is deasserted (high) immediately.
func New(conn spi.Conn, cs gpio.PinOut) *Conn {
	cs.Out(gpio.High)
	return &Conn{conn: conn, cs: cs}
}

// Tx asserts chip select, runs one full-duplex exchange and deasserts again.
func (c *Conn) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("spics: cannot assert %s: %w", c.cs, err)
	}
	defer c.cs.Out(gpio.High)
	return c.conn.Tx(w, r)
}

// TxPackets runs a sequence of exchanges under a single chip-select
// assertion.
func (c *Conn) TxPackets(p []spi.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("spics: cannot assert %s: %w", c.cs, err)
	}
	defer c.cs.Out(gpio.High)
	return c.conn.TxPackets(p)
}

// Duplex returns the duplex capability of the underlying bus.
func (c *Conn) Duplex() conn.Duplex {
	return c.conn.Duplex()
}

func (c *Conn) String() string {
	return fmt.Sprintf("%s(cs=%s)", c.conn, c.cs)
}
