// Copyright 2021 by the minilora authors, see LICENSE file

// The rfm95 package drives a HopeRF RFM95/96/97/98(W) LoRa radio connected to
// an SPI bus as a LoRaWAN uplink transmitter.
//
// The RFM9x modules use a Semtech SX1276 radio chip and this package should
// work fine with other modules built around the same chip. The driver owns
// the chip completely: it configures it for LoRa operation at construction,
// assembles one unconfirmed ABP uplink per Send call and walks the chip
// through standby, FIFO load, transmit and back to sleep. Transmit completion
// is detected by polling the radio's DIO0 pin, which must be routed to a gpio
// the host can read.
//
// The driver is deliberately synchronous: there is no background goroutine
// and Send blocks, polling DIO0 at a coarse interval, until the radio has
// signalled TxDone or the poll budget is spent. A spent budget is not an
// error. The chip has no way to abort an in-flight transmission, so the
// driver proceeds to sleep mode either way; callers that care can compare
// timings or watch the log output.
//
// Limitations
//
// Uplink only. The driver never enters a receive mode, does not handle OTAA
// joins and leaves scheduling and duty-cycle budgeting to the caller.
//
// The methods on the Radio object are not concurrency safe: the radio is a
// single shared register file and the driver assumes a single owner. Invoking
// Send from two goroutines at once is undefined.
package rfm95

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/minilora/minilora/lorawan"
	"github.com/minilora/minilora/region"
)

var (
	// ErrUnknownDatarate is returned for names missing from the Datarates
	// table. The previous profile stays in effect.
	ErrUnknownDatarate = errors.New("rfm95: unknown datarate")
	// ErrNotSingleChannel is returned when SetChannel is called on a radio in
	// hopping mode, which picks its own channel per transmission.
	ErrNotSingleChannel = errors.New("rfm95: channel selection requires single-channel mode")
	// ErrBadChannel is returned for channel numbers outside 0 through 7.
	ErrBadChannel = errors.New("rfm95: channel out of range")
)

// LogPrintf is a function used by the driver to print logging info.
type LogPrintf func(format string, v ...interface{})

// Radio represents an RFM95 module bound to one ABP session.
type Radio struct {
	// configuration
	spi     spi.Conn        // SPI device to access the radio
	intrPin gpio.PinIn      // DIO0, routed to TxDone
	session lorawan.Session // ABP identity, set once
	cipher  lorawan.Cipher  // frame crypto collaborator
	freqs   region.Plan     // channel table of the session's region
	single  bool            // fixed-channel operation instead of hopping
	// state
	channel      int           // selected channel in single-channel mode
	active       region.Word   // frequency word of the next transmission
	dr           Datarate      // always a complete triplet from Datarates
	fcnt         uint32        // counter of the last frame handed to Send
	rnd          *rand.Rand    // channel draw in hopping mode
	txTimeout    time.Duration // total budget to wait for TxDone
	pollInterval time.Duration // DIO0 sampling interval
	log          LogPrintf     // function to use for logging
}

// RadioOpts contains options used when initializing a Radio. The zero value
// selects hopping mode, the SF7BW125 profile and a 15 second TxDone budget
// polled once a second.
type RadioOpts struct {
	Datarate      string         // entry in the Datarates table
	SingleChannel bool           // transmit on a fixed channel instead of hopping
	Channel       int            // the fixed channel, 0 through 7
	TxTimeout     time.Duration  // total budget to wait for TxDone
	PollInterval  time.Duration  // DIO0 sampling interval
	Cipher        lorawan.Cipher // frame crypto, defaults to lorawan.NewCipher
	Logger        LogPrintf      // function to use for logging
}

// New initializes an RFM95 for the given session. It resolves the session's
// frequency plan, verifies the chip's version register (a mismatch is logged
// but not fatal, the usual cause is miswiring that a subsequent send will
// surface anyway) and runs the LoRa configuration sequence. The radio is left
// in LoRa sleep.
func New(dev spi.Conn, intr gpio.PinIn, session lorawan.Session, opts RadioOpts) (*Radio, error) {
	r := &Radio{
		spi:          dev,
		intrPin:      intr,
		session:      session,
		channel:      -1,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		txTimeout:    15 * time.Second,
		pollInterval: time.Second,
		log:          func(format string, v ...interface{}) {},
	}
	if opts.Logger != nil {
		r.log = opts.Logger
	}
	if opts.TxTimeout > 0 {
		r.txTimeout = opts.TxTimeout
	}
	if opts.PollInterval > 0 {
		r.pollInterval = opts.PollInterval
	}
	r.cipher = opts.Cipher
	if r.cipher == nil {
		r.cipher = lorawan.NewCipher(session)
	}

	// Resolve all configuration before the first register access so a bad
	// setup never leaves the chip half-programmed.
	plan, err := region.Lookup(session.Region)
	if err != nil {
		return nil, err
	}
	r.freqs = plan

	dr := opts.Datarate
	if dr == "" {
		dr = "SF7BW125"
	}
	if err := r.SetDatarate(dr); err != nil {
		return nil, err
	}

	if opts.SingleChannel {
		r.single = true
		if err := r.SetChannel(opts.Channel); err != nil {
			return nil, err
		}
	}

	if err := intr.In(gpio.Float, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("rfm95: error initializing interrupt pin: %w", err)
	}

	// Identify the chip before touching its configuration.
	v, err := r.readReg(REG_VERSION)
	if err != nil {
		return nil, fmt.Errorf("rfm95: cannot read version register: %w", err)
	}
	if v != chipVersion {
		r.log("rfm95: version register reads %#x, expected %#x; check the wiring", v, chipVersion)
	}

	// The LoRa bit is only writable in sleep: plain sleep first, then LoRa
	// sleep, then the rest of the configuration.
	if err := r.writeReg(REG_OPMODE, MODE_SLEEP); err != nil {
		return nil, err
	}
	if err := r.writeReg(REG_OPMODE, MODE_LORA_SLEEP); err != nil {
		return nil, err
	}
	for i := 0; i < len(configRegs)-1; i += 2 {
		if err := r.writeReg(configRegs[i], configRegs[i+1]); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// SetDatarate selects the spreading-factor/bandwidth profile for subsequent
// transmissions. An unknown name is rejected and the active profile is left
// unchanged; there is no silent default.
func (r *Radio) SetDatarate(name string) error {
	dr, found := Datarates[name]
	if !found {
		return fmt.Errorf("%w: %q", ErrUnknownDatarate, name)
	}
	r.dr = dr
	r.log("rfm95: datarate %s (%#x %#x %#x)", name, dr.SF, dr.BW, dr.ModemCfg)
	return nil
}

// SetChannel selects the transmit channel of a single-channel radio. Radios
// in hopping mode draw a fresh channel for every transmission instead and
// reject explicit selection.
func (r *Radio) SetChannel(channel int) error {
	if !r.single {
		return ErrNotSingleChannel
	}
	if channel < 0 || channel > 7 {
		return fmt.Errorf("%w: %d", ErrBadChannel, channel)
	}
	r.channel = channel
	r.active = r.freqs[channel]
	return nil
}

// FrameCounter returns the frame counter of the last Send. The counter itself
// is owned by the caller, who must hand monotonically increasing values to
// Send; the driver only remembers the latest one.
func (r *Radio) FrameCounter() uint32 { return r.fcnt }

// Send assembles one unconfirmed uplink carrying payload and transmits it.
// It blocks until the radio reports TxDone or the poll budget is spent, then
// puts the radio to sleep. Send is fire-and-forget: no retransmission, and a
// spent poll budget is not reported as an error.
func (r *Radio) Send(payload []byte, fcnt uint32) error {
	frame, err := lorawan.BuildUplink(r.session, r.cipher, fcnt, payload)
	if err != nil {
		return err
	}
	r.fcnt = fcnt
	r.log("rfm95: sending %d byte frame, fcnt=%d", len(frame), fcnt)
	return r.transmit(frame)
}

// transmit walks the chip through one transmit cycle. The register sequence
// and its ordering are load-bearing: standby, interrupt routing, frequency,
// datarate, length, FIFO, transmit, sleep.
func (r *Radio) transmit(frame []byte) error {
	// Standby; the chip wants a quiet period before it honors more writes.
	if err := r.writeReg(REG_OPMODE, MODE_STANDBY); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)

	// Route TxDone to DIO0.
	if err := r.writeReg(REG_DIOMAPPING1, DIO0_TXDONE); err != nil {
		return err
	}

	// Hopping draws a pseudo-random channel per transmission.
	freq := r.active
	if !r.single {
		freq = r.freqs[r.rnd.Intn(len(r.freqs))]
	}
	if err := r.writeReg(REG_FRFMSB, freq[0]); err != nil {
		return err
	}
	if err := r.writeReg(REG_FRFMID, freq[1]); err != nil {
		return err
	}
	if err := r.writeReg(REG_FRFLSB, freq[2]); err != nil {
		return err
	}

	// The active datarate triplet.
	if err := r.writeReg(REG_MODEMCONF2, r.dr.SF); err != nil {
		return err
	}
	if err := r.writeReg(REG_MODEMCONF1, r.dr.BW); err != nil {
		return err
	}
	if err := r.writeReg(REG_MODEMCONF3, r.dr.ModemCfg); err != nil {
		return err
	}

	if err := r.writeReg(REG_PAYLENGTH, byte(len(frame))); err != nil {
		return err
	}

	// Load the frame into the TX half of the FIFO. The FIFO register does not
	// auto-increment, one byte per transaction.
	if err := r.writeReg(REG_FIFOPTR, fifoTxBase); err != nil {
		return err
	}
	for _, b := range frame {
		if err := r.writeReg(REG_FIFO, b); err != nil {
			return err
		}
	}

	if err := r.writeReg(REG_OPMODE, MODE_TX); err != nil {
		return err
	}

	// Wait for TxDone by sampling DIO0. The chip cannot abort a transmission
	// in flight, so a spent budget still falls through to sleep.
	attempts := int(r.txTimeout / r.pollInterval)
	if attempts < 1 {
		attempts = 1
	}
	done := false
	for i := 0; i < attempts; i++ {
		if r.intrPin.Read() == gpio.High {
			done = true
			break
		}
		time.Sleep(r.pollInterval)
	}
	if !done {
		r.log("rfm95: no TxDone after %d polls, the frame may not have left", attempts)
	}

	return r.writeReg(REG_OPMODE, MODE_SLEEP)
}

// writeReg writes one register. Bit 7 of the address frame marks the
// transaction as a write. An SPI error is a transport fault and aborts the
// current operation; nothing at this layer retries.
func (r *Radio) writeReg(addr, val byte) error {
	var buf [2]byte
	return r.spi.Tx([]byte{addr | 0x80, val}, buf[:])
}

// readReg reads one register and returns its value.
func (r *Radio) readReg(addr byte) (byte, error) {
	var buf [2]byte
	if err := r.spi.Tx([]byte{addr & 0x7F, 0}, buf[:]); err != nil {
		return 0, err
	}
	return buf[1], nil
}
