// Copyright 2021 by the minilora authors, see LICENSE file

package rfm95

const (
	REG_FIFO        = 0x00
	REG_OPMODE      = 0x01
	REG_FRFMSB      = 0x06
	REG_FRFMID      = 0x07
	REG_FRFLSB      = 0x08
	REG_PACONFIG    = 0x09
	REG_FIFOPTR     = 0x0D
	REG_FIFOTXBASE  = 0x0E
	REG_FIFORXBASE  = 0x0F
	REG_MODEMCONF1  = 0x1D // bandwidth, coding rate, header mode
	REG_MODEMCONF2  = 0x1E // spreading factor, CRC
	REG_SYMBTIMEOUT = 0x1F
	REG_PREAMBLEMSB = 0x20
	REG_PREAMBLELSB = 0x21
	REG_PAYLENGTH   = 0x22
	REG_MODEMCONF3  = 0x26 // low-datarate-optimize, AGC
	REG_INVERTIQ    = 0x33
	REG_SYNC        = 0x39
	REG_INVERTIQ2   = 0x3B
	REG_DIOMAPPING1 = 0x40
	REG_VERSION     = 0x42
)

// Operating mode register values.
const (
	MODE_SLEEP      = 0x00
	MODE_LORA_SLEEP = 0x80 // the LoRa bit can only change while asleep
	MODE_STANDBY    = 0x01
	MODE_TX         = 0x83 // LoRa transmit
)

const (
	DIO0_TXDONE = 0x40 // DIO mapping 1 value routing TxDone to DIO0

	fifoTxBase  = 0x80 // TX half of the FIFO
	fifoSize    = 64   // whole FIFO, bounds the frame
	chipVersion = 18   // expected RegVersion readback for an SX1276/RFM95
	syncWord    = 0x34 // public LoRaWAN networks
)

// register values to initialize the chip once it is in LoRa sleep,
// this array has pairs of <address, data>
var configRegs = []byte{
	REG_PACONFIG, 0xFF, // max output power
	REG_SYMBTIMEOUT, 0x25, // RX symbol timeout
	REG_PREAMBLEMSB, 0x00, REG_PREAMBLELSB, 0x08, // preamble of 8
	REG_MODEMCONF3, 0x0C, // AGC auto on, low-datarate-optimize off
	REG_SYNC, syncWord,
	REG_INVERTIQ, 0x27, REG_INVERTIQ2, 0x1D, // normal IQ polarity
	REG_FIFOTXBASE, fifoTxBase,
	REG_FIFORXBASE, 0x00,
}

// Datarate holds the register triplet for one spreading-factor/bandwidth
// profile: the chip's literal encodings of RegModemConfig2 (SF, CRC on),
// RegModemConfig1 (BW, 4/5 coding rate, explicit header) and RegModemConfig3.
// The three bytes are only ever written together.
type Datarate struct {
	SF       byte
	BW       byte
	ModemCfg byte
}

// Datarates is the table of supported datarate profiles. The SF11/SF12
// entries turn on low-datarate-optimize, the rest leave it off.
var Datarates = map[string]Datarate{
	"SF7BW125":  {0x74, 0x72, 0x04},
	"SF7BW250":  {0x74, 0x82, 0x04},
	"SF8BW125":  {0x84, 0x72, 0x04},
	"SF9BW125":  {0x94, 0x72, 0x04},
	"SF10BW125": {0xA4, 0x72, 0x04},
	"SF11BW125": {0xB4, 0x72, 0x0C},
	"SF12BW125": {0xC4, 0x72, 0x0C},
}
