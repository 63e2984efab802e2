// Copyright 2021 by the minilora authors, see LICENSE file

// lora-send transmits a single LoRaWAN uplink and exits. It is a wiring test:
// point it at the SPI port and pins of an RFM95 breakout, hand it the ABP
// session credentials from the network console, and watch the frame arrive.
package main

import (
	"encoding/hex"
	"flag"
	"log"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/minilora/minilora/lorawan"
	"github.com/minilora/minilora/region"
	"github.com/minilora/minilora/rfm95"
	"github.com/minilora/minilora/spics"
)

func panicIf(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	spiPort := flag.String("spi", "", "SPI port name, empty for the first available")
	csPin := flag.String("cs", "GPIO8", "chip select pin name")
	intrPin := flag.String("intr", "GPIO25", "DIO0 interrupt pin name")
	regionName := flag.String("region", "EU", "frequency plan: US, EU, AU or AS")
	datarate := flag.String("datarate", "SF7BW125", "datarate profile")
	channel := flag.Int("channel", -1, "fixed channel 0-7, -1 to hop")
	devAddr := flag.String("devaddr", "", "device address, 8 hex digits")
	nwkSKey := flag.String("nwkskey", "", "network session key, 32 hex digits")
	appSKey := flag.String("appskey", "", "application session key, 32 hex digits")
	fcnt := flag.Uint("fcnt", 0, "frame counter for this uplink")
	verbose := flag.Bool("v", false, "log radio chatter")
	flag.Parse()

	msg := strings.Join(flag.Args(), " ")
	if msg == "" {
		msg = "hello"
	}

	reg, err := region.Parse(*regionName)
	panicIf(err)
	session := lorawan.Session{Region: reg}
	copy(session.DevAddr[:], mustHex("devaddr", *devAddr, 4))
	copy(session.NwkSKey[:], mustHex("nwkskey", *nwkSKey, 16))
	copy(session.AppSKey[:], mustHex("appskey", *appSKey, 16))

	_, err = host.Init()
	panicIf(err)

	port, err := spireg.Open(*spiPort)
	panicIf(err)
	defer port.Close()
	c, err := port.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	panicIf(err)

	cs := gpioreg.ByName(*csPin)
	if cs == nil {
		log.Fatalf("cannot open pin %s", *csPin)
	}
	intr := gpioreg.ByName(*intrPin)
	if intr == nil {
		log.Fatalf("cannot open pin %s", *intrPin)
	}

	opts := rfm95.RadioOpts{Datarate: *datarate}
	if *verbose {
		opts.Logger = log.Printf
	}
	if *channel >= 0 {
		opts.SingleChannel = true
		opts.Channel = *channel
	}

	log.Printf("Initializing LoRa radio...")
	t0 := time.Now()
	radio, err := rfm95.New(spics.New(c, cs), intr, session, opts)
	panicIf(err)
	log.Printf("Ready (%.1fms)", time.Since(t0).Seconds()*1000)

	log.Printf("Sending %q, fcnt=%d ...", msg, *fcnt)
	t0 = time.Now()
	panicIf(radio.Send([]byte(msg), uint32(*fcnt)))
	log.Printf("Sent in %.1fs", time.Since(t0).Seconds())
}

func mustHex(name, value string, n int) []byte {
	b, err := hex.DecodeString(value)
	if err != nil || len(b) != n {
		log.Fatalf("-%s must be %d hex digits", name, 2*n)
	}
	return b
}
