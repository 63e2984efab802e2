// Copyright 2021 by the minilora authors, see LICENSE file

// uplink-mqtt bridges an MQTT topic onto LoRaWAN uplinks. Sensor readings
// arrive on the subscribed topic as JSON arrays of integers, are packed into
// a compact varint payload and transmitted through the radio with a
// monotonically increasing frame counter. A small JSON report is published
// for every uplink.
//
// Sends are serialized: the radio is a single shared register file, so one
// uplink at a time, and a reading that arrives while a transmission is in
// flight simply waits its turn.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/minilora/minilora/lorawan"
	"github.com/minilora/minilora/region"
	"github.com/minilora/minilora/rfm95"
	"github.com/minilora/minilora/spics"
	"github.com/minilora/minilora/varint"
)

// bridge owns the radio and the frame counter; sendMu enforces the radio's
// single-owner discipline.
type bridge struct {
	radio  *rfm95.Radio
	log    zerolog.Logger
	sendMu sync.Mutex
	fcnt   uint32
}

func main() {
	confPath := flag.String("config", "uplink-mqtt.yml", "path to the yaml configuration")
	debug := flag.Bool("debug", false, "log radio chatter")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := loadConfig(*confPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration")
	}

	session, err := makeSession(cfg.Session)
	if err != nil {
		log.Fatal().Err(err).Msg("session")
	}

	radio, err := openRadio(cfg.Radio, session, *debug, log)
	if err != nil {
		log.Fatal().Err(err).Msg("radio")
	}
	log.Info().Str("region", cfg.Session.Region).Str("datarate", cfg.Radio.Datarate).
		Msg("radio ready")

	b := &bridge{radio: radio, log: log, fcnt: cfg.Session.Fcnt}

	hostname, _ := os.Hostname()
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Mqtt.Broker).
		SetClientID("uplink-mqtt-" + hostname).
		SetUsername(cfg.Mqtt.User).
		SetPassword(cfg.Mqtt.Password)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("cannot connect to broker")
	}
	log.Info().Str("broker", cfg.Mqtt.Broker).Msg("mqtt connected")

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		report, err := b.uplink(msg.Payload())
		if err != nil {
			log.Error().Err(err).Msg("uplink failed")
			return
		}
		if cfg.Mqtt.StatusTopic != "" {
			raw, _ := json.Marshal(report)
			client.Publish(cfg.Mqtt.StatusTopic, 0, false, raw)
		}
	}
	if token := client.Subscribe(cfg.Mqtt.Topic, 1, handler); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("cannot subscribe")
	}
	log.Info().Str("topic", cfg.Mqtt.Topic).Msg("bridging readings to uplinks")

	select {}
}

// sendReport is the status message published after each uplink.
type sendReport struct {
	Fcnt     uint32 `json:"fcnt"`
	Readings int    `json:"readings"`
	Bytes    int    `json:"bytes"`
	Millis   int64  `json:"millis"`
}

// uplink packs one batch of readings and transmits it.
func (b *bridge) uplink(raw []byte) (*sendReport, error) {
	var readings []int
	if err := json.Unmarshal(raw, &readings); err != nil {
		return nil, fmt.Errorf("readings must be a JSON array of integers: %w", err)
	}
	payload := varint.Encode(readings)
	if len(payload) > lorawan.MaxPayload {
		return nil, fmt.Errorf("%d readings pack to %d bytes, max %d",
			len(readings), len(payload), lorawan.MaxPayload)
	}

	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	b.fcnt++
	t0 := time.Now()
	if err := b.radio.Send(payload, b.fcnt); err != nil {
		return nil, err
	}
	report := &sendReport{
		Fcnt:     b.fcnt,
		Readings: len(readings),
		Bytes:    len(payload),
		Millis:   time.Since(t0).Milliseconds(),
	}
	b.log.Info().Uint32("fcnt", report.Fcnt).Int("bytes", report.Bytes).
		Int64("millis", report.Millis).Msg("uplink sent")
	return report, nil
}

func makeSession(cfg SessionConfig) (lorawan.Session, error) {
	var s lorawan.Session
	reg, err := region.Parse(cfg.Region)
	if err != nil {
		return s, err
	}
	s.Region = reg
	if err := hexInto(s.DevAddr[:], cfg.DevAddr, "dev_addr"); err != nil {
		return s, err
	}
	if err := hexInto(s.NwkSKey[:], cfg.NwkSKey, "nwk_s_key"); err != nil {
		return s, err
	}
	if err := hexInto(s.AppSKey[:], cfg.AppSKey, "app_s_key"); err != nil {
		return s, err
	}
	return s, nil
}

func hexInto(dst []byte, value, name string) error {
	b, err := hex.DecodeString(value)
	if err != nil || len(b) != len(dst) {
		return fmt.Errorf("%s must be %d hex digits", name, 2*len(dst))
	}
	copy(dst, b)
	return nil
}

func openRadio(cfg RadioConfig, session lorawan.Session, debug bool, log zerolog.Logger) (*rfm95.Radio, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	port, err := spireg.Open(cfg.SpiPort)
	if err != nil {
		return nil, err
	}
	c, err := port.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}
	cs := gpioreg.ByName(cfg.CsPin)
	if cs == nil {
		return nil, fmt.Errorf("cannot open pin %s", cfg.CsPin)
	}
	intr := gpioreg.ByName(cfg.IntrPin)
	if intr == nil {
		return nil, fmt.Errorf("cannot open pin %s", cfg.IntrPin)
	}

	opts := rfm95.RadioOpts{Datarate: cfg.Datarate}
	if cfg.Channel >= 0 {
		opts.SingleChannel = true
		opts.Channel = cfg.Channel
	}
	if debug {
		opts.Logger = func(format string, v ...interface{}) {
			log.Debug().Msgf(format, v...)
		}
	}
	return rfm95.New(spics.New(c, cs), intr, session, opts)
}
