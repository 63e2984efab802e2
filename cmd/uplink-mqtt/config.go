// Copyright 2021 by the minilora authors, see LICENSE file

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the yaml configuration of the bridge.
type Config struct {
	Mqtt    MqttConfig    `yaml:"mqtt"`
	Radio   RadioConfig   `yaml:"radio"`
	Session SessionConfig `yaml:"session"`
}

// MqttConfig describes the broker connection and the topics used. Broker
// takes the usual tcp://host:port form.
type MqttConfig struct {
	Broker      string `yaml:"broker"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Topic       string `yaml:"topic"`        // readings arrive here as JSON int arrays
	StatusTopic string `yaml:"status_topic"` // one report is published here per uplink
}

// RadioConfig names the SPI port and pins the radio is wired to.
type RadioConfig struct {
	SpiPort  string `yaml:"spi_port"`
	CsPin    string `yaml:"cs_pin"`
	IntrPin  string `yaml:"intr_pin"`
	Datarate string `yaml:"datarate"`
	Channel  int    `yaml:"channel"` // fixed channel 0-7, -1 to hop
}

// SessionConfig holds the ABP credentials as hex strings.
type SessionConfig struct {
	Region  string `yaml:"region"`
	DevAddr string `yaml:"dev_addr"`
	NwkSKey string `yaml:"nwk_s_key"`
	AppSKey string `yaml:"app_s_key"`
	Fcnt    uint32 `yaml:"fcnt"` // starting frame counter
}

func loadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	cfg := &Config{
		Mqtt: MqttConfig{
			Broker:      "tcp://localhost:1883",
			Topic:       "uplink/readings",
			StatusTopic: "uplink/status",
		},
		Radio: RadioConfig{
			CsPin:    "GPIO8",
			IntrPin:  "GPIO25",
			Datarate: "SF7BW125",
			Channel:  -1,
		},
		Session: SessionConfig{Region: "EU"},
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return cfg, nil
}
