// Copyright 2021 by the minilora authors, see LICENSE file

// Package minilora is a collection of small packages for transmitting LoRaWAN
// uplinks from an ABP session through a HopeRF RFM95/96/97/98(W) radio attached
// to an SPI bus. It uses periph.io for the low level access to the hardware
// pins. The frame assembly, the regional frequency plans, the chip-select
// gated SPI transport and the radio driver each live in their own directory
// and are stand-alone. Simple commands to exercise the radio can be found in
// the cmd directory tree.
package minilora
