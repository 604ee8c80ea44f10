// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"math/bits"
	"sort"
	"strings"

	"github.com/sigurn/crc16"
)

// CRC16Config selects the CRC-16 variant used for packet error control.
// The same config must be used to encode and to verify a trailer.
type CRC16Config struct {
	Name       string
	Polynomial uint16
	Initial    uint16
	ReflectIn  bool
	ReflectOut bool
	FinalXOR   uint16
}

// DefaultCRC16Config returns CRC-16/CCITT-FALSE, the CCSDS packet error
// control variant.
func DefaultCRC16Config() CRC16Config {
	return CRC16Config{
		Name:       "CRC-16/CCITT-FALSE",
		Polynomial: crcPolynomial,
		Initial:    crcInitial,
	}
}

// Validate checks that the polynomial can drive the register.
func (c CRC16Config) Validate() error {
	if c.Polynomial == 0 {
		return &ChecksumError{Config: c, Reason: "polynomial is zero"}
	}
	if c.Polynomial&1 == 0 {
		return &ChecksumError{Config: c, Reason: "polynomial has no x^0 term"}
	}
	return nil
}

// CalculateCRC computes CRC-16/CCITT-FALSE for the given data
func CalculateCRC(data []byte) uint16 {
	return computeCRC16(data, DefaultCRC16Config())
}

// ComputeCRC16 computes the checksum of data under cfg.
// Empty input yields the initial register value after the output transform.
func ComputeCRC16(data []byte, cfg CRC16Config) (uint16, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	return computeCRC16(data, cfg), nil
}

func computeCRC16(data []byte, cfg CRC16Config) uint16 {
	crc := cfg.Initial
	for _, b := range data {
		if cfg.ReflectIn {
			b = bits.Reverse8(b)
		}
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ cfg.Polynomial
			} else {
				crc <<= 1
			}
		}
	}
	if cfg.ReflectOut {
		crc = bits.Reverse16(crc)
	}
	return crc ^ cfg.FinalXOR
}

// crcCatalogue holds the named variants accepted by CRC16Preset.
var crcCatalogue = map[string]crc16.Params{}

func init() {
	for _, p := range []crc16.Params{
		crc16.CRC16_CCITT_FALSE,
		crc16.CRC16_XMODEM,
		crc16.CRC16_KERMIT,
		crc16.CRC16_ARC,
		crc16.CRC16_MODBUS,
		crc16.CRC16_X_25,
		crc16.CRC16_USB,
		crc16.CRC16_MCRF4XX,
		crc16.CRC16_AUG_CCITT,
		crc16.CRC16_GENIBUS,
		crc16.CRC16_BUYPASS,
	} {
		crcCatalogue[normalizeCRCName(p.Name)] = p
	}
}

func normalizeCRCName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "-")
	return strings.TrimPrefix(name, "CRC-16/")
}

// CRC16Preset returns a named CRC-16 variant, e.g. "CRC-16/XMODEM" or "kermit".
func CRC16Preset(name string) (CRC16Config, error) {
	p, ok := crcCatalogue[normalizeCRCName(name)]
	if !ok {
		return CRC16Config{}, &ChecksumError{
			Config: CRC16Config{Name: name},
			Reason: "unknown preset (known: " + strings.Join(CRC16PresetNames(), ", ") + ")",
		}
	}
	return configFromParams(p), nil
}

// CRC16PresetNames lists the preset names in sorted order.
func CRC16PresetNames() []string {
	names := make([]string, 0, len(crcCatalogue))
	for _, p := range crcCatalogue {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

func configFromParams(p crc16.Params) CRC16Config {
	return CRC16Config{
		Name:       p.Name,
		Polynomial: p.Poly,
		Initial:    p.Init,
		ReflectIn:  p.RefIn,
		ReflectOut: p.RefOut,
		FinalXOR:   p.XorOut,
	}
}
