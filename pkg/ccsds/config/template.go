// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds"
)

// Recognised keys. Other keys, such as the sync_pattern settings used by
// transport framing, are parsed but not applied.
const (
	KeyVersion           = "ccsds_version_number"
	KeyType              = "ccsds_type"
	KeySecondaryFlag     = "ccsds_data_field_header_flag"
	KeyAPID              = "ccsds_APID"
	KeySegmented         = "ccsds_segmented"
	KeySequenceCount     = "ccsds_sequence_count"
	KeyDataFieldSize     = "data_field_size"
	KeySecondaryType     = "secondary_header_type"
	KeyPusVersion        = "pus_version"
	KeyPusServiceType    = "pus_service_type"
	KeyPusServiceSubtype = "pus_service_subtype"
	KeyPusSourceID       = "pus_source_id"
	KeyPusEventID        = "pus_event_id"
	KeyPusTimeCode       = "pus_time_code"
	KeyCRCEnable         = "crc_enable"
	KeyCRCPreset         = "crc_preset"
	KeyCRCPolynomial     = "crc_polynomial"
	KeyCRCInitial        = "crc_initial"
	KeyCRCCoverage       = "crc_coverage"
	KeyValidationEnable  = "validation_enable"
)

// Template is the packet layout described by a configuration.
type Template struct {
	Fields    ccsds.PrimaryFields
	Secondary ccsds.SecondaryHeader
	Variant   ccsds.Variant

	// DataFieldSize is the largest data field per packet, secondary
	// header and trailer included. Zero means no limit.
	DataFieldSize int
	Segmented     bool

	ValidationEnabled bool

	Checksum bool
	CRC      ccsds.CRC16Config
	Coverage ccsds.Coverage
}

// Options returns the packet options the template implies.
func (t *Template) Options() []ccsds.Option {
	opts := []ccsds.Option{ccsds.WithVariant(t.Variant), ccsds.WithCoverage(t.Coverage)}
	if t.Checksum {
		opts = append(opts, ccsds.WithChecksum(t.CRC))
	}
	return opts
}

// Segmenter returns a segmenter producing packets shaped by the template.
func (t *Template) Segmenter() (*ccsds.Segmenter, error) {
	s := &ccsds.Segmenter{
		Fields:             t.Fields,
		Secondary:          t.Secondary,
		RequireUnsegmented: !t.Segmented,
		Options:            t.Options(),
	}
	if t.DataFieldSize > 0 {
		overhead := t.Variant.Size()
		if t.Checksum {
			overhead += ccsds.ChecksumSize
		}
		s.MaxUserData = t.DataFieldSize - overhead
		if s.MaxUserData < 1 {
			return nil, fmt.Errorf("%s %d leaves no room for user data after %d octets of overhead",
				KeyDataFieldSize, t.DataFieldSize, overhead)
		}
	}
	return s, nil
}

// Packet returns a reference packet for template validation. The payload
// is a single placeholder octet.
func (t *Template) Packet() (*ccsds.Packet, error) {
	return ccsds.NewPacket(t.Fields, t.Secondary, []byte{0}, t.Options()...)
}

// Validator returns a validator checking packets against the template.
func (t *Template) Validator() (*ccsds.Validator, error) {
	ref, err := t.Packet()
	if err != nil {
		return nil, err
	}
	return &ccsds.Validator{
		Template:       ref,
		CheckCoherence: true,
		CheckTemplate:  t.ValidationEnabled,
		Options:        t.Options(),
	}, nil
}

// Template builds the packet template described by the configuration.
// Only ccsds_APID is required.
func (c *Config) Template() (*Template, error) {
	t := &Template{Segmented: true}
	t.Fields.SequenceFlags = ccsds.Unsegmented

	apid, err := c.Int(KeyAPID)
	if err != nil {
		return nil, err
	}
	if apid < 0 || apid > ccsds.MaxAPID {
		return nil, fmt.Errorf("%s %d out of range", KeyAPID, apid)
	}
	t.Fields.APID = uint16(apid)

	if err := c.optUint(KeyVersion, ccsds.MaxVersion, func(v uint64) { t.Fields.Version = uint8(v) }); err != nil {
		return nil, err
	}
	if err := c.optUint(KeySequenceCount, ccsds.MaxSequenceCount, func(v uint64) { t.Fields.SequenceCount = uint16(v) }); err != nil {
		return nil, err
	}
	if c.Has(KeyType) {
		tc, err := c.Bool(KeyType)
		if err != nil {
			return nil, err
		}
		if tc {
			t.Fields.Type = ccsds.Telecommand
		}
	}
	if c.Has(KeySegmented) {
		if t.Segmented, err = c.Bool(KeySegmented); err != nil {
			return nil, err
		}
	}
	if err := c.optUint(KeyDataFieldSize, ccsds.MaxDataFieldSize, func(v uint64) { t.DataFieldSize = int(v) }); err != nil {
		return nil, err
	}
	if c.Has(KeyValidationEnable) {
		if t.ValidationEnabled, err = c.Bool(KeyValidationEnable); err != nil {
			return nil, err
		}
	}

	if err := c.secondary(t); err != nil {
		return nil, err
	}
	if err := c.checksum(t); err != nil {
		return nil, err
	}

	return t, nil
}

func (c *Config) optUint(key string, limit uint64, set func(uint64)) error {
	if !c.Has(key) {
		return nil
	}
	v, err := c.Int(key)
	if err != nil {
		return err
	}
	if v < 0 || uint64(v) > limit {
		return fmt.Errorf("%s %d out of range 0..%d", key, v, limit)
	}
	set(uint64(v))
	return nil
}

func (c *Config) secondary(t *Template) error {
	if c.Has(KeySecondaryType) {
		name, err := c.String(KeySecondaryType)
		if err != nil {
			return err
		}
		if t.Variant, err = ccsds.ParseVariant(name); err != nil {
			return err
		}
	}

	if c.Has(KeySecondaryFlag) {
		flag, err := c.Bool(KeySecondaryFlag)
		if err != nil {
			return err
		}
		if flag != (t.Variant != ccsds.VariantNone) {
			return fmt.Errorf("%s=%t contradicts %s=%s", KeySecondaryFlag, flag, KeySecondaryType, t.Variant)
		}
	}
	if t.Variant == ccsds.VariantNone {
		return nil
	}

	var pc ccsds.PusCommon
	var eventID, timeCode uint64
	for _, f := range []struct {
		key   string
		limit uint64
		set   func(uint64)
	}{
		{KeyPusVersion, ccsds.MaxVersion, func(v uint64) { pc.Version = uint8(v) }},
		{KeyPusServiceType, 0xFF, func(v uint64) { pc.ServiceType = uint8(v) }},
		{KeyPusServiceSubtype, 0xFF, func(v uint64) { pc.ServiceSubtype = uint8(v) }},
		{KeyPusSourceID, 0xFF, func(v uint64) { pc.SourceID = uint8(v) }},
		{KeyPusEventID, 0xFF, func(v uint64) { eventID = v }},
		{KeyPusTimeCode, 0xFFFF, func(v uint64) { timeCode = v }},
	} {
		if err := c.optUint(f.key, f.limit, f.set); err != nil {
			return err
		}
	}

	switch t.Variant {
	case ccsds.VariantPusA:
		t.Secondary = ccsds.NewPusA(pc)
	case ccsds.VariantPusB:
		t.Secondary = ccsds.NewPusB(pc, uint8(eventID))
	case ccsds.VariantPusC:
		t.Secondary = ccsds.NewPusC(pc, uint16(timeCode))
	}
	return nil
}

func (c *Config) checksum(t *Template) error {
	if c.Has(KeyCRCEnable) {
		var err error
		if t.Checksum, err = c.Bool(KeyCRCEnable); err != nil {
			return err
		}
	}

	t.CRC = ccsds.DefaultCRC16Config()
	if c.Has(KeyCRCPreset) {
		name, err := c.String(KeyCRCPreset)
		if err != nil {
			return err
		}
		if t.CRC, err = ccsds.CRC16Preset(name); err != nil {
			return err
		}
	}
	if c.Has(KeyCRCPolynomial) || c.Has(KeyCRCInitial) {
		t.CRC.Name = "custom"
		if err := c.optUint(KeyCRCPolynomial, 0xFFFF, func(v uint64) { t.CRC.Polynomial = uint16(v) }); err != nil {
			return err
		}
		if err := c.optUint(KeyCRCInitial, 0xFFFF, func(v uint64) { t.CRC.Initial = uint16(v) }); err != nil {
			return err
		}
	}
	if err := t.CRC.Validate(); err != nil {
		return err
	}

	if c.Has(KeyCRCCoverage) {
		s, err := c.String(KeyCRCCoverage)
		if err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "packet":
			t.Coverage = ccsds.CoverPacket
		case "data_field", "datafield":
			t.Coverage = ccsds.CoverDataField
		default:
			return errors.New(KeyCRCCoverage + ": expected packet or data_field")
		}
	}
	return nil
}
