// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// PacketRecord is a flat, serializable view of a packet. CBOR uses small
// integer keys, JSON uses names.
type PacketRecord struct {
	Version        uint8   `cbor:"0,keyasint" json:"version"`
	Type           string  `cbor:"1,keyasint" json:"type"`
	APID           uint16  `cbor:"2,keyasint" json:"apid"`
	SequenceFlags  string  `cbor:"3,keyasint" json:"sequence_flags"`
	SequenceCount  uint16  `cbor:"4,keyasint" json:"sequence_count"`
	DataLength     uint16  `cbor:"5,keyasint" json:"data_length"`
	Variant        string  `cbor:"6,keyasint" json:"variant"`
	PusVersion     uint8   `cbor:"7,keyasint,omitempty" json:"pus_version,omitempty"`
	ServiceType    uint8   `cbor:"8,keyasint,omitempty" json:"service_type,omitempty"`
	ServiceSubtype uint8   `cbor:"9,keyasint,omitempty" json:"service_subtype,omitempty"`
	SourceID       uint8   `cbor:"10,keyasint,omitempty" json:"source_id,omitempty"`
	EventID        uint8   `cbor:"11,keyasint,omitempty" json:"event_id,omitempty"`
	TimeCode       uint16  `cbor:"12,keyasint,omitempty" json:"time_code,omitempty"`
	UserData       []byte  `cbor:"13,keyasint" json:"user_data"`
	Checksum       *uint16 `cbor:"14,keyasint,omitempty" json:"checksum,omitempty"`
}

// Record returns the serializable view of p.
func (p *Packet) Record() PacketRecord {
	r := PacketRecord{
		Version:       p.primary.Version,
		Type:          p.primary.Type.String(),
		APID:          p.primary.APID,
		SequenceFlags: p.primary.SequenceFlags.String(),
		SequenceCount: p.primary.SequenceCount,
		DataLength:    p.primary.DataLength,
		Variant:       p.Variant().String(),
		UserData:      p.UserData(),
	}
	if sh := p.data.secondary; sh != nil {
		c := sh.Common()
		r.PusVersion = c.Version
		r.ServiceType = c.ServiceType
		r.ServiceSubtype = c.ServiceSubtype
		r.SourceID = c.SourceID
		switch h := sh.(type) {
		case PusB:
			r.EventID = h.EventID
		case PusC:
			r.TimeCode = h.TimeCode
		}
	}
	if crc, ok := p.Checksum(); ok {
		r.Checksum = &crc
	}
	return r
}

// Packet rebuilds a packet from the record. Length fields and the
// checksum are recomputed; opts select the error control.
func (r PacketRecord) Packet(opts ...Option) (*Packet, error) {
	fields := PrimaryFields{
		Version:       r.Version,
		APID:          r.APID,
		SequenceCount: r.SequenceCount,
	}

	switch r.Type {
	case "TM", "":
		fields.Type = Telemetry
	case "TC":
		fields.Type = Telecommand
	default:
		return nil, fmt.Errorf("%w: packet type %q", ErrFieldRange, r.Type)
	}

	flags, err := parseSequenceFlag(r.SequenceFlags)
	if err != nil {
		return nil, err
	}
	fields.SequenceFlags = flags

	variant, err := ParseVariant(r.Variant)
	if err != nil {
		return nil, err
	}
	c := PusCommon{
		Version:        r.PusVersion,
		ServiceType:    r.ServiceType,
		ServiceSubtype: r.ServiceSubtype,
		SourceID:       r.SourceID,
	}
	var sh SecondaryHeader
	switch variant {
	case VariantPusA:
		sh = NewPusA(c)
	case VariantPusB:
		sh = NewPusB(c, r.EventID)
	case VariantPusC:
		sh = NewPusC(c, r.TimeCode)
	}

	return NewPacket(fields, sh, r.UserData, opts...)
}

func parseSequenceFlag(s string) (SequenceFlag, error) {
	for f := SegmentContinuation; f <= Unsegmented; f++ {
		if s == f.String() {
			return f, nil
		}
	}
	if s == "" {
		return Unsegmented, nil
	}
	return 0, fmt.Errorf("%w: sequence flags %q", ErrFieldRange, s)
}

// Records returns the records of every packet in insertion order.
func (m *Manager) Records() []PacketRecord {
	out := make([]PacketRecord, 0, len(m.packets))
	for _, p := range m.packets {
		out = append(out, p.Record())
	}
	return out
}

// MarshalRecordsCBOR encodes records as a CBOR array.
func MarshalRecordsCBOR(records []PacketRecord) ([]byte, error) {
	data, err := cbor.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return data, nil
}

// UnmarshalRecordsCBOR decodes a CBOR array of records.
func UnmarshalRecordsCBOR(data []byte) ([]PacketRecord, error) {
	var records []PacketRecord
	if err := cbor.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return records, nil
}
