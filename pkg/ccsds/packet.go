// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"encoding/binary"
	"fmt"
	"time"
)

// PrimaryFields are the caller-supplied primary header fields. The
// secondary header flag and the data length are derived by NewPacket.
type PrimaryFields struct {
	Version       uint8
	Type          PacketType
	APID          uint16
	SequenceFlags SequenceFlag
	SequenceCount uint16
}

// Fields returns the caller-controlled part of the header.
func (h PrimaryHeader) Fields() PrimaryFields {
	return PrimaryFields{
		Version:       h.Version,
		Type:          h.Type,
		APID:          h.APID,
		SequenceFlags: h.SequenceFlags,
		SequenceCount: h.SequenceCount,
	}
}

// Option configures packet composition and decoding.
type Option func(*options)

type options struct {
	checksum bool
	crc      CRC16Config
	coverage Coverage
	variant  Variant
}

func buildOptions(opts []Option) options {
	o := options{crc: DefaultCRC16Config(), coverage: CoverPacket}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithChecksum enables the packet error control trailer using cfg.
func WithChecksum(cfg CRC16Config) Option {
	return func(o *options) {
		o.checksum = true
		o.crc = cfg
	}
}

// WithoutChecksum disables the trailer.
func WithoutChecksum() Option {
	return func(o *options) {
		o.checksum = false
	}
}

// WithCoverage selects which octets the trailer covers. Default is CoverPacket.
func WithCoverage(c Coverage) Option {
	return func(o *options) {
		o.coverage = c
	}
}

// WithVariant sets the secondary header variant expected by DecodePacket.
// It is ignored by NewPacket, which takes the variant from the header.
func WithVariant(v Variant) Option {
	return func(o *options) {
		o.variant = v
	}
}

// Packet is an immutable CCSDS space packet.
type Packet struct {
	primary  PrimaryHeader
	data     DataField
	checksum bool
	crc      CRC16Config
	coverage Coverage

	timestamp time.Time
}

// NewPacket composes a packet from its parts. The secondary header flag,
// the secondary header data length and the primary data length are
// computed here. sh may be nil for packets without a secondary header.
func NewPacket(fields PrimaryFields, sh SecondaryHeader, payload []byte, opts ...Option) (*Packet, error) {
	o := buildOptions(opts)

	if v, ok := nilHeader(sh); ok {
		return nil, &PacketError{Layer: LayerSecondaryHeader, Err: &HeaderError{
			Layer:   LayerSecondaryHeader,
			Variant: v,
			Err:     ErrUninitializedHeader,
			Detail:  "nil pointer",
		}}
	}

	primary := PrimaryHeader{
		Version:             fields.Version,
		Type:                fields.Type,
		SecondaryHeaderFlag: sh != nil,
		APID:                fields.APID,
		SequenceFlags:       fields.SequenceFlags,
		SequenceCount:       fields.SequenceCount,
	}
	if err := primary.Validate(); err != nil {
		return nil, &PacketError{Layer: LayerPrimaryHeader, Err: err}
	}

	if sh != nil {
		if !sh.initialized() {
			return nil, &PacketError{Layer: LayerSecondaryHeader, Err: &HeaderError{
				Layer:   LayerSecondaryHeader,
				Variant: sh.Variant(),
				Err:     ErrUninitializedHeader,
			}}
		}
		var err error
		if sh, err = sh.withDataLength(len(payload)); err != nil {
			return nil, &PacketError{Layer: LayerSecondaryHeader, Err: err}
		}
	}

	if o.checksum {
		if err := o.crc.Validate(); err != nil {
			return nil, &PacketError{Layer: LayerChecksum, Err: err}
		}
	}

	df := DataField{secondary: sh, userData: append([]byte{}, payload...), hasChecksum: o.checksum}
	size := df.Len()
	if size < MinDataFieldSize || size > MaxDataFieldSize {
		return nil, &PacketError{
			Layer:    LayerLength,
			Err:      fmt.Errorf("%w: %d octets (allowed %d..%d)", ErrDataFieldSize, size, MinDataFieldSize, MaxDataFieldSize),
			Expected: MaxDataFieldSize,
			Actual:   size,
		}
	}
	primary.DataLength = uint16(size - 1)

	p := &Packet{
		primary:   primary,
		data:      df,
		checksum:  o.checksum,
		crc:       o.crc,
		coverage:  o.coverage,
		timestamp: time.Now(),
	}
	if o.checksum {
		p.data.checksum = computeCRC16(p.covered(), o.crc)
	}
	return p, nil
}

// covered returns the octets protected by the trailer.
func (p *Packet) covered() []byte {
	var buf []byte
	if p.coverage == CoverPacket {
		buf = make([]byte, PrimaryHeaderSize, p.Len())
		p.primary.put(buf)
	}
	return p.data.appendTo(buf, false)
}

// Encode returns primary header, secondary header, user data and trailer.
func (p *Packet) Encode() []byte {
	buf := make([]byte, PrimaryHeaderSize, p.Len())
	p.primary.put(buf)
	return p.data.appendTo(buf, true)
}

// DecodePacket parses a single packet occupying all of b. Layers are
// checked in order: primary header, secondary header, length, checksum,
// then the secondary header data length against the user data. Any
// failure returns a *PacketError and no packet.
func DecodePacket(b []byte, opts ...Option) (*Packet, error) {
	o := buildOptions(opts)

	primary, err := DecodePrimaryHeader(b)
	if err != nil {
		return nil, &PacketError{Layer: LayerPrimaryHeader, Err: err}
	}
	rest := b[PrimaryHeaderSize:]

	var sh SecondaryHeader
	if primary.SecondaryHeaderFlag {
		if o.variant == VariantNone {
			return nil, &PacketError{Layer: LayerSecondaryHeader, Err: &HeaderError{
				Layer:  LayerSecondaryHeader,
				Err:    ErrVariantMismatch,
				Detail: "secondary header flag set but no variant expected",
			}}
		}
		if sh, err = DecodeSecondaryHeader(rest, o.variant); err != nil {
			return nil, &PacketError{Layer: LayerSecondaryHeader, Err: err}
		}
	}

	if want := primary.DataFieldLength(); want != len(rest) {
		return nil, &PacketError{
			Layer:    LayerLength,
			Err:      ErrLengthMismatch,
			Expected: want,
			Actual:   len(rest),
		}
	}

	minimum := 0
	if sh != nil {
		minimum += sh.Size()
	}
	if o.checksum {
		if err := o.crc.Validate(); err != nil {
			return nil, &PacketError{Layer: LayerChecksum, Err: err}
		}
		minimum += ChecksumSize
	}
	if len(rest) < minimum {
		return nil, &PacketError{
			Layer:    LayerLength,
			Err:      ErrTruncated,
			Expected: minimum,
			Actual:   len(rest),
		}
	}

	end := len(b)
	var trailer uint16
	if o.checksum {
		end -= ChecksumSize
		trailer = binary.BigEndian.Uint16(b[end:])
		start := 0
		if o.coverage == CoverDataField {
			start = PrimaryHeaderSize
		}
		if got := computeCRC16(b[start:end], o.crc); got != trailer {
			return nil, &PacketError{
				Layer:    LayerChecksum,
				Err:      ErrChecksumMismatch,
				Expected: int(got),
				Actual:   int(trailer),
			}
		}
	}

	payloadStart := PrimaryHeaderSize + minimum
	if o.checksum {
		payloadStart -= ChecksumSize
	}
	payload := append([]byte{}, b[payloadStart:end]...)

	if sh != nil && sh.UserDataLength() != len(payload) {
		return nil, &PacketError{
			Layer: LayerSecondaryHeader,
			Err: &HeaderError{
				Layer:   LayerSecondaryHeader,
				Variant: sh.Variant(),
				Err:     ErrVariantMismatch,
				Detail:  fmt.Sprintf("declared user data length %d, found %d", sh.UserDataLength(), len(payload)),
			},
			Expected: sh.UserDataLength(),
			Actual:   len(payload),
		}
	}

	return &Packet{
		primary: primary,
		data: DataField{
			secondary:   sh,
			userData:    payload,
			checksum:    trailer,
			hasChecksum: o.checksum,
		},
		checksum:  o.checksum,
		crc:       o.crc,
		coverage:  o.coverage,
		timestamp: time.Now(),
	}, nil
}

// Primary returns the primary header.
func (p *Packet) Primary() PrimaryHeader {
	return p.primary
}

// DataField returns a copy of the data field.
func (p *Packet) DataField() DataField {
	return p.data.clone()
}

// SecondaryHeader returns the secondary header, or nil when absent.
func (p *Packet) SecondaryHeader() SecondaryHeader {
	return p.data.secondary
}

// Variant returns the secondary header variant, or VariantNone.
func (p *Packet) Variant() Variant {
	if p.data.secondary == nil {
		return VariantNone
	}
	return p.data.secondary.Variant()
}

// UserData returns a copy of the user payload.
func (p *Packet) UserData() []byte {
	return p.data.UserData()
}

// APID returns the application process identifier.
func (p *Packet) APID() uint16 {
	return p.primary.APID
}

// Type returns the packet type.
func (p *Packet) Type() PacketType {
	return p.primary.Type
}

// SequenceFlags returns the segmentation flags.
func (p *Packet) SequenceFlags() SequenceFlag {
	return p.primary.SequenceFlags
}

// SequenceCount returns the 14-bit sequence count.
func (p *Packet) SequenceCount() uint16 {
	return p.primary.SequenceCount
}

// Checksum returns the trailer value and whether the packet carries one.
func (p *Packet) Checksum() (uint16, bool) {
	return p.data.Checksum()
}

// ChecksumConfig returns the CRC configuration, if error control is enabled.
func (p *Packet) ChecksumConfig() (CRC16Config, bool) {
	return p.crc, p.checksum
}

// Coverage returns which octets the trailer covers.
func (p *Packet) Coverage() Coverage {
	return p.coverage
}

// Len returns the encoded packet size.
func (p *Packet) Len() int {
	return PrimaryHeaderSize + p.data.Len()
}

// Timestamp returns when the packet was composed or decoded.
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// IsIdle reports whether the packet uses the idle APID.
func (p *Packet) IsIdle() bool {
	return p.primary.IsIdle()
}

// Clone returns a deep copy.
func (p *Packet) Clone() *Packet {
	c := *p
	c.data = p.data.clone()
	return &c
}

// Equal compares every encoded field and the error control settings.
// Timestamps are ignored.
func (p *Packet) Equal(o *Packet) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.primary != o.primary || !p.data.equal(o.data) || p.checksum != o.checksum {
		return false
	}
	if p.checksum && (p.crc != o.crc || p.coverage != o.coverage) {
		return false
	}
	return true
}
