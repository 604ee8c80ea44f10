// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Variant tags the PUS secondary header layout. Encoder and decoder agree
// on it out of band; the tag written into octet 0 of the header only lets
// the decoder reject octets of another variant.
type Variant uint8

// Variant values
const (
	VariantNone Variant = iota
	VariantPusA
	VariantPusB
	VariantPusC
)

func (v Variant) String() string {
	switch v {
	case VariantNone:
		return "none"
	case VariantPusA:
		return "PusA"
	case VariantPusB:
		return "PusB"
	case VariantPusC:
		return "PusC"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// Size returns the encoded size of the variant, or 0 for VariantNone.
func (v Variant) Size() int {
	switch v {
	case VariantPusA:
		return PusASize
	case VariantPusB:
		return PusBSize
	case VariantPusC:
		return PusCSize
	default:
		return 0
	}
}

// ParseVariant accepts "none", "PusA", "PusB", "PusC" (case-insensitive,
// with or without the "pus" prefix).
func ParseVariant(s string) (Variant, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "pus") {
	case "", "none":
		return VariantNone, nil
	case "a":
		return VariantPusA, nil
	case "b":
		return VariantPusB, nil
	case "c":
		return VariantPusC, nil
	}
	return VariantNone, fmt.Errorf("%w: unknown secondary header variant %q", ErrVariantMismatch, s)
}

// SecondaryHeader is one of PusA, PusB or PusC.
type SecondaryHeader interface {
	Variant() Variant
	Size() int
	Encode() []byte
	Common() PusCommon
	// UserDataLength is the length of the user payload that follows the
	// secondary header, not the whole data field.
	UserDataLength() int

	initialized() bool
	withDataLength(n int) (SecondaryHeader, error)
}

// PusCommon holds the leading fields shared by every variant.
//
//	octet 0: version(3) | variant tag(5)
//	octet 1: service type
//	octet 2: service subtype
//	octet 3: source ID
type PusCommon struct {
	Version        uint8
	ServiceType    uint8
	ServiceSubtype uint8
	SourceID       uint8
}

func (c PusCommon) validate() error {
	if c.Version > MaxVersion {
		return fmt.Errorf("%w: pus version %d (max %d)", ErrFieldRange, c.Version, MaxVersion)
	}
	return nil
}

// variantTagMask covers the variant tag in octet 0.
const variantTagMask = 0x1F

func (c PusCommon) put(buf []byte, v Variant) {
	buf[0] = (c.Version&MaxVersion)<<5 | uint8(v)&variantTagMask
	buf[1] = c.ServiceType
	buf[2] = c.ServiceSubtype
	buf[3] = c.SourceID
}

func decodeCommon(b []byte, v Variant) (PusCommon, error) {
	if tag := b[0] & variantTagMask; tag != uint8(v) {
		return PusCommon{}, &HeaderError{
			Layer:   LayerSecondaryHeader,
			Variant: v,
			Err:     ErrVariantMismatch,
			Detail:  fmt.Sprintf("variant tag %s, want %s", Variant(tag), v),
		}
	}
	return PusCommon{
		Version:        b[0] >> 5,
		ServiceType:    b[1],
		ServiceSubtype: b[2],
		SourceID:       b[3],
	}, nil
}

// PusA carries a 32-bit data length.
type PusA struct {
	PusCommon
	DataLength uint32

	set bool
}

// NewPusA returns an initialized PusA header. DataLength is filled in when
// the header is attached to a packet.
func NewPusA(c PusCommon) PusA {
	return PusA{PusCommon: c, set: true}
}

func (h PusA) Variant() Variant { return VariantPusA }
func (h PusA) Size() int { return PusASize }
func (h PusA) Common() PusCommon { return h.PusCommon }
func (h PusA) UserDataLength() int { return int(h.DataLength) }
func (h PusA) initialized() bool { return h.set }

func (h PusA) Encode() []byte {
	buf := make([]byte, PusASize)
	h.put(buf, VariantPusA)
	binary.BigEndian.PutUint32(buf[4:8], h.DataLength)
	return buf
}

func (h PusA) withDataLength(n int) (SecondaryHeader, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	h.DataLength = uint32(n)
	return h, nil
}

// PusB carries an 8-bit event ID and a 16-bit data length.
type PusB struct {
	PusCommon
	EventID    uint8
	DataLength uint16

	set bool
}

// NewPusB returns an initialized PusB header.
func NewPusB(c PusCommon, eventID uint8) PusB {
	return PusB{PusCommon: c, EventID: eventID, set: true}
}

func (h PusB) Variant() Variant { return VariantPusB }
func (h PusB) Size() int { return PusBSize }
func (h PusB) Common() PusCommon { return h.PusCommon }
func (h PusB) UserDataLength() int { return int(h.DataLength) }
func (h PusB) initialized() bool { return h.set }

func (h PusB) Encode() []byte {
	buf := make([]byte, PusBSize)
	h.put(buf, VariantPusB)
	buf[4] = h.EventID
	binary.BigEndian.PutUint16(buf[5:7], h.DataLength)
	return buf
}

func (h PusB) withDataLength(n int) (SecondaryHeader, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	if n > 0xFFFF {
		return nil, fmt.Errorf("%w: PusB data length %d (max 65535)", ErrFieldRange, n)
	}
	h.DataLength = uint16(n)
	return h, nil
}

// PusC carries a 16-bit time code and a 16-bit data length.
type PusC struct {
	PusCommon
	TimeCode   uint16
	DataLength uint16

	set bool
}

// NewPusC returns an initialized PusC header.
func NewPusC(c PusCommon, timeCode uint16) PusC {
	return PusC{PusCommon: c, TimeCode: timeCode, set: true}
}

func (h PusC) Variant() Variant { return VariantPusC }
func (h PusC) Size() int { return PusCSize }
func (h PusC) Common() PusCommon { return h.PusCommon }
func (h PusC) UserDataLength() int { return int(h.DataLength) }
func (h PusC) initialized() bool { return h.set }

func (h PusC) Encode() []byte {
	buf := make([]byte, PusCSize)
	h.put(buf, VariantPusC)
	binary.BigEndian.PutUint16(buf[4:6], h.TimeCode)
	binary.BigEndian.PutUint16(buf[6:8], h.DataLength)
	return buf
}

func (h PusC) withDataLength(n int) (SecondaryHeader, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	if n > 0xFFFF {
		return nil, fmt.Errorf("%w: PusC data length %d (max 65535)", ErrFieldRange, n)
	}
	h.DataLength = uint16(n)
	return h, nil
}

// DecodeSecondaryHeader decodes the leading octets of b as the given
// variant. Octets beyond the variant size are ignored.
func DecodeSecondaryHeader(b []byte, v Variant) (SecondaryHeader, error) {
	size := v.Size()
	if size == 0 {
		return nil, &HeaderError{
			Layer:   LayerSecondaryHeader,
			Variant: v,
			Err:     ErrVariantMismatch,
			Detail:  "no secondary header variant selected",
		}
	}
	if len(b) < size {
		return nil, &HeaderError{
			Layer:   LayerSecondaryHeader,
			Variant: v,
			Err:     ErrTruncated,
			Want:    size,
			Got:     len(b),
		}
	}

	c, err := decodeCommon(b, v)
	if err != nil {
		return nil, err
	}

	switch v {
	case VariantPusA:
		return PusA{
			PusCommon:  c,
			DataLength: binary.BigEndian.Uint32(b[4:8]),
			set:        true,
		}, nil
	case VariantPusB:
		return PusB{
			PusCommon:  c,
			EventID:    b[4],
			DataLength: binary.BigEndian.Uint16(b[5:7]),
			set:        true,
		}, nil
	default:
		return PusC{
			PusCommon:  c,
			TimeCode:   binary.BigEndian.Uint16(b[4:6]),
			DataLength: binary.BigEndian.Uint16(b[6:8]),
			set:        true,
		}, nil
	}
}

// IsInitialized reports whether sh was built by a constructor or decoder.
// A nil header is not initialized.
func IsInitialized(sh SecondaryHeader) bool {
	if _, ok := nilHeader(sh); ok || sh == nil {
		return false
	}
	return sh.initialized()
}

// nilHeader reports whether sh is a nil *PusA, *PusB or *PusC. Calling
// any method on one would panic.
func nilHeader(sh SecondaryHeader) (Variant, bool) {
	switch h := sh.(type) {
	case *PusA:
		return VariantPusA, h == nil
	case *PusB:
		return VariantPusB, h == nil
	case *PusC:
		return VariantPusC, h == nil
	}
	return VariantNone, false
}
