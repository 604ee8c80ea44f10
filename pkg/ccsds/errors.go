// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to one of these.
var (
	ErrTruncated             = errors.New("truncated")
	ErrVariantMismatch       = errors.New("secondary header variant mismatch")
	ErrLengthMismatch        = errors.New("data length mismatch")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrInvalidChecksumConfig = errors.New("invalid checksum configuration")
	ErrUninitializedHeader   = errors.New("secondary header not initialized")
	ErrFieldRange            = errors.New("field value out of range")
	ErrDataFieldSize         = errors.New("invalid data field size")
	ErrSegmentation          = errors.New("invalid segmentation")
	ErrNilPacket             = errors.New("nil packet")
)

// Layer identifies which part of a packet an error belongs to.
type Layer int

// Layer values
const (
	LayerPrimaryHeader Layer = iota
	LayerSecondaryHeader
	LayerLength
	LayerChecksum
)

func (l Layer) String() string {
	switch l {
	case LayerPrimaryHeader:
		return "primary header"
	case LayerSecondaryHeader:
		return "secondary header"
	case LayerLength:
		return "length"
	case LayerChecksum:
		return "checksum"
	default:
		return "unknown"
	}
}

// HeaderError reports a primary or secondary header decode failure.
type HeaderError struct {
	Layer   Layer
	Variant Variant // VariantNone for the primary header
	Err     error
	Want    int // octets required, for ErrTruncated
	Got     int // octets supplied, for ErrTruncated
	Detail  string
}

func (e *HeaderError) Error() string {
	name := e.Layer.String()
	if e.Layer == LayerSecondaryHeader && e.Variant != VariantNone {
		name = e.Variant.String() + " " + name
	}
	if errors.Is(e.Err, ErrTruncated) {
		return fmt.Sprintf("%s %v: need %d octets, got %d", name, e.Err, e.Want, e.Got)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v: %s", name, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %v", name, e.Err)
}

func (e *HeaderError) Unwrap() error {
	return e.Err
}

// PacketError reports a packet decode or composition failure.
// Err may itself be a *HeaderError. Expected and Actual hold the
// checksums, the octet counts, or the declared and found user data
// length, depending on Layer.
type PacketError struct {
	Layer    Layer
	Err      error
	Expected int
	Actual   int
}

func (e *PacketError) Error() string {
	switch {
	case errors.Is(e.Err, ErrChecksumMismatch):
		return fmt.Sprintf("packet %s: %v: expected 0x%04X, got 0x%04X", e.Layer, ErrChecksumMismatch, e.Expected, e.Actual)
	case errors.Is(e.Err, ErrLengthMismatch):
		return fmt.Sprintf("packet %s: %v: expected %d octets, got %d", e.Layer, ErrLengthMismatch, e.Expected, e.Actual)
	case e.Err == ErrTruncated:
		return fmt.Sprintf("packet %s: %v: need at least %d octets, got %d", e.Layer, ErrTruncated, e.Expected, e.Actual)
	}
	return fmt.Sprintf("packet %s: %v", e.Layer, e.Err)
}

func (e *PacketError) Unwrap() error {
	return e.Err
}

// ChecksumError reports an unusable checksum configuration.
type ChecksumError struct {
	Config CRC16Config
	Reason string
}

func (e *ChecksumError) Error() string {
	name := e.Config.Name
	if name == "" {
		name = fmt.Sprintf("poly=0x%04X", e.Config.Polynomial)
	}
	return fmt.Sprintf("%v (%s): %s", ErrInvalidChecksumConfig, name, e.Reason)
}

func (e *ChecksumError) Unwrap() error {
	return ErrInvalidChecksumConfig
}

// SequenceGap is an advisory report of a sequence count discontinuity
// between two consecutive packets of one APID. It does not block appends.
type SequenceGap struct {
	APID     uint16
	Index    int // Manager index of the packet that follows the gap
	Previous uint16
	Current  uint16
}

// Missing returns how many counts were skipped, modulo 2^14.
// A repeated count yields MaxSequenceCount.
func (g SequenceGap) Missing() int {
	return int((uint32(g.Current) - uint32(g.Previous) - 1) & MaxSequenceCount)
}

// Duplicate reports whether the same count was seen twice in a row.
func (g SequenceGap) Duplicate() bool {
	return g.Current == g.Previous
}

func (g SequenceGap) Error() string {
	if g.Duplicate() {
		return fmt.Sprintf("apid %d: duplicate sequence count %d at index %d", g.APID, g.Current, g.Index)
	}
	return fmt.Sprintf("apid %d: sequence gap %d -> %d (%d missing) at index %d",
		g.APID, g.Previous, g.Current, g.Missing(), g.Index)
}
