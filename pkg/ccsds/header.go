// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"encoding/binary"
	"fmt"
)

// PrimaryHeader is the fixed 6-octet CCSDS primary header.
//
// Wire layout (big-endian, MSB first):
//
//	version(3) | type(1) | secHdrFlag(1) | APID(11) | seqFlags(2) | seqCount(14) | dataLength(16)
//
// DataLength is the data field octet count minus one.
type PrimaryHeader struct {
	Version             uint8
	Type                PacketType
	SecondaryHeaderFlag bool
	APID                uint16
	SequenceFlags       SequenceFlag
	SequenceCount       uint16
	DataLength          uint16
}

// Encode packs the header into 6 octets. Fields wider than their bit
// width are masked.
func (h PrimaryHeader) Encode() []byte {
	buf := make([]byte, PrimaryHeaderSize)
	h.put(buf)
	return buf
}

func (h PrimaryHeader) put(buf []byte) {
	id := uint16(h.Version&MaxVersion)<<13 | uint16(h.Type&1)<<12 | uint16(h.APID&MaxAPID)
	if h.SecondaryHeaderFlag {
		id |= 1 << 11
	}
	seq := uint16(h.SequenceFlags&3)<<14 | h.SequenceCount&MaxSequenceCount

	binary.BigEndian.PutUint16(buf[0:2], id)
	binary.BigEndian.PutUint16(buf[2:4], seq)
	binary.BigEndian.PutUint16(buf[4:6], h.DataLength)
}

// DecodePrimaryHeader unpacks the first 6 octets of b. Every bit pattern
// is a legal header, so the only failure is truncation.
func DecodePrimaryHeader(b []byte) (PrimaryHeader, error) {
	if len(b) < PrimaryHeaderSize {
		return PrimaryHeader{}, &HeaderError{
			Layer: LayerPrimaryHeader,
			Err:   ErrTruncated,
			Want:  PrimaryHeaderSize,
			Got:   len(b),
		}
	}

	id := binary.BigEndian.Uint16(b[0:2])
	seq := binary.BigEndian.Uint16(b[2:4])

	return PrimaryHeader{
		Version:             uint8(id >> 13),
		Type:                PacketType(id >> 12 & 1),
		SecondaryHeaderFlag: id>>11&1 == 1,
		APID:                id & MaxAPID,
		SequenceFlags:       SequenceFlag(seq >> 14),
		SequenceCount:       seq & MaxSequenceCount,
		DataLength:          binary.BigEndian.Uint16(b[4:6]),
	}, nil
}

// Validate reports fields that do not fit their bit width.
func (h PrimaryHeader) Validate() error {
	switch {
	case h.Version > MaxVersion:
		return fmt.Errorf("%w: version %d (max %d)", ErrFieldRange, h.Version, MaxVersion)
	case h.Type > Telecommand:
		return fmt.Errorf("%w: type %d (max 1)", ErrFieldRange, h.Type)
	case h.APID > MaxAPID:
		return fmt.Errorf("%w: apid %d (max %d)", ErrFieldRange, h.APID, MaxAPID)
	case h.SequenceFlags > Unsegmented:
		return fmt.Errorf("%w: sequence flags %d (max 3)", ErrFieldRange, h.SequenceFlags)
	case h.SequenceCount > MaxSequenceCount:
		return fmt.Errorf("%w: sequence count %d (max %d)", ErrFieldRange, h.SequenceCount, MaxSequenceCount)
	}
	return nil
}

// DataFieldLength returns the data field size declared by DataLength.
func (h PrimaryHeader) DataFieldLength() int {
	return int(h.DataLength) + 1
}

// PacketLength returns the total packet size declared by the header.
func (h PrimaryHeader) PacketLength() int {
	return PrimaryHeaderSize + h.DataFieldLength()
}

// IsIdle reports whether the header belongs to an idle packet.
func (h PrimaryHeader) IsIdle() bool {
	return h.APID == IdleAPID
}

// NextSequenceCount returns the count following c, wrapping at 2^14.
func NextSequenceCount(c uint16) uint16 {
	return (c + 1) & MaxSequenceCount
}
