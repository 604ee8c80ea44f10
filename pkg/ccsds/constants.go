// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

// Package ccsds implements the CCSDS Space Packet Protocol with the PUS
// secondary header conventions.
//
// The package encodes and decodes primary headers, the three PUS secondary
// header variants (A, B and C), packet data fields with an optional CRC-16
// packet error control trailer, and provides a Manager for ordered packet
// collections with per-APID sequence count checks, segmentation and
// reassembly.
//
// Everything in this package is synchronous and operates on in-memory octet
// slices. Values returned by decode functions are never partially populated.
package ccsds

// Primary header layout
const (
	PrimaryHeaderSize = 6

	versionBits       = 3
	apidBits          = 11
	sequenceCountBits = 14

	MaxVersion       = 1<<versionBits - 1       // 7
	MaxAPID          = 1<<apidBits - 1          // 2047
	MaxSequenceCount = 1<<sequenceCountBits - 1 // 16383

	// SequenceCountModulo is the wrap point of the 14-bit sequence counter.
	SequenceCountModulo = 1 << sequenceCountBits
)

// Data field limits. The 16-bit length field encodes octets minus one.
const (
	MinDataFieldSize = 1
	MaxDataFieldSize = 1 << 16
	MaxPacketSize    = PrimaryHeaderSize + MaxDataFieldSize
)

// Packet error control trailer
const (
	ChecksumSize = 2

	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Secondary header sizes in octets
const (
	pusCommonSize = 4

	PusASize = pusCommonSize + 4 // 32-bit data length
	PusBSize = pusCommonSize + 1 + 2
	PusCSize = pusCommonSize + 2 + 2
)

// IdleAPID is reserved by CCSDS for idle packets.
const IdleAPID = 0x7FF

// PacketType is the 1-bit packet type field.
type PacketType uint8

// Packet type values
const (
	Telemetry   PacketType = 0
	Telecommand PacketType = 1
)

func (t PacketType) String() string {
	switch t {
	case Telemetry:
		return "TM"
	case Telecommand:
		return "TC"
	default:
		return "UNKNOWN"
	}
}

// SequenceFlag is the 2-bit sequence flags field.
type SequenceFlag uint8

// Sequence flag values
const (
	SegmentContinuation SequenceFlag = 0
	SegmentFirst        SequenceFlag = 1
	SegmentLast         SequenceFlag = 2
	Unsegmented         SequenceFlag = 3
)

func (f SequenceFlag) String() string {
	switch f {
	case SegmentContinuation:
		return "CONTINUATION"
	case SegmentFirst:
		return "FIRST"
	case SegmentLast:
		return "LAST"
	case Unsegmented:
		return "UNSEGMENTED"
	default:
		return "UNKNOWN"
	}
}

// Coverage selects which octets the packet error control trailer protects.
type Coverage int

// Coverage values
const (
	// CoverPacket protects the primary header, secondary header and payload.
	CoverPacket Coverage = iota
	// CoverDataField protects the secondary header and payload only.
	CoverDataField
)

func (c Coverage) String() string {
	switch c {
	case CoverPacket:
		return "packet"
	case CoverDataField:
		return "data_field"
	default:
		return "unknown"
	}
}
