// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import "fmt"

// Segmenter splits application data into a run of packets sharing one
// APID. A single packet is flagged Unsegmented; longer data becomes
// First, Continuation..., Last. Sequence counts start at
// Fields.SequenceCount and keep advancing across calls.
type Segmenter struct {
	Fields    PrimaryFields
	Secondary SecondaryHeader // copied onto every packet, nil for none

	// MaxUserData limits the user data per packet. Zero selects the
	// largest value that fits a data field.
	MaxUserData int

	// RequireUnsegmented rejects data that does not fit one packet.
	RequireUnsegmented bool

	Options []Option

	next    uint16
	started bool
}

// Capacity returns the user data octets carried per packet.
func (s *Segmenter) Capacity() int {
	limit := MaxDataFieldSize
	if v, isNil := nilHeader(s.Secondary); isNil {
		limit -= v.Size()
	} else if s.Secondary != nil {
		limit -= s.Secondary.Size()
	}
	if buildOptions(s.Options).checksum {
		limit -= ChecksumSize
	}
	if s.MaxUserData > 0 && s.MaxUserData < limit {
		return s.MaxUserData
	}
	return limit
}

// NextSequenceCount returns the count the next packet will carry.
func (s *Segmenter) NextSequenceCount() uint16 {
	if !s.started {
		return s.Fields.SequenceCount & MaxSequenceCount
	}
	return s.next
}

// Segment builds the packets for data. On error no sequence counts are
// consumed.
func (s *Segmenter) Segment(data []byte) ([]*Packet, error) {
	capacity := s.Capacity()
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: secondary header and trailer leave no room for user data", ErrDataFieldSize)
	}

	var chunks [][]byte
	for off := 0; off < len(data); off += capacity {
		chunks = append(chunks, data[off:min(off+capacity, len(data))])
	}
	if len(chunks) == 0 {
		chunks = [][]byte{nil}
	}
	if s.RequireUnsegmented && len(chunks) > 1 {
		return nil, fmt.Errorf("%w: %d octets exceed the %d octet packet capacity", ErrSegmentation, len(data), capacity)
	}

	count := s.NextSequenceCount()
	packets := make([]*Packet, 0, len(chunks))
	for i, chunk := range chunks {
		fields := s.Fields
		fields.SequenceCount = count
		fields.SequenceFlags = segmentFlag(i, len(chunks))

		p, err := NewPacket(fields, s.Secondary, chunk, s.Options...)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
		count = NextSequenceCount(count)
	}

	s.next = count
	s.started = true
	return packets, nil
}

// SegmentInto segments data and appends the packets to m.
func (s *Segmenter) SegmentInto(m *Manager, data []byte) error {
	packets, err := s.Segment(data)
	if err != nil {
		return err
	}
	m.packets = append(m.packets, packets...)
	return nil
}

func segmentFlag(i, n int) SequenceFlag {
	switch {
	case n == 1:
		return Unsegmented
	case i == 0:
		return SegmentFirst
	case i == n-1:
		return SegmentLast
	default:
		return SegmentContinuation
	}
}
