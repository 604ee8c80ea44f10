// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"fmt"
	"iter"
	"slices"
)

// Manager is an ordered collection of packets in insertion order.
//
// A Manager is not safe for concurrent use. Callers that append from
// several goroutines must serialize access themselves.
type Manager struct {
	packets []*Packet
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Append adds a copy of p. Sequence gaps never block an append; use
// ValidateSequence to report them. A nil packet is rejected.
func (m *Manager) Append(p *Packet) error {
	if p == nil {
		return ErrNilPacket
	}
	m.packets = append(m.packets, p.Clone())
	return nil
}

// Len returns the number of packets held.
func (m *Manager) Len() int {
	return len(m.packets)
}

// At returns the packet at insertion index i.
func (m *Manager) At(i int) *Packet {
	return m.packets[i]
}

// Packets returns the packets in insertion order. The slice is a copy;
// the packets themselves are immutable.
func (m *Manager) Packets() []*Packet {
	return slices.Clone(m.packets)
}

// All iterates over every packet with its insertion index.
func (m *Manager) All() iter.Seq2[int, *Packet] {
	return func(yield func(int, *Packet) bool) {
		for i, p := range m.packets {
			if !yield(i, p) {
				return
			}
		}
	}
}

// ForAPID lazily yields the packets of one APID in insertion order.
func (m *Manager) ForAPID(apid uint16) iter.Seq[*Packet] {
	return func(yield func(*Packet) bool) {
		for _, p := range m.packets {
			if p.APID() == apid && !yield(p) {
				return
			}
		}
	}
}

// APIDs returns the distinct APIDs in order of first appearance.
func (m *Manager) APIDs() []uint16 {
	var out []uint16
	seen := make(map[uint16]bool)
	for _, p := range m.packets {
		if !seen[p.APID()] {
			seen[p.APID()] = true
			out = append(out, p.APID())
		}
	}
	return out
}

// ValidateSequence checks that the sequence counts of one APID advance by
// exactly one, modulo 2^14, and returns every discontinuity. Wrapping from
// 16383 to 0 is not a gap. A nil result means the sequence is continuous.
func (m *Manager) ValidateSequence(apid uint16) []SequenceGap {
	var gaps []SequenceGap
	var prev uint16
	first := true
	for i, p := range m.packets {
		if p.APID() != apid {
			continue
		}
		cur := p.SequenceCount()
		if !first && cur != NextSequenceCount(prev) {
			gaps = append(gaps, SequenceGap{APID: apid, Index: i, Previous: prev, Current: cur})
		}
		prev = cur
		first = false
	}
	return gaps
}

// ValidateAllSequences runs ValidateSequence for every APID present.
func (m *Manager) ValidateAllSequences() []SequenceGap {
	var gaps []SequenceGap
	for _, apid := range m.APIDs() {
		gaps = append(gaps, m.ValidateSequence(apid)...)
	}
	return gaps
}

// Encode concatenates the encoded packets in insertion order.
func (m *Manager) Encode() []byte {
	size := 0
	for _, p := range m.packets {
		size += p.Len()
	}
	buf := make([]byte, 0, size)
	for _, p := range m.packets {
		buf = append(buf, p.Encode()...)
	}
	return buf
}

// ApplicationData reassembles the user data of one APID. Unsegmented
// packets contribute their payload directly; segmented packets must
// appear as First, Continuation..., Last. A segment group still open at
// the end is an error.
func (m *Manager) ApplicationData(apid uint16) ([]byte, error) {
	var out []byte
	open := false
	for i, p := range m.packets {
		if p.APID() != apid {
			continue
		}
		flag := p.SequenceFlags()
		switch flag {
		case Unsegmented:
			if open {
				return nil, fmt.Errorf("%w: apid %d index %d: %s inside open segment group", ErrSegmentation, apid, i, flag)
			}
		case SegmentFirst:
			if open {
				return nil, fmt.Errorf("%w: apid %d index %d: %s while a group is open", ErrSegmentation, apid, i, flag)
			}
			open = true
		case SegmentContinuation, SegmentLast:
			if !open {
				return nil, fmt.Errorf("%w: apid %d index %d: %s without %s", ErrSegmentation, apid, i, flag, SegmentFirst)
			}
			open = flag == SegmentContinuation
		}
		out = append(out, p.data.userData...)
	}
	if open {
		return nil, fmt.Errorf("%w: apid %d: segment group not terminated", ErrSegmentation, apid)
	}
	return out, nil
}

// Reset drops every packet.
func (m *Manager) Reset() {
	m.packets = nil
}
