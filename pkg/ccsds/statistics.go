// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Statistics tracks packet statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets     uint64
	ValidPackets     uint64
	ChecksumErrors   uint64
	LengthErrors     uint64
	HeaderErrors     uint64
	DecodeErrors     uint64
	Anomalies        uint64
	TemplateMismatch uint64
	SequenceGaps     uint64
	MissingPackets   uint64

	// Per-APID packet counts and last seen sequence count
	PerAPID map[uint16]uint64
	lastSeq map[uint16]uint16

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		PerAPID:        make(map[uint16]uint64),
		lastSeq:        make(map[uint16]uint16),
	}
}

// Update updates statistics based on a packet and its errors. It returns
// the sequence gap for the packet's APID, if any.
func (s *Statistics) Update(packet *Packet, decodeErr error, validationErrors []ValidationError) *SequenceGap {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		switch {
		case errors.Is(decodeErr, ErrChecksumMismatch):
			s.ChecksumErrors++
		case errors.Is(decodeErr, ErrLengthMismatch), errors.Is(decodeErr, ErrTruncated):
			s.LengthErrors++
		case errors.Is(decodeErr, ErrVariantMismatch):
			s.HeaderErrors++
		default:
			s.DecodeErrors++
		}
		return nil
	}

	for _, err := range validationErrors {
		s.Anomalies++
		switch err.Type {
		case AnomalyFlagMismatch, AnomalyVersionMismatch, AnomalyTypeMismatch,
			AnomalyAPIDMismatch, AnomalyVariantMismatch:
			s.TemplateMismatch++
		}
	}
	if len(validationErrors) == 0 {
		s.ValidPackets++
	}

	if packet == nil {
		return nil
	}
	return s.track(packet)
}

// track records the packet's APID and checks its sequence count
func (s *Statistics) track(p *Packet) *SequenceGap {
	apid := p.APID()
	cur := p.SequenceCount()
	prev, seen := s.lastSeq[apid]
	s.PerAPID[apid]++
	s.lastSeq[apid] = cur

	if !seen || cur == NextSequenceCount(prev) {
		return nil
	}
	gap := &SequenceGap{APID: apid, Index: int(s.TotalPackets - 1), Previous: prev, Current: cur}
	s.SequenceGaps++
	if !gap.Duplicate() {
		s.MissingPackets += uint64(gap.Missing())
	}
	return gap
}

// ErrorCount returns the number of failed or anomalous packets
func (s *Statistics) ErrorCount() uint64 {
	return s.ChecksumErrors + s.LengthErrors + s.HeaderErrors + s.DecodeErrors + s.Anomalies
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		s.ErrorRate = float64(s.ErrorCount()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalPackets == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := time.Since(s.StartTime)

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	fmt.Fprintf(&b, "Total Packets:   %8d\n", s.TotalPackets)
	fmt.Fprintf(&b, "Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, percent(s.ValidPackets))

	if s.ChecksumErrors > 0 {
		fmt.Fprintf(&b, "CRC Errors:      %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.LengthErrors > 0 {
		fmt.Fprintf(&b, "Length Errors:   %8d (%.1f%%)\n", s.LengthErrors, percent(s.LengthErrors))
	}
	if s.HeaderErrors > 0 {
		fmt.Fprintf(&b, "Header Errors:   %8d (%.1f%%)\n", s.HeaderErrors, percent(s.HeaderErrors))
	}
	if s.DecodeErrors > 0 {
		fmt.Fprintf(&b, "Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
	}
	if s.Anomalies > 0 {
		fmt.Fprintf(&b, "Anomalies:       %8d\n", s.Anomalies)
		if s.TemplateMismatch > 0 {
			fmt.Fprintf(&b, "  Template Mismatch: %5d\n", s.TemplateMismatch)
		}
	}
	if s.SequenceGaps > 0 {
		fmt.Fprintf(&b, "Sequence Gaps:   %8d (%d missing)\n", s.SequenceGaps, s.MissingPackets)
	}

	if len(s.PerAPID) > 0 {
		b.WriteString("Per APID:\n")
		for _, apid := range s.APIDs() {
			fmt.Fprintf(&b, "  %4d:          %8d\n", apid, s.PerAPID[apid])
		}
	}

	fmt.Fprintf(&b, "Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	fmt.Fprintf(&b, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	b.WriteString("================================\n")

	return b.String()
}

// APIDs returns the APIDs seen so far in ascending order
func (s *Statistics) APIDs() []uint16 {
	apids := make([]uint16, 0, len(s.PerAPID))
	for apid := range s.PerAPID {
		apids = append(apids, apid)
	}
	slices.Sort(apids)
	return apids
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
