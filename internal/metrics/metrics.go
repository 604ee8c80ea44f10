// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

// Package metrics holds the process counters of the ccsdspack tool.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds"
)

// Registry collects every ccsdspack metric. It is private so the Go
// runtime collectors do not end up in textfile exports.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	PacketsEncoded = factory.NewCounter(prometheus.CounterOpts{
		Name: "ccsdspack_packets_encoded_total",
		Help: "Total number of packets encoded",
	})

	PacketsDecoded = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ccsdspack_packets_decoded_total",
		Help: "Total number of packets decoded by APID",
	}, []string{"apid"})

	DecodeErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ccsdspack_decode_errors_total",
		Help: "Total number of decode failures by layer",
	}, []string{"layer"})

	SequenceGaps = factory.NewCounter(prometheus.CounterOpts{
		Name: "ccsdspack_sequence_gaps_total",
		Help: "Total number of sequence count discontinuities",
	})

	MissingPackets = factory.NewCounter(prometheus.CounterOpts{
		Name: "ccsdspack_missing_packets_total",
		Help: "Total number of packets skipped by sequence gaps",
	})

	BytesRead = factory.NewCounter(prometheus.CounterOpts{
		Name: "ccsdspack_bytes_read_total",
		Help: "Total number of octets read from packet sources",
	})

	LogEntries = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ccsdspack_log_entries_total",
		Help: "Total number of log entries by level",
	}, []string{"level"})
)

// ObserveDecoded records a successfully decoded packet.
func ObserveDecoded(p *ccsds.Packet) {
	PacketsDecoded.WithLabelValues(fmt.Sprint(p.APID())).Inc()
}

// ObserveDecodeError records a decode failure under its layer.
func ObserveDecodeError(err error) {
	DecodeErrors.WithLabelValues(ErrorLayer(err)).Inc()
}

// ObserveGap records a sequence gap.
func ObserveGap(g *ccsds.SequenceGap) {
	SequenceGaps.Inc()
	if !g.Duplicate() {
		MissingPackets.Add(float64(g.Missing()))
	}
}

// ErrorLayer returns the label used for err in DecodeErrors.
func ErrorLayer(err error) string {
	var pe *ccsds.PacketError
	if errors.As(err, &pe) {
		return pe.Layer.String()
	}
	return "io"
}

// WriteTextfile writes the registry in the node exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
