// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// AnomalyType represents different types of packet anomalies
type AnomalyType int

const (
	AnomalyTruncated AnomalyType = iota
	AnomalyLengthMismatch
	AnomalyChecksumError
	AnomalyFlagMismatch
	AnomalyVersionMismatch
	AnomalyTypeMismatch
	AnomalyAPIDMismatch
	AnomalyVariantMismatch
	AnomalySecondaryLengthMismatch
	AnomalyDecodeError
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyTruncated:
		return "truncated"
	case AnomalyLengthMismatch:
		return "length_mismatch"
	case AnomalyChecksumError:
		return "checksum_error"
	case AnomalyFlagMismatch:
		return "flag_mismatch"
	case AnomalyVersionMismatch:
		return "version_mismatch"
	case AnomalyTypeMismatch:
		return "type_mismatch"
	case AnomalyAPIDMismatch:
		return "apid_mismatch"
	case AnomalyVariantMismatch:
		return "variant_mismatch"
	case AnomalySecondaryLengthMismatch:
		return "secondary_length_mismatch"
	case AnomalyDecodeError:
		return "decode_error"
	default:
		return "unknown"
	}
}

// ValidationError represents a packet validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Validator checks raw packets for internal coherence and, optionally,
// against a template packet. Unlike DecodePacket it keeps going after the
// first problem and reports all of them.
type Validator struct {
	// Template supplies the expected version, type, APID, secondary
	// header flag and variant. Nil disables template checks.
	Template *Packet

	CheckCoherence bool
	CheckTemplate  bool

	// Options are the decode options (variant, checksum, coverage).
	Options []Option
}

// Validate checks b and returns the decoded packet when decoding
// succeeded, plus every anomaly found. An empty slice means b is valid.
func (v *Validator) Validate(b []byte) (*Packet, []ValidationError) {
	primary, err := DecodePrimaryHeader(b)
	if err != nil {
		return nil, []ValidationError{{
			Type:    AnomalyTruncated,
			Message: fmt.Sprintf("Packet shorter than primary header (%d < %d octets)", len(b), PrimaryHeaderSize),
			Details: map[string]interface{}{"length": len(b), "expected": PrimaryHeaderSize},
		}}
	}

	errs := []ValidationError{}
	o := buildOptions(v.Options)

	var coherence []ValidationError
	if v.CheckCoherence {
		coherence = validateCoherence(b, primary, o)
		errs = append(errs, coherence...)
	}
	if v.CheckTemplate && v.Template != nil {
		errs = append(errs, v.validateHeader(primary)...)
	}

	p, err := DecodePacket(b, v.Options...)
	if err != nil {
		// Length and checksum failures are already reported above.
		if len(coherence) > 0 && (errors.Is(err, ErrLengthMismatch) || errors.Is(err, ErrChecksumMismatch)) {
			return nil, errs
		}
		return nil, append(errs, decodeAnomaly(err))
	}
	if v.CheckTemplate && v.Template != nil && p.Variant() != v.Template.Variant() {
		errs = append(errs, ValidationError{
			Type:    AnomalyVariantMismatch,
			Message: fmt.Sprintf("Secondary header variant %s (template %s)", p.Variant(), v.Template.Variant()),
			Details: map[string]interface{}{"variant": p.Variant().String(), "expected": v.Template.Variant().String()},
		})
	}
	return p, errs
}

// ValidatePacket validates an already decoded packet
func (v *Validator) ValidatePacket(p *Packet) []ValidationError {
	_, errs := v.Validate(p.Encode())
	return errs
}

// validateCoherence checks declared length and trailer on raw octets
func validateCoherence(b []byte, primary PrimaryHeader, o options) []ValidationError {
	errs := []ValidationError{}

	if want, got := primary.DataFieldLength(), len(b)-PrimaryHeaderSize; want != got {
		errs = append(errs, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("Data field length %d, header declares %d", got, want),
			Details: map[string]interface{}{"length": got, "expected": want},
		})
	}

	if o.checksum && len(b) >= PrimaryHeaderSize+ChecksumSize && o.crc.Validate() == nil {
		end := len(b) - ChecksumSize
		start := 0
		if o.coverage == CoverDataField {
			start = PrimaryHeaderSize
		}
		trailer := binary.BigEndian.Uint16(b[end:])
		if got := computeCRC16(b[start:end], o.crc); got != trailer {
			errs = append(errs, ValidationError{
				Type:    AnomalyChecksumError,
				Message: fmt.Sprintf("CRC mismatch (computed 0x%04X, trailer 0x%04X)", got, trailer),
				Details: map[string]interface{}{"computed": got, "trailer": trailer, "crc": o.crc.Name},
			})
		}
	}

	return errs
}

// validateHeader compares primary header fields with the template
func (v *Validator) validateHeader(primary PrimaryHeader) []ValidationError {
	errs := []ValidationError{}
	want := v.Template.Primary()

	if primary.Version != want.Version {
		errs = append(errs, ValidationError{
			Type:    AnomalyVersionMismatch,
			Message: fmt.Sprintf("Version %d (template %d)", primary.Version, want.Version),
			Details: map[string]interface{}{"version": primary.Version, "expected": want.Version},
		})
	}
	if primary.Type != want.Type {
		errs = append(errs, ValidationError{
			Type:    AnomalyTypeMismatch,
			Message: fmt.Sprintf("Type %s (template %s)", primary.Type, want.Type),
			Details: map[string]interface{}{"type": primary.Type.String(), "expected": want.Type.String()},
		})
	}
	if primary.APID != want.APID {
		errs = append(errs, ValidationError{
			Type:    AnomalyAPIDMismatch,
			Message: fmt.Sprintf("APID %d (template %d)", primary.APID, want.APID),
			Details: map[string]interface{}{"apid": primary.APID, "expected": want.APID},
		})
	}
	if primary.SecondaryHeaderFlag != want.SecondaryHeaderFlag {
		errs = append(errs, ValidationError{
			Type:    AnomalyFlagMismatch,
			Message: fmt.Sprintf("Secondary header flag %t (template %t)", primary.SecondaryHeaderFlag, want.SecondaryHeaderFlag),
			Details: map[string]interface{}{"flag": primary.SecondaryHeaderFlag, "expected": want.SecondaryHeaderFlag},
		})
	}

	return errs
}

// decodeAnomaly maps a DecodePacket error to an anomaly
func decodeAnomaly(err error) ValidationError {
	t := AnomalyDecodeError
	var pe *PacketError
	switch {
	case errors.Is(err, ErrTruncated):
		t = AnomalyTruncated
	case errors.Is(err, ErrLengthMismatch):
		t = AnomalyLengthMismatch
	case errors.Is(err, ErrChecksumMismatch):
		t = AnomalyChecksumError
	case errors.As(err, &pe) && pe.Layer == LayerSecondaryHeader && pe.Expected != pe.Actual:
		t = AnomalySecondaryLengthMismatch
	case errors.Is(err, ErrVariantMismatch):
		t = AnomalyVariantMismatch
	}
	return ValidationError{
		Type:    t,
		Message: err.Error(),
		Details: map[string]interface{}{"error": err.Error()},
	}
}
