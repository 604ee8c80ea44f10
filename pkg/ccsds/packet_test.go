// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// ============================================================
// Packet Test Helpers
// ============================================================

func mustPacket(t *testing.T, fields PrimaryFields, sh SecondaryHeader, payload []byte, opts ...Option) *Packet {
	t.Helper()
	p, err := NewPacket(fields, sh, payload, opts...)
	if err != nil {
		t.Fatalf("NewPacket failed: %v", err)
	}
	return p
}

func tcFields(apid, count uint16) PrimaryFields {
	return PrimaryFields{Type: Telecommand, APID: apid, SequenceFlags: Unsegmented, SequenceCount: count}
}

func layerOf(t *testing.T, err error) Layer {
	t.Helper()
	var pe *PacketError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PacketError, got %T (%v)", err, err)
	}
	return pe.Layer
}

// ============================================================
// Composition Tests
// ============================================================

func TestNewPacket_ComputesLengths(t *testing.T) {
	tests := []struct {
		name        string
		sh          SecondaryHeader
		payload     []byte
		checksum    bool
		wantDataLen uint16
	}{
		{"payload only", nil, []byte{1, 2, 3}, false, 2},
		{"payload and crc", nil, []byte{1, 2, 3}, true, 4},
		{"PusA", NewPusA(testCommon), []byte{1, 2, 3}, false, 10},
		{"PusB and crc", NewPusB(testCommon, 5), []byte{1}, true, 9},
		{"PusC empty payload", NewPusC(testCommon, 5), nil, false, 7},
		{"crc only", nil, nil, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.checksum {
				opts = append(opts, WithChecksum(DefaultCRC16Config()))
			}
			p := mustPacket(t, tcFields(100, 0), tt.sh, tt.payload, opts...)

			h := p.Primary()
			if h.DataLength != tt.wantDataLen {
				t.Errorf("DataLength = %d, want %d", h.DataLength, tt.wantDataLen)
			}
			if h.SecondaryHeaderFlag != (tt.sh != nil) {
				t.Errorf("SecondaryHeaderFlag = %t", h.SecondaryHeaderFlag)
			}
			b := p.Encode()
			if int(h.DataLength)+1 != len(b)-PrimaryHeaderSize {
				t.Errorf("length invariant broken: dataLength+1=%d, data field=%d", h.DataLength+1, len(b)-PrimaryHeaderSize)
			}
			if len(b) != p.Len() {
				t.Errorf("Len() = %d, encoded %d", p.Len(), len(b))
			}
			if sh := p.SecondaryHeader(); sh != nil && sh.UserDataLength() != len(tt.payload) {
				t.Errorf("secondary data length = %d, want %d", sh.UserDataLength(), len(tt.payload))
			}
		})
	}
}

func TestNewPacket_IgnoresCallerDataLength(t *testing.T) {
	a := NewPusA(testCommon)
	a.DataLength = 9999
	p := mustPacket(t, tcFields(1, 0), a, []byte{1, 2})
	if got := p.SecondaryHeader().UserDataLength(); got != 2 {
		t.Errorf("UserDataLength = %d, want 2", got)
	}
}

func TestNewPacket_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fields  PrimaryFields
		sh      SecondaryHeader
		payload []byte
		opts    []Option
		layer   Layer
		target  error
	}{
		{"uninitialized PusA", tcFields(1, 0), PusA{}, []byte{1}, nil, LayerSecondaryHeader, ErrUninitializedHeader},
		{"uninitialized PusB", tcFields(1, 0), PusB{EventID: 4}, []byte{1}, nil, LayerSecondaryHeader, ErrUninitializedHeader},
		{"uninitialized PusC", tcFields(1, 0), PusC{}, []byte{1}, nil, LayerSecondaryHeader, ErrUninitializedHeader},
		{"nil *PusA", tcFields(1, 0), (*PusA)(nil), []byte{1}, nil, LayerSecondaryHeader, ErrUninitializedHeader},
		{"nil *PusB", tcFields(1, 0), (*PusB)(nil), []byte{1}, nil, LayerSecondaryHeader, ErrUninitializedHeader},
		{"nil *PusC", tcFields(1, 0), (*PusC)(nil), []byte{1}, nil, LayerSecondaryHeader, ErrUninitializedHeader},
		{"apid out of range", tcFields(MaxAPID+1, 0), nil, []byte{1}, nil, LayerPrimaryHeader, ErrFieldRange},
		{"count out of range", tcFields(1, MaxSequenceCount+1), nil, []byte{1}, nil, LayerPrimaryHeader, ErrFieldRange},
		{"version out of range", PrimaryFields{Version: 8}, nil, []byte{1}, nil, LayerPrimaryHeader, ErrFieldRange},
		{"pus version out of range", tcFields(1, 0), NewPusA(PusCommon{Version: 8}), []byte{1}, nil, LayerSecondaryHeader, ErrFieldRange},
		{"empty data field", tcFields(1, 0), nil, nil, nil, LayerLength, ErrDataFieldSize},
		{"data field too large", tcFields(1, 0), nil, make([]byte, MaxDataFieldSize+1), nil, LayerLength, ErrDataFieldSize},
		{"data field too large with crc", tcFields(1, 0), nil, make([]byte, MaxDataFieldSize-1),
			[]Option{WithChecksum(DefaultCRC16Config())}, LayerLength, ErrDataFieldSize},
		{"bad polynomial", tcFields(1, 0), nil, []byte{1}, []Option{WithChecksum(CRC16Config{Polynomial: 0})}, LayerChecksum, ErrInvalidChecksumConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPacket(tt.fields, tt.sh, tt.payload, tt.opts...)
			if p != nil {
				t.Fatalf("expected nil packet on error")
			}
			if !errors.Is(err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, err)
			}
			if l := layerOf(t, err); l != tt.layer {
				t.Errorf("layer = %s, want %s", l, tt.layer)
			}
		})
	}
}

func TestNewPacket_MaxDataField(t *testing.T) {
	p := mustPacket(t, tcFields(1, 0), nil, make([]byte, MaxDataFieldSize))
	if p.Primary().DataLength != 0xFFFF || p.Len() != MaxPacketSize {
		t.Errorf("unexpected max packet: dataLength=%d len=%d", p.Primary().DataLength, p.Len())
	}
}

func TestNewPacket_CopiesPayload(t *testing.T) {
	payload := []byte{1, 2, 3}
	p := mustPacket(t, tcFields(1, 0), nil, payload)
	payload[0] = 0xFF
	if p.UserData()[0] != 1 {
		t.Error("packet aliases caller payload")
	}
	p.UserData()[1] = 0xFF
	if p.UserData()[1] != 2 {
		t.Error("UserData returned internal slice")
	}
}

// ============================================================
// Round-Trip Tests
// ============================================================

func TestPacket_EndToEndPusA(t *testing.T) {
	in := mustPacket(t, tcFields(100, 7), NewPusA(testCommon), []byte{0x01, 0x02, 0x03},
		WithChecksum(DefaultCRC16Config()))

	out, err := DecodePacket(in.Encode(), WithVariant(VariantPusA), WithChecksum(DefaultCRC16Config()))
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if !out.Equal(in) {
		t.Fatalf("decoded packet differs:\n got  %s\n want %s", FormatPacketLine(out), FormatPacketLine(in))
	}
	if out.APID() != 100 || out.SequenceCount() != 7 || !bytes.Equal(out.UserData(), []byte{1, 2, 3}) {
		t.Errorf("unexpected fields: %s", FormatPacketLine(out))
	}
	if out.Variant() != VariantPusA {
		t.Errorf("Variant = %s, want PusA", out.Variant())
	}
	crcIn, _ := in.Checksum()
	crcOut, ok := out.Checksum()
	if !ok || crcIn != crcOut {
		t.Errorf("checksum mismatch 0x%04X vs 0x%04X", crcIn, crcOut)
	}
}

func TestPacket_RoundTripMatrix(t *testing.T) {
	headers := []SecondaryHeader{nil, NewPusA(testCommon), NewPusB(testCommon, 0x7E), NewPusC(testCommon, 0xCAFE)}
	payloads := [][]byte{nil, {0}, []byte("telemetry frame contents")}
	crcs := []string{"", "CRC-16/CCITT-FALSE", "CRC-16/KERMIT", "CRC-16/X-25"}

	for _, sh := range headers {
		for _, payload := range payloads {
			for _, name := range crcs {
				for _, cov := range []Coverage{CoverPacket, CoverDataField} {
					opts := []Option{WithCoverage(cov)}
					if name != "" {
						cfg, err := CRC16Preset(name)
						if err != nil {
							t.Fatal(err)
						}
						opts = append(opts, WithChecksum(cfg))
					}
					if sh == nil && len(payload) == 0 && name == "" {
						continue
					}
					in := mustPacket(t, tcFields(0x2A, 99), sh, payload, opts...)

					variant := VariantNone
					if sh != nil {
						variant = sh.Variant()
					}
					out, err := DecodePacket(in.Encode(), append(opts, WithVariant(variant))...)
					if err != nil {
						t.Fatalf("%s/%d/%q/%s: decode failed: %v", variant, len(payload), name, cov, err)
					}
					if !out.Equal(in) {
						t.Fatalf("%s/%d/%q/%s: round trip mismatch", variant, len(payload), name, cov)
					}
				}
			}
		}
	}
}

func TestPacket_EncodeDeterministic(t *testing.T) {
	p := mustPacket(t, tcFields(3, 3), NewPusC(testCommon, 1), []byte{9, 8, 7}, WithChecksum(DefaultCRC16Config()))
	if !bytes.Equal(p.Encode(), p.Encode()) {
		t.Error("Encode is not deterministic")
	}
	q := mustPacket(t, tcFields(3, 3), NewPusC(testCommon, 1), []byte{9, 8, 7}, WithChecksum(DefaultCRC16Config()))
	if !bytes.Equal(p.Encode(), q.Encode()) {
		t.Error("identical inputs encoded differently")
	}
}

func TestPacket_ChecksumCoverage(t *testing.T) {
	payload := []byte{0xDE, 0xAD}
	whole := mustPacket(t, tcFields(5, 0), nil, payload, WithChecksum(DefaultCRC16Config()))
	field := mustPacket(t, tcFields(5, 0), nil, payload, WithChecksum(DefaultCRC16Config()), WithCoverage(CoverDataField))

	b := whole.Encode()
	wantWhole := CalculateCRC(b[:len(b)-2])
	if got, _ := whole.Checksum(); got != wantWhole {
		t.Errorf("whole-packet CRC = 0x%04X, want 0x%04X", got, wantWhole)
	}
	if got, _ := field.Checksum(); got != CalculateCRC(payload) {
		t.Errorf("data-field CRC = 0x%04X, want 0x%04X", got, CalculateCRC(payload))
	}
	if binary.BigEndian.Uint16(b[len(b)-2:]) != wantWhole {
		t.Error("trailer is not big-endian")
	}

	// Decoding with the other coverage must fail.
	if _, err := DecodePacket(b, WithChecksum(DefaultCRC16Config()), WithCoverage(CoverDataField)); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestPacket_CloneIsIndependent(t *testing.T) {
	p := mustPacket(t, tcFields(1, 1), NewPusB(testCommon, 1), []byte{1, 2, 3})
	c := p.Clone()
	if !c.Equal(p) {
		t.Fatal("clone differs from original")
	}
	c.data.userData[0] = 0xFF
	if p.UserData()[0] != 1 {
		t.Error("clone shares user data with original")
	}
}

// ============================================================
// Decode Failure Tests
// ============================================================

func TestDecodePacket_TamperDetection(t *testing.T) {
	in := mustPacket(t, tcFields(100, 7), NewPusA(testCommon), []byte("payload under test"), WithChecksum(DefaultCRC16Config()))
	b := in.Encode()
	start := PrimaryHeaderSize + PusASize
	end := len(b) - ChecksumSize

	for i := start; i < end; i++ {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte{}, b...)
			tampered[i] ^= 1 << bit
			p, err := DecodePacket(tampered, WithVariant(VariantPusA), WithChecksum(DefaultCRC16Config()))
			if p != nil {
				t.Fatalf("octet %d bit %d: tampered packet decoded", i, bit)
			}
			if !errors.Is(err, ErrChecksumMismatch) {
				t.Fatalf("octet %d bit %d: expected ErrChecksumMismatch, got %v", i, bit, err)
			}
			if layerOf(t, err) != LayerChecksum {
				t.Fatalf("octet %d bit %d: wrong layer", i, bit)
			}
		}
	}
}

func TestDecodePacket_LengthMismatch(t *testing.T) {
	b := mustPacket(t, tcFields(1, 0), nil, []byte{1, 2, 3, 4}).Encode()

	tests := []struct {
		name string
		b    []byte
		want int
		got  int
	}{
		{"short", b[:len(b)-1], 4, 3},
		{"long", append(append([]byte{}, b...), 0x00), 4, 5},
		{"header only", b[:PrimaryHeaderSize], 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePacket(tt.b)
			if !errors.Is(err, ErrLengthMismatch) {
				t.Fatalf("expected ErrLengthMismatch, got %v", err)
			}
			var pe *PacketError
			errors.As(err, &pe)
			if pe.Layer != LayerLength || pe.Expected != tt.want || pe.Actual != tt.got {
				t.Errorf("unexpected error %+v", pe)
			}
		})
	}
}

func TestDecodePacket_LayerOrder(t *testing.T) {
	good := mustPacket(t, tcFields(9, 0), NewPusC(testCommon, 1), []byte{1, 2, 3}, WithChecksum(DefaultCRC16Config())).Encode()
	opts := []Option{WithVariant(VariantPusC), WithChecksum(DefaultCRC16Config())}

	t.Run("primary truncated", func(t *testing.T) {
		_, err := DecodePacket(good[:3], opts...)
		if !errors.Is(err, ErrTruncated) || layerOf(t, err) != LayerPrimaryHeader {
			t.Fatalf("unexpected error %v", err)
		}
	})
	t.Run("secondary truncated before length check", func(t *testing.T) {
		_, err := DecodePacket(good[:PrimaryHeaderSize+4], opts...)
		if !errors.Is(err, ErrTruncated) || layerOf(t, err) != LayerSecondaryHeader {
			t.Fatalf("unexpected error %v", err)
		}
	})
	t.Run("secondary spare bits", func(t *testing.T) {
		b := append([]byte{}, good...)
		b[PrimaryHeaderSize] |= 0x10
		_, err := DecodePacket(b, opts...)
		if !errors.Is(err, ErrVariantMismatch) || layerOf(t, err) != LayerSecondaryHeader {
			t.Fatalf("unexpected error %v", err)
		}
	})
	t.Run("length before checksum", func(t *testing.T) {
		b := append(append([]byte{}, good...), 0x00)
		_, err := DecodePacket(b, opts...)
		if !errors.Is(err, ErrLengthMismatch) {
			t.Fatalf("unexpected error %v", err)
		}
	})
	t.Run("flag set without variant", func(t *testing.T) {
		_, err := DecodePacket(good, WithChecksum(DefaultCRC16Config()))
		if !errors.Is(err, ErrVariantMismatch) || layerOf(t, err) != LayerSecondaryHeader {
			t.Fatalf("unexpected error %v", err)
		}
	})
	t.Run("data field too small for trailer", func(t *testing.T) {
		b := PrimaryHeader{Type: Telecommand, APID: 9, SequenceFlags: Unsegmented, DataLength: 0}.Encode()
		b = append(b, 0x01)
		_, err := DecodePacket(b, WithChecksum(DefaultCRC16Config()))
		if !errors.Is(err, ErrTruncated) || layerOf(t, err) != LayerLength {
			t.Fatalf("unexpected error %v", err)
		}
	})
}

func TestDecodePacket_VariantIsolation(t *testing.T) {
	for _, crc := range []bool{false, true} {
		var opts []Option
		if crc {
			opts = append(opts, WithChecksum(DefaultCRC16Config()))
		}
		for _, payload := range [][]byte{{1, 2, 3}, nil, bytes.Repeat([]byte{0xA5}, 40), make([]byte, 257), make([]byte, 512)} {
			b := mustPacket(t, tcFields(7, 1), NewPusB(testCommon, 0x33), payload, opts...).Encode()

			for _, v := range []Variant{VariantPusA, VariantPusC} {
				p, err := DecodePacket(b, append(opts, WithVariant(v))...)
				if err == nil || p != nil {
					t.Fatalf("PusB bytes decoded as %s (crc=%t, payload %d)", v, crc, len(payload))
				}
				if !errors.Is(err, ErrVariantMismatch) && !errors.Is(err, ErrTruncated) {
					t.Errorf("%s: unexpected error %v", v, err)
				}
			}
		}
	}
}

// A PusC header with a zero time code has the same octets as a PusA
// data length carrying the same user data length.
func TestDecodePacket_PusCZeroTimeCodeAsPusA(t *testing.T) {
	for _, opts := range [][]Option{nil, {WithChecksum(DefaultCRC16Config())}} {
		b := mustPacket(t, tcFields(7, 1), NewPusC(testCommon, 0), []byte{1, 2, 3}, opts...).Encode()
		p, err := DecodePacket(b, append(opts, WithVariant(VariantPusA))...)
		if p != nil || !errors.Is(err, ErrVariantMismatch) {
			t.Fatalf("expected ErrVariantMismatch, got %v", err)
		}
		if layerOf(t, err) != LayerSecondaryHeader {
			t.Errorf("layer = %s, want secondary header", layerOf(t, err))
		}

		if _, err := DecodePacket(b, append(opts, WithVariant(VariantPusC))...); err != nil {
			t.Fatalf("PusC decode failed: %v", err)
		}
	}
}

func TestDecodePacket_NoSecondaryHeaderIgnoresVariant(t *testing.T) {
	b := mustPacket(t, tcFields(1, 0), nil, []byte{1, 2, 3}).Encode()
	p, err := DecodePacket(b, WithVariant(VariantPusA))
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if p.SecondaryHeader() != nil || p.Variant() != VariantNone {
		t.Errorf("unexpected secondary header %v", p.SecondaryHeader())
	}
}

func TestDecodePacket_InvalidChecksumConfig(t *testing.T) {
	b := mustPacket(t, tcFields(1, 0), nil, []byte{1, 2, 3}).Encode()
	_, err := DecodePacket(b, WithChecksum(CRC16Config{Polynomial: 0x1020}))
	if !errors.Is(err, ErrInvalidChecksumConfig) || layerOf(t, err) != LayerChecksum {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestPacket_Equal(t *testing.T) {
	a := mustPacket(t, tcFields(1, 0), NewPusA(testCommon), []byte{1})
	if !a.Equal(a.Clone()) {
		t.Error("packet not equal to its clone")
	}
	if a.Equal(nil) {
		t.Error("packet equal to nil")
	}
	b := mustPacket(t, tcFields(1, 1), NewPusA(testCommon), []byte{1})
	if a.Equal(b) {
		t.Error("different sequence counts compare equal")
	}
	c := mustPacket(t, tcFields(1, 0), NewPusA(testCommon), []byte{2})
	if a.Equal(c) {
		t.Error("different payloads compare equal")
	}
	var nilPacket *Packet
	if !nilPacket.Equal(nil) {
		t.Error("nil packets should compare equal")
	}
}

func TestPacketError_Messages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&PacketError{Layer: LayerChecksum, Err: ErrChecksumMismatch, Expected: 0x1234, Actual: 0xABCD},
			"packet checksum: checksum mismatch: expected 0x1234, got 0xABCD"},
		{&PacketError{Layer: LayerLength, Err: ErrLengthMismatch, Expected: 4, Actual: 3},
			"packet length: data length mismatch: expected 4 octets, got 3"},
		{&HeaderError{Layer: LayerSecondaryHeader, Variant: VariantPusB, Err: ErrTruncated, Want: 7, Got: 2},
			"PusB secondary header truncated: need 7 octets, got 2"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
