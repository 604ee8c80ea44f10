// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds"
)

const sampleConfig = `
# telecommand template
ccsds_version_number:int=0
ccsds_type:bool=true
ccsds_data_field_header_flag:bool=true
ccsds_APID:int=0x64
ccsds_segmented:bool=1
data_field_size:int=64
secondary_header_type:string="PusB"
pus_version:int=1
pus_service_type:int=17
pus_service_subtype:int=2
pus_source_id:int=0x42
pus_event_id:int=7
crc_enable:bool=true
crc_preset:string=CRC-16/ARC
validation_enable:bool=true
sync_pattern_enable:bool=false
sync_pattern:int=0x1ACFFC1D
`

func mustParse(t *testing.T, s string) *Config {
	t.Helper()
	cfg, err := Parse(strings.NewReader(s))
	require.NoError(t, err)
	return cfg
}

func TestParse_Types(t *testing.T) {
	cfg := mustParse(t, `
name:string="hello world"
raw:string=plain
count:int=42
hex:int=0x1F
neg:int=-3
ratio:float=0.5
on:bool=true
off:bool=0
blob:bytes=[1, 0x02, 255]
empty:bytes=[]
`)

	s, err := cfg.String("name")
	require.NoError(t, err)
	assert.Equal(t, "hello world", s)

	s, err = cfg.String("raw")
	require.NoError(t, err)
	assert.Equal(t, "plain", s)

	for key, want := range map[string]int64{"count": 42, "hex": 31, "neg": -3} {
		got, err := cfg.Int(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}

	f, err := cfg.Float("ratio")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f, 1e-9)

	f, err = cfg.Float("count")
	require.NoError(t, err, "int values widen to float")
	assert.InDelta(t, 42.0, f, 1e-9)

	b, err := cfg.Bool("on")
	require.NoError(t, err)
	assert.True(t, b)
	b, err = cfg.Bool("off")
	require.NoError(t, err)
	assert.False(t, b)

	blob, err := cfg.Bytes("blob")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 255}, blob)

	empty, err := cfg.Bytes("empty")
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.Equal(t, []string{"name", "raw", "count", "hex", "neg", "ratio", "on", "off", "blob", "empty"}, cfg.Keys())
}

func TestParse_LaterLinesOverride(t *testing.T) {
	cfg := mustParse(t, "a:int=1\nb:int=2\na:int=3\n")
	v, err := cfg.Int("a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
	assert.Equal(t, []string{"a", "b"}, cfg.Keys())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"no colon", "key=1"},
		{"no equals", "key:int"},
		{"equals before colon", "key=int:1"},
		{"empty key", ":int=1"},
		{"unknown type", "key:uint=1"},
		{"bad int", "key:int=abc"},
		{"bad bool", "key:bool=maybe"},
		{"bad float", "key:float=1.2.3"},
		{"bytes without brackets", "key:bytes=1,2"},
		{"empty byte token", "key:bytes=[1,,2]"},
		{"byte overflow", "key:bytes=[256]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader("# header\n" + tt.line + "\n"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyntax)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, 2, pe.Line)
			assert.Equal(t, tt.line, pe.Text)
		})
	}
}

func TestGetters_MissingAndWrongType(t *testing.T) {
	cfg := mustParse(t, "name:string=x\nflag:int=2\n")

	_, err := cfg.Int("absent")
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = cfg.Int("name")
	assert.ErrorIs(t, err, ErrWrongType)

	_, err = cfg.Bool("flag")
	assert.ErrorIs(t, err, ErrWrongType, "only 0 and 1 convert to bool")

	assert.True(t, cfg.Has("name"))
	assert.False(t, cfg.Has("absent"))
}

func TestBytes_ReturnsCopy(t *testing.T) {
	cfg := mustParse(t, "blob:bytes=[1,2]\n")
	b, err := cfg.Bytes("blob")
	require.NoError(t, err)
	b[0] = 9

	again, err := cfg.Bytes("blob")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, again)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packet.cfg")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Has(KeyAPID))

	_, err = Load(filepath.Join(t.TempDir(), "missing.cfg"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// ============================================================
// Template Tests
// ============================================================

func TestTemplate_Sample(t *testing.T) {
	tpl, err := mustParse(t, sampleConfig).Template()
	require.NoError(t, err)

	assert.Equal(t, ccsds.PrimaryFields{
		Version:       0,
		Type:          ccsds.Telecommand,
		APID:          100,
		SequenceFlags: ccsds.Unsegmented,
	}, tpl.Fields)
	assert.Equal(t, ccsds.VariantPusB, tpl.Variant)
	assert.Equal(t, ccsds.NewPusB(ccsds.PusCommon{Version: 1, ServiceType: 17, ServiceSubtype: 2, SourceID: 0x42}, 7), tpl.Secondary)
	assert.Equal(t, 64, tpl.DataFieldSize)
	assert.True(t, tpl.Segmented)
	assert.True(t, tpl.ValidationEnabled)
	assert.True(t, tpl.Checksum)
	assert.Equal(t, uint16(0x8005), tpl.CRC.Polynomial)
	assert.Equal(t, ccsds.CoverPacket, tpl.Coverage)
}

func TestTemplate_Minimal(t *testing.T) {
	tpl, err := mustParse(t, "ccsds_APID:int=5\n").Template()
	require.NoError(t, err)

	assert.Equal(t, uint16(5), tpl.Fields.APID)
	assert.Equal(t, ccsds.Telemetry, tpl.Fields.Type)
	assert.Equal(t, ccsds.VariantNone, tpl.Variant)
	assert.Nil(t, tpl.Secondary)
	assert.False(t, tpl.Checksum)
	assert.Equal(t, ccsds.DefaultCRC16Config(), tpl.CRC)
}

func TestTemplate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		target error
	}{
		{"missing APID", "ccsds_version_number:int=0\n", ErrMissingKey},
		{"APID as string", "ccsds_APID:string=5\n", ErrWrongType},
		{"APID range", "ccsds_APID:int=2048\n", nil},
		{"version range", "ccsds_APID:int=1\nccsds_version_number:int=8\n", nil},
		{"flag contradicts type", "ccsds_APID:int=1\nccsds_data_field_header_flag:bool=true\n", nil},
		{"unknown variant", "ccsds_APID:int=1\nsecondary_header_type:string=PusZ\n", nil},
		{"unknown preset", "ccsds_APID:int=1\ncrc_preset:string=CRC-99\n", nil},
		{"even polynomial", "ccsds_APID:int=1\ncrc_polynomial:int=0x1020\n", nil},
		{"bad coverage", "ccsds_APID:int=1\ncrc_coverage:string=trailer\n", nil},
		{"event ID range", "ccsds_APID:int=1\nsecondary_header_type:string=PusB\npus_event_id:int=300\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mustParse(t, tt.config).Template()
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestTemplate_CustomCRCAndCoverage(t *testing.T) {
	tpl, err := mustParse(t, `
ccsds_APID:int=1
crc_enable:bool=true
crc_polynomial:int=0x8005
crc_initial:int=0
crc_coverage:string=data_field
`).Template()
	require.NoError(t, err)

	assert.Equal(t, "custom", tpl.CRC.Name)
	assert.Equal(t, uint16(0x8005), tpl.CRC.Polynomial)
	assert.Equal(t, uint16(0), tpl.CRC.Initial)
	assert.Equal(t, ccsds.CoverDataField, tpl.Coverage)
}

func TestTemplate_SegmenterRespectsDataFieldSize(t *testing.T) {
	tpl, err := mustParse(t, sampleConfig).Template()
	require.NoError(t, err)

	s, err := tpl.Segmenter()
	require.NoError(t, err)
	assert.Equal(t, 64-ccsds.PusBSize-ccsds.ChecksumSize, s.Capacity())

	packets, err := s.Segment(bytes.Repeat([]byte{0xAB}, 200))
	require.NoError(t, err)
	require.Len(t, packets, 4)
	for _, p := range packets {
		assert.LessOrEqual(t, p.Primary().DataFieldLength(), 64)
		assert.Equal(t, uint16(100), p.APID())
	}
	assert.Equal(t, ccsds.SegmentFirst, packets[0].SequenceFlags())
	assert.Equal(t, ccsds.SegmentLast, packets[3].SequenceFlags())
}

func TestTemplate_UnsegmentedRejectsLargeData(t *testing.T) {
	tpl, err := mustParse(t, "ccsds_APID:int=1\nccsds_segmented:bool=false\ndata_field_size:int=8\n").Template()
	require.NoError(t, err)

	s, err := tpl.Segmenter()
	require.NoError(t, err)
	_, err = s.Segment(make([]byte, 9))
	assert.ErrorIs(t, err, ccsds.ErrSegmentation)
}

func TestTemplate_DataFieldSizeTooSmall(t *testing.T) {
	tpl, err := mustParse(t, "ccsds_APID:int=1\nsecondary_header_type:string=PusA\ndata_field_size:int=8\n").Template()
	require.NoError(t, err)

	_, err = tpl.Segmenter()
	assert.Error(t, err)
}

func TestTemplate_Validator(t *testing.T) {
	tpl, err := mustParse(t, sampleConfig).Template()
	require.NoError(t, err)
	v, err := tpl.Validator()
	require.NoError(t, err)

	s, err := tpl.Segmenter()
	require.NoError(t, err)
	packets, err := s.Segment([]byte{1, 2, 3})
	require.NoError(t, err)

	p, anomalies := v.Validate(packets[0].Encode())
	assert.Empty(t, anomalies)
	require.NotNil(t, p)
	assert.Equal(t, []byte{1, 2, 3}, p.UserData())

	other, err := ccsds.NewPacket(ccsds.PrimaryFields{APID: 5, Type: ccsds.Telecommand, SequenceFlags: ccsds.Unsegmented},
		tpl.Secondary, []byte{1}, tpl.Options()...)
	require.NoError(t, err)
	_, anomalies = v.Validate(other.Encode())
	require.NotEmpty(t, anomalies)
	assert.Equal(t, ccsds.AnomalyAPIDMismatch, anomalies[0].Type)
}
