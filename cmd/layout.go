// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package cmd

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds"
	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds/config"
)

// loadLayout returns the packet template from --config, or one built from
// the layout flags when no configuration file is given.
func loadLayout() (*config.Template, error) {
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		tpl, err := cfg.Template()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", configPath, err)
		}
		logger.Debug("packet layout loaded",
			zap.String("config", configPath),
			zap.Uint16("apid", tpl.Fields.APID),
			zap.Stringer("variant", tpl.Variant),
			zap.Bool("crc", tpl.Checksum))
		return tpl, nil
	}
	return layoutFromFlags(variantName, useCRC, crcPreset, coverage)
}

func layoutFromFlags(variant string, crc bool, preset, cover string) (*config.Template, error) {
	v, err := ccsds.ParseVariant(variant)
	if err != nil {
		return nil, err
	}
	cov, err := parseCoverage(cover)
	if err != nil {
		return nil, err
	}
	tpl := &config.Template{
		Fields:    ccsds.PrimaryFields{SequenceFlags: ccsds.Unsegmented},
		Variant:   v,
		Segmented: true,
		Checksum:  crc,
		Coverage:  cov,
	}
	if tpl.CRC, err = ccsds.CRC16Preset(preset); err != nil {
		return nil, err
	}
	switch v {
	case ccsds.VariantPusA:
		tpl.Secondary = ccsds.NewPusA(ccsds.PusCommon{})
	case ccsds.VariantPusB:
		tpl.Secondary = ccsds.NewPusB(ccsds.PusCommon{}, 0)
	case ccsds.VariantPusC:
		tpl.Secondary = ccsds.NewPusC(ccsds.PusCommon{}, 0)
	}
	return tpl, nil
}

func parseCoverage(s string) (ccsds.Coverage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "packet":
		return ccsds.CoverPacket, nil
	case "data_field", "datafield":
		return ccsds.CoverDataField, nil
	}
	return 0, fmt.Errorf("unknown coverage %q (use packet or data_field)", s)
}

// parsePacketType accepts TM/TC as well as the numeric field values.
func parsePacketType(s string) (ccsds.PacketType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TM", "TELEMETRY", "0":
		return ccsds.Telemetry, nil
	case "TC", "TELECOMMAND", "1":
		return ccsds.Telecommand, nil
	}
	return 0, fmt.Errorf("unknown packet type %q (use TM or TC)", s)
}
