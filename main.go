// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs
//
// ccsdspack - CCSDS Space Packet encoder, decoder and analyzer

package main

import (
	"fmt"
	"os"

	"github.com/ExoSpaceLabs/CCSDSPack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
