// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// parseHexBytes accepts "40 03 00", "400300", "0x40,0x03,0x00" and mixes of them
func parseHexBytes(args ...string) ([]byte, error) {
	var out []byte
	for _, arg := range args {
		fields := strings.FieldsFunc(arg, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == ':'
		})
		for _, f := range fields {
			f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
			if len(f)%2 == 1 {
				f = "0" + f
			}
			b, err := hex.DecodeString(f)
			if err != nil {
				return nil, fmt.Errorf("invalid hex %q: %w", f, err)
			}
			out = append(out, b...)
		}
	}
	return out, nil
}
