// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
)

// formatUptime formats a duration in milliseconds to a human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	for _, u := range []struct {
		n    uint64
		name string
	}{
		{days, "day"},
		{hours, "hour"},
		{minutes, "minute"},
	} {
		if u.n == 1 {
			parts = append(parts, "1 "+u.name)
		} else if u.n > 1 {
			parts = append(parts, fmt.Sprintf("%d %ss", u.n, u.name))
		}
	}
	if seconds > 0 || len(parts) == 0 {
		if seconds == 1 {
			parts = append(parts, "1 second")
		} else {
			parts = append(parts, fmt.Sprintf("%d seconds", seconds))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// activeAlarms returns the alarm codes set in the alarm bitmap
// (bit i of byte j is alarm 8*j+i)
func activeAlarms(bitmap []byte) []int {
	var codes []int
	for j, b := range bitmap {
		for i := 0; i < 8; i++ {
			if b&(1<<i) != 0 {
				codes = append(codes, j*8+i)
			}
		}
	}
	return codes
}

func formatAlarms(bitmap []byte) string {
	codes := activeAlarms(bitmap)
	if len(codes) == 0 {
		return "none"
	}
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprintf("0x%02X", c)
	}
	return strings.Join(parts, " ")
}
