package main

import (
	"fmt"
	"strconv"
)

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// hoursLabel formats an optional estimate; nil prints as "-".
func hoursLabel(h *float64) string {
	if h == nil {
		return "-"
	}
	return formatHours(*h)
}

// formatHours prints whole hours without decimals (e.g. 8 -> "8h", 2.5 -> "2.5h").
func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64) + "h"
}

// lagLabel prints a dependency lag, with leads shown as negative.
func lagLabel(lag int) string {
	if lag == 0 {
		return "-"
	}
	return fmt.Sprintf("%+dh", lag)
}
