package filetype

import (
	"math"
	"strconv"
)

var byteUnits = []string{"Bytes", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders a byte count with base-1024 units, rounding to at most
// decimals places and dropping trailing zeros: 0 is "0 Bytes", 1536 is
// "1.5 KB", 1048576 is "1 MB".
func FormatBytes(n int64, decimals int) string {
	if n == 0 {
		return "0 Bytes"
	}
	if decimals < 0 {
		decimals = 0
	}

	sign := ""
	v := float64(n)
	if v < 0 {
		sign = "-"
		v = -v
	}

	i := 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}

	// Rounding can carry into the next unit (1023.999 KB -> 1024 KB).
	scale := math.Pow(10, float64(decimals))
	v = math.Round(v*scale) / scale
	if v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}

	return sign + strconv.FormatFloat(v, 'f', -1, 64) + " " + byteUnits[i]
}

// FormatPercent renders a saved-space percentage: "0" for zero, "< 0.1" for
// tiny non-zero values, otherwise one decimal place.
func FormatPercent(p float64) string {
	switch {
	case p == 0:
		return "0"
	case p > 0 && p < 0.1:
		return "< 0.1"
	default:
		return strconv.FormatFloat(p, 'f', 1, 64)
	}
}
