package upload

import "strconv"

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// FormatSize renders bytes in powers of 1024 with at most decimals fractional
// digits; trailing zeros are dropped ("1.5 KB", "10 KB").
func FormatSize(bytes uint64, decimals int) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	if decimals < 0 {
		decimals = 0
	}

	unit := 0
	value := float64(bytes)
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}

	fixed := strconv.FormatFloat(value, 'f', decimals, 64)
	trimmed, err := strconv.ParseFloat(fixed, 64)
	if err != nil {
		return fixed + " " + sizeUnits[unit]
	}
	return strconv.FormatFloat(trimmed, 'f', -1, 64) + " " + sizeUnits[unit]
}
