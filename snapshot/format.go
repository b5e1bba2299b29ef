package snapshot

import (
	"strconv"
	"strings"
)

// labelSeparator sits between the size column and the object name.
const labelSeparator = " MB    "

// FormatMB renders a byte count as megabytes with two decimals.
//
// The count is first truncated to whole KiB (bytes >> 10) and only then
// divided by 1024, so sub-kilobyte precision never reaches the output. The
// last digit is rounded half away from zero. Negative counts render as zero.
func FormatMB(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	kb := bytes >> 10
	hundredths := (kb*100 + 512) / 1024

	var sb strings.Builder
	sb.Grow(8)
	sb.WriteString(strconv.FormatInt(hundredths/100, 10))
	sb.WriteByte('.')
	frac := hundredths % 100
	if frac < 10 {
		sb.WriteByte('0')
	}
	sb.WriteString(strconv.FormatInt(frac, 10))
	return sb.String()
}

// FormatLabel builds the display label of a row: "{MB} MB    {name}".
func FormatLabel(bytes int64, name string) string {
	return FormatMB(bytes) + labelSeparator + name
}
