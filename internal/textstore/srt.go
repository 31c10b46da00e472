package textstore

import (
	"fmt"
	"strings"
)

// FormatTimestamp renders seconds as SRT's "HH:MM:SS,mmm" (or the
// decimalMarker given), omitting the hours field only when
// alwaysIncludeHours is false and the value is under an hour.
func FormatTimestamp(seconds float64, alwaysIncludeHours bool, decimalMarker string) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMS := int64(seconds*1000.0 + 0.5) // round to nearest millisecond

	hours := totalMS / 3_600_000
	totalMS -= hours * 3_600_000
	minutes := totalMS / 60_000
	totalMS -= minutes * 60_000
	secs := totalMS / 1_000
	totalMS -= secs * 1_000
	ms := totalMS

	hoursPart := ""
	if alwaysIncludeHours || hours > 0 {
		hoursPart = fmt.Sprintf("%02d:", hours)
	}
	return fmt.Sprintf("%s%02d:%02d%s%03d", hoursPart, minutes, secs, decimalMarker, ms)
}

// breakLine splits line at the space nearest its midpoint, at or before
// length, never splitting mid-word. Lines shorter than that, or lines with
// no splittable space, are returned unchanged.
func breakLine(line string, length int) string {
	breakIndex := len(line) / 2
	if length < breakIndex {
		breakIndex = length
	}
	for breakIndex > 1 {
		if line[breakIndex-1] == ' ' {
			break
		}
		breakIndex--
	}
	if breakIndex > 1 {
		return line[:breakIndex-1] + "\n" + line[breakIndex:]
	}
	return line
}

// RenderSRT writes units (already in chunkID order) as an SRT document. Each
// entry uses its chunkID as the SRT index, always includes the hours field,
// and collapses stray "-->" sequences inside the text to "->" so they can't
// be confused with the timing arrow. lineLength > 0 additionally wraps long
// lines at the nearest word boundary (Netflix-style subtitle guidance).
func RenderSRT(units []TextUnit, lineLength int) string {
	var b strings.Builder
	for _, u := range units {
		text := strings.ReplaceAll(u.Text, "-->", "->")
		if lineLength > 0 && len(text) > lineLength {
			text = breakLine(text, lineLength)
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			u.ChunkID,
			FormatTimestamp(u.Timespan.Start, true, ","),
			FormatTimestamp(u.Timespan.End, true, ","),
			text,
		)
	}
	return b.String()
}
