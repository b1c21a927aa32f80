// Package cairo emits Cairo source fragments for preprocessed DCAP test data.
package cairo

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// bytesPerRow is the number of array elements written per line by WriteBytes.
const bytesPerRow = 20

// WriteBytes writes data as a Cairo fixed-size byte array constant.
func WriteBytes(w io.Writer, data []byte) error {
	if _, err := fmt.Fprintf(w, "pub const DATA: [u8; %d] = [\n", len(data)); err != nil {
		return err
	}

	for start := 0; start < len(data); start += bytesPerRow {
		end := start + bytesPerRow
		if end > len(data) {
			end = len(data)
		}

		if _, err := fmt.Fprint(w, "   "); err != nil {
			return err
		}
		for _, b := range data[start:end] {
			if _, err := fmt.Fprintf(w, " 0x%02x,", b); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, "];")
	return err
}

// FormatDateTime renders a Cairo let binding constructing a UTC timestamp,
// preceded by the source timestamp as a comment.
func FormatDateTime(name string, t time.Time, src string) string {
	t = t.UTC()
	return fmt.Sprintf("    // %s\n"+
		"    let %s = OffsetDateTimeTrait::new_utc(\n"+
		"        DateTrait::from_calendar_date(%d, Month::%s, %d).unwrap(),\n"+
		"        TimeTrait::from_hms_milli(%d, %d, %d, %d).unwrap(),\n"+
		"    );\n\n",
		src, name,
		t.Year(), t.Month().String(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/1e6)
}

// FormatBytes renders data as a single-line list of Cairo hex literals.
func FormatBytes(data []byte, upper bool) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = formatByte(b, upper)
	}
	return strings.Join(parts, ", ")
}

// FormatBytesMultiline renders data as an indented multi-line list of Cairo
// hex literals, perLine elements per line. The closing line is indented one
// level less than the elements, matching a Cairo array literal body.
func FormatBytesMultiline(data []byte, perLine int, indent string, upper bool) string {
	var sb strings.Builder
	for start := 0; start < len(data); start += perLine {
		end := start + perLine
		if end > len(data) {
			end = len(data)
		}

		if start > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
		sb.WriteString(indent)
		sb.WriteString(FormatBytes(data[start:end], upper))
	}
	sb.WriteString(",\n")
	sb.WriteString(indent[:len(indent)-4])
	return sb.String()
}

// IsUpperHex reports whether s contains any uppercase hex digit. Generated
// output mirrors the case used in the source collateral.
func IsUpperHex(s string) bool {
	return strings.ContainsAny(s, "ABCDEF")
}

func formatByte(b byte, upper bool) string {
	if upper {
		return fmt.Sprintf("0x%02X", b)
	}
	return fmt.Sprintf("0x%02x", b)
}
