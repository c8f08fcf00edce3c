// Package hexdump renders process memory as a classic offset / hex / ASCII dump.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/Moonlight-Companies/gologger/coloransi"

	"procmem/process/memory_map"
)

// Options controls the dump layout.
type Options struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// GroupSize defines the grouping of bytes (usually 1, 2, 4, or 8)
	GroupSize int

	// ShowASCII determines whether to show the ASCII representation
	ShowASCII bool

	// StartOffset is the address of data[0]
	StartOffset uint64

	// OffsetWidth is the width of the offset column in hex digits
	OffsetWidth int

	// HighlightStart and HighlightLen mark a byte range (relative to data) to highlight
	HighlightStart int
	HighlightLen   int

	// Color enables ANSI colors for highlighted bytes
	Color bool

	// MaxLines is the maximum number of lines to show (0 for no limit)
	MaxLines int

	// Regions, when set, turns on a pointer preview: the qwords at the start
	// and middle of each line are printed when they point into a region.
	Regions []memory_map.Region
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() Options {
	return Options{
		BytesPerLine: 16,
		GroupSize:    1,
		ShowASCII:    true,
		OffsetWidth:  8,
		Color:        true,
	}
}

// Dump creates a hex dump of data
func Dump(data []byte, options Options) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpToWriter writes a hex dump of data to writer
func DumpToWriter(writer io.Writer, data []byte, options Options) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	if options.GroupSize <= 0 {
		options.GroupSize = 1
	}
	if options.OffsetWidth <= 0 {
		options.OffsetWidth = 8
	}

	lineCount := 0
	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		if options.MaxLines > 0 && lineCount >= options.MaxLines {
			fmt.Fprintf(writer, "... %d more bytes\n", len(data)-offset)
			break
		}

		end := min(offset+options.BytesPerLine, len(data))
		formatLine(writer, data[offset:end], offset, options)
		lineCount++
	}
}

// split reports whether a line of n bytes gets the mid-line divider
func split(n int, options Options) bool {
	return options.BytesPerLine >= 8 && n > options.BytesPerLine/2
}

// hexWidth is the printed width of the hex column for a line of n bytes
func hexWidth(n int, options Options) int {
	groups := (n + options.GroupSize - 1) / options.GroupSize
	width := n*2 + max(0, groups-1)
	if split(n, options) {
		width += 2
	}
	return width
}

func (o Options) highlighted(pos int) bool {
	return o.HighlightLen > 0 && pos >= o.HighlightStart && pos < o.HighlightStart+o.HighlightLen
}

func (o Options) paint(pos int, text string) string {
	if o.Color && o.highlighted(pos) {
		return coloransi.Color(coloransi.Red, coloransi.ColorOrange, text)
	}
	return text
}

// formatLine formats a single line; lineStart is the index of data[0] in the whole dump
func formatLine(writer io.Writer, data []byte, lineStart int, options Options) {
	fmt.Fprintf(writer, "%0*x  ", options.OffsetWidth, options.StartOffset+uint64(lineStart))

	var groups []string
	var group strings.Builder
	for i, b := range data {
		group.WriteString(options.paint(lineStart+i, fmt.Sprintf("%02x", b)))
		if (i+1)%options.GroupSize == 0 || i == len(data)-1 {
			groups = append(groups, group.String())
			group.Reset()
		}
	}

	leftGroups := (options.BytesPerLine / options.GroupSize) / 2
	if split(len(data), options) && leftGroups > 0 && leftGroups < len(groups) {
		fmt.Fprint(writer, strings.Join(groups[:leftGroups], " "), " | ", strings.Join(groups[leftGroups:], " "))
	} else {
		fmt.Fprint(writer, strings.Join(groups, " "))
	}

	if pad := hexWidth(options.BytesPerLine, options) - hexWidth(len(data), options); pad > 0 {
		fmt.Fprint(writer, strings.Repeat(" ", pad))
	}

	if options.ShowASCII {
		fmt.Fprint(writer, " | ")
		mid := options.BytesPerLine / 2
		for i, b := range data {
			if split(len(data), options) && i == mid {
				fmt.Fprint(writer, " ")
			}
			c := "."
			if b >= 0x20 && b < 0x7f {
				c = string(rune(b))
			}
			fmt.Fprint(writer, options.paint(lineStart+i, c))
		}
	}

	if len(options.Regions) > 0 && len(data) >= 8 {
		var pointers []string
		for _, at := range []int{0, 8} {
			if at+8 > len(data) {
				break
			}
			ptr := binary.LittleEndian.Uint64(data[at : at+8])
			if region := memory_map.Find(options.Regions, ptr); region != nil && !region.IsFree() {
				pointers = append(pointers, fmt.Sprintf("0x%x", ptr))
			}
		}
		if len(pointers) > 0 {
			fmt.Fprint(writer, " | ", strings.Join(pointers, " "))
		}
	}

	fmt.Fprintln(writer)
}

// DumpWithOffset creates a hex dump whose first byte is labelled startOffset
func DumpWithOffset(data []byte, startOffset uint64) string {
	options := DefaultOptions()
	options.StartOffset = startOffset
	return Dump(data, options)
}

// DumpMatch dumps memory around a pattern match and highlights the matched bytes.
func DumpMatch(data []byte, startOffset uint64, matchStart, matchLen int, regions []memory_map.Region) string {
	options := DefaultOptions()
	options.StartOffset = startOffset
	options.OffsetWidth = 12
	options.HighlightStart = matchStart
	options.HighlightLen = matchLen
	options.Regions = regions
	return Dump(data, options)
}
