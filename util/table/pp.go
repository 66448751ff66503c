// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table formats data into a text-based table for human consumption.
package table

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ebay/graphopt/util/cmp"
	"golang.org/x/text/unicode/norm"
)

// Options represents different ways to control how the table is generated
type Options int

const (
	// HeaderRow if specified will format the first row in the table
	// as a header (i.e. there is a separator between it and the next row)
	HeaderRow Options = 1 << iota
	// FooterRow if specified will format the last row of the table
	// as a footer (i.e. there is a separator between it and the previous row)
	FooterRow
	// SkipEmpty if specified will cause nothing to be generated in the case
	// that the table has no data (i.e. no rows besides the header & footer rows
	// if they are enabled)
	SkipEmpty
	// RightJustify indicates that cells should have their contents right
	// justified (left padded), rather than the default of left justified.
	RightJustify
)

func (o Options) has(flag Options) bool {
	return o&flag != 0
}

// chromeRows returns the number of header and footer rows.
func (o Options) chromeRows() int {
	r := 0
	if o.has(HeaderRow) {
		r++
	}
	if o.has(FooterRow) {
		r++
	}
	return r
}

// dividerAfter returns true if a divider goes after row 'ridx' of a table
// with 'numRows' rows.
func (o Options) dividerAfter(ridx, numRows int) bool {
	return (o.has(HeaderRow) && ridx == 0) ||
		(o.has(FooterRow) && ridx == numRows-2)
}

// Format describes how Print lays out a table.
type Format struct {
	Options Options
	// If > 0, lines of a cell wider than this many characters are broken into
	// several lines.
	MaxCellWidth int
}

// PrettyPrint writes 't' as a nicely formatted table to the supplied Writer.
// It's the same as Print with no maximum cell width.
func PrettyPrint(dest io.Writer, t [][]string, opts Options) error {
	return Print(dest, t, Format{Options: opts})
}

// Print writes 't' as a nicely formatted table to the supplied Writer.
//
// If HeaderRow / FooterRow options are specified then a divider will be added
// between the header and/or footer rows. Cells are allowed to be multi-line,
// use \n as a line break. If no Justify option is used, the default is to left
// justify. Rows with fewer cells than others are padded with empty cells. It
// returns the first error from dest.
func Print(dest io.Writer, t [][]string, f Format) error {
	if len(t) == 0 || (f.Options.has(SkipEmpty) && len(t) <= f.Options.chromeRows()) {
		return nil
	}
	l := newLayout(t, f.MaxCellWidth)
	w := bufio.NewWriterSize(dest, 256)
	// bufio.Writer remembers the first error, so it's checked once, by Flush.
	for ridx, row := range l.rows {
		for lidx := 0; lidx < l.heights[ridx]; lidx++ {
			for cidx, width := range l.widths {
				w.WriteByte(' ')
				w.WriteString(row[cidx].line(lidx, width, f.Options))
				w.WriteString(" |")
			}
			w.WriteByte('\n')
		}
		if f.Options.dividerAfter(ridx, len(l.rows)) {
			for _, width := range l.widths {
				w.WriteByte(' ')
				w.WriteString(strings.Repeat("-", width))
				w.WriteString(" |")
			}
			w.WriteByte('\n')
		}
	}
	return w.Flush()
}

// layout is a table of cells along with the width of each column and the
// height of each row.
type layout struct {
	rows    [][]cell
	widths  []int
	heights []int
}

func newLayout(t [][]string, maxCellWidth int) *layout {
	numCols := 0
	for _, row := range t {
		numCols = cmp.MaxInt(numCols, len(row))
	}
	l := &layout{
		rows:    make([][]cell, len(t)),
		widths:  make([]int, numCols),
		heights: make([]int, len(t)),
	}
	for ridx, row := range t {
		l.rows[ridx] = make([]cell, numCols)
		for cidx := range l.rows[ridx] {
			s := ""
			if cidx < len(row) {
				s = row[cidx]
			}
			c := makeCell(s, maxCellWidth)
			l.rows[ridx][cidx] = c
			l.widths[cidx] = cmp.MaxInt(l.widths[cidx], c.width())
			l.heights[ridx] = cmp.MaxInt(l.heights[ridx], len(c))
		}
	}
	return l
}

// cell holds the lines of a table cell, normalized to NFC.
type cell []string

func makeCell(s string, maxWidth int) cell {
	var c cell
	for _, l := range strings.Split(norm.NFC.String(s), "\n") {
		c = append(c, wrap(l, maxWidth)...)
	}
	return c
}

// wrap breaks 'l' into lines of at most 'maxWidth' characters. It doesn't
// break lines if maxWidth <= 0.
func wrap(l string, maxWidth int) []string {
	if maxWidth <= 0 || utf8.RuneCountInString(l) <= maxWidth {
		return []string{l}
	}
	var res []string
	runes := []rune(l)
	for len(runes) > 0 {
		n := cmp.MinInt(maxWidth, len(runes))
		res = append(res, string(runes[:n]))
		runes = runes[n:]
	}
	return res
}

func (c cell) width() int {
	w := 0
	for _, l := range c {
		w = cmp.MaxInt(w, charsWide(l))
	}
	return w
}

// line returns line 'i' of the cell padded to 'width', or a blank line if the
// cell is shorter.
func (c cell) line(i, width int, opts Options) string {
	l := ""
	if i < len(c) {
		l = c[i]
	}
	pad := strings.Repeat(" ", width-charsWide(l))
	if opts.has(RightJustify) {
		return pad + l
	}
	return l + pad
}

// charsWide estimates how wide a string will be on a typical terminal or web
// browser. The problem is a bit harder than it appears thanks to Unicode; the
// corresponding unit tests have some interesting cases.
func charsWide(s string) int {
	s = norm.NFC.String(s)
	return utf8.RuneCountInString(s)
}
