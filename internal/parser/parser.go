// Package parser extracts raw price rows from the source's HTML price list.
// It never coerces values: every cell is passed on as the trimmed source text.
package parser

import (
	"bytes"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RawRow maps canonical column names to unvalidated source strings
type RawRow map[string]string

// Options tune page-level extraction
type Options struct {
	// DateSelector is a CSS selector whose text carries the trading date.
	// Empty searches the page headings, then the whole document.
	DateSelector string
	// DefaultDate is used when neither a date column nor a page date exists
	DefaultDate string
}

// Table is a price table located in a page
type Table struct {
	columns []string
	rows    []tableRow
	date    string
}

type tableRow struct {
	cells  []string
	sector string
}

var (
	isoDatePattern   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	longDatePattern  = regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?,?\s+\d{4}\b`)
	slashDatePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
)

// Parse locates the price table in rawBody. It fails with KindEmptyResponse on
// a blank body and KindStructureMismatch when no table carries at least a
// symbol and a close column with one aligned data row.
func Parse(rawBody []byte, opts Options) (*Table, error) {
	if len(bytes.TrimSpace(rawBody)) == 0 {
		return nil, &ParseError{Kind: KindEmptyResponse, Detail: "source returned an empty body"}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawBody))
	if err != nil {
		return nil, &ParseError{Kind: KindStructureMismatch, Detail: "unreadable markup", Err: err}
	}

	var best *Table
	tablesSeen := 0
	doc.Find("table").Each(func(_ int, sel *goquery.Selection) {
		tablesSeen++
		t := extractTable(sel)
		if t == nil || len(t.rows) == 0 {
			return
		}
		if best == nil || len(t.rows) > len(best.rows) {
			best = t
		}
	})

	if best == nil {
		return nil, &ParseError{
			Kind:   KindStructureMismatch,
			Detail: "no price table with symbol and close columns found among " + strconv.Itoa(tablesSeen) + " tables",
		}
	}

	best.date = findPageDate(doc, opts.DateSelector)
	if best.date == "" {
		best.date = opts.DefaultDate
	}
	return best, nil
}

// Columns returns the canonical columns recognised in the header, in order.
// Unrecognised header cells are reported as "".
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of aligned data rows
func (t *Table) Len() int {
	return len(t.rows)
}

// PageDate returns the trading date found on the page, or the default
func (t *Table) PageDate() string {
	return t.date
}

// Rows yields one RawRow per aligned data row, in document order
func (t *Table) Rows() iter.Seq[RawRow] {
	return func(yield func(RawRow) bool) {
		for _, r := range t.rows {
			row := make(RawRow, len(t.columns)+2)
			for i, col := range t.columns {
				if col == "" {
					continue
				}
				if _, dup := row[col]; dup {
					continue
				}
				row[col] = r.cells[i]
			}
			if _, ok := row[ColDate]; !ok && t.date != "" {
				row[ColDate] = t.date
			}
			if r.sector != "" {
				row[ColSector] = r.sector
			}
			if !yield(row) {
				return
			}
		}
	}
}

func extractTable(sel *goquery.Selection) *Table {
	// rows of nested tables belong to those tables
	trs := sel.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(sel)
	})
	headerIdx := -1
	var columns []string
	trs.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cols := headerColumns(cellTexts(tr))
		if cols == nil {
			return true
		}
		headerIdx, columns = i, cols
		return false
	})
	if headerIdx < 0 {
		return nil
	}

	t := &Table{columns: columns}
	sector := ""
	trs.Slice(headerIdx+1, trs.Length()).Each(func(_ int, tr *goquery.Selection) {
		cells := cellTexts(tr)
		switch {
		case len(cells) == len(columns):
			if blank(cells) || isRepeatedHeader(cells, columns) {
				return
			}
			t.rows = append(t.rows, tableRow{cells: cells, sector: sector})
		case len(cells) == 1 && cells[0] != "":
			sector = cells[0]
		}
	})
	return t
}

// headerColumns maps a row to canonical columns when it reads as a price
// table header, i.e. names at least a symbol and a close column.
func headerColumns(cells []string) []string {
	columns := make([]string, len(cells))
	var hasSymbol, hasClose bool
	for i, c := range cells {
		columns[i] = canonicalColumn(c)
		hasSymbol = hasSymbol || columns[i] == ColSymbol
		hasClose = hasClose || columns[i] == ColClose
	}
	if !hasSymbol || !hasClose {
		return nil
	}
	return columns
}

func cellTexts(tr *goquery.Selection) []string {
	var cells []string
	tr.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.Join(strings.Fields(cell.Text()), " "))
	})
	return cells
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func isRepeatedHeader(cells, columns []string) bool {
	for i, c := range cells {
		if columns[i] != "" && canonicalColumn(c) != columns[i] {
			return false
		}
	}
	return true
}

func findPageDate(doc *goquery.Document, selector string) string {
	if selector != "" {
		return matchDate(doc.Find(selector).First().Text())
	}
	if d := matchDate(doc.Find("title, h1, h2, h3, h4, caption").Text()); d != "" {
		return d
	}
	return matchDate(doc.Find("body").Text())
}

func matchDate(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	for _, re := range []*regexp.Regexp{isoDatePattern, longDatePattern, slashDatePattern} {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
