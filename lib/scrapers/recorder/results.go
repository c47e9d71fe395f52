package recorder

import (
	"iter"
	"net/url"
	"time"

	"recorder-scraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// DocumentRecord is one row of a results page, identified by DocumentID.
type DocumentRecord struct {
	Item         string
	DocumentID   string
	RecordedText string
	// Recorded is zero until the date filter has read RecordedText.
	Recorded     time.Time
	DocumentType string
	DocumentName string
	NameType     string
	// ViewerLink is absolute, empty when the row links nowhere.
	ViewerLink string
}

// Extraction holds the rows of one results table. Records can be consumed
// once.
type Extraction struct {
	layout ResultsLayout
	base   *url.URL
	rows   *goquery.Selection
	report ReportFunc

	consumed  bool
	malformed int
}

func emptyExtraction(layout ResultsLayout) *Extraction {
	return &Extraction{layout: layout, rows: &goquery.Selection{}}
}

// ExtractResults descends from the results frame through the print view to
// the innermost results table. When a container is missing it returns an
// empty extraction along with a *ResultsNotFoundError, a table without rows is
// not an error.
func ExtractResults(doc *goquery.Document, layout ResultsLayout, report ReportFunc) (*Extraction, error) {
	if layout.MinCells <= 0 {
		layout.MinCells = 6
	}

	frame := doc.Find(layout.Frame).First()
	if frame.Length() == 0 {
		return emptyExtraction(layout), &ResultsNotFoundError{Missing: "frame " + layout.Frame}
	}
	printView := frame.Find(layout.PrintView).First()
	if printView.Length() == 0 {
		return emptyExtraction(layout), &ResultsNotFoundError{Missing: "print view " + layout.PrintView}
	}
	table := innermostTable(printView, layout)
	if table == nil {
		return emptyExtraction(layout), &ResultsNotFoundError{Missing: "table " + layout.Table}
	}

	rows := table.Find(layout.Row).FilterFunction(func(_ int, row *goquery.Selection) bool {
		return row.Closest("table").IsSelection(table)
	})

	return &Extraction{
		layout: layout,
		base:   doc.Url,
		rows:   rows,
		report: report,
	}, nil
}

// innermostTable picks, among the tables matching layout.Table that contain
// no other matching table, the first one holding rows.
func innermostTable(container *goquery.Selection, layout ResultsLayout) *goquery.Selection {
	var first *goquery.Selection
	var withRows *goquery.Selection
	container.Find(layout.Table).EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if table.Find(layout.Table).Length() > 0 {
			return true
		}
		if first == nil {
			first = table
		}
		if table.Find(layout.Row).Length() > 0 {
			withRows = table
			return false
		}
		return true
	})
	if withRows != nil {
		return withRows
	}
	return first
}

// Rows is the number of candidate rows, malformed ones included.
func (e *Extraction) Rows() int {
	return e.rows.Length()
}

// Malformed is the number of short rows seen so far, it is final once
// Records has been drained.
func (e *Extraction) Malformed() int {
	return e.malformed
}

// Records yields the well formed rows in document order. Short rows are
// counted and reported as *MalformedRowError.
func (e *Extraction) Records() iter.Seq[DocumentRecord] {
	return func(yield func(DocumentRecord) bool) {
		if e.consumed {
			return
		}
		e.consumed = true

		for i := range e.rows.Length() {
			row := e.rows.Eq(i)
			cells := row.ChildrenFiltered("td")
			if cells.Length() < e.layout.MinCells {
				e.malformed++
				e.report.report(&MalformedRowError{Row: i + 1, Cells: cells.Length()})
				continue
			}
			if !yield(e.record(cells)) {
				return
			}
		}
	}
}

func (e *Extraction) record(cells *goquery.Selection) DocumentRecord {
	rec := DocumentRecord{
		Item:         htmlutil.Text(cells.Eq(0)),
		DocumentID:   htmlutil.Text(cells.Eq(1)),
		RecordedText: htmlutil.Text(cells.Eq(2)),
		DocumentType: htmlutil.Text(cells.Eq(3)),
		DocumentName: htmlutil.Text(cells.Eq(4)),
		NameType:     htmlutil.Text(cells.Eq(5)),
	}
	anchor, ok := htmlutil.GetAnchor(cells.Eq(1))
	if ok {
		link, err := htmlutil.Resolve(e.base, anchor.Href)
		if err == nil {
			rec.ViewerLink = link.String()
		} else {
			rec.ViewerLink = anchor.Href
		}
	}
	return rec
}
