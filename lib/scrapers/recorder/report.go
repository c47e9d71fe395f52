package recorder

// ReportFunc receives record and document local errors as they happen. The
// operation that reports keeps going with the next row, document or page.
type ReportFunc func(err error)

func (f ReportFunc) report(err error) {
	if f != nil && err != nil {
		f(err)
	}
}
