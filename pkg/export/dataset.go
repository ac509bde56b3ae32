package export

import "fmt"

// Dataset is tabular export content. Every row must have len(Headers) cells.
type Dataset struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     [][]string
}

// Validate checks the table shape.
func (d Dataset) Validate() error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("dataset requires at least one header")
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(d.Headers))
		}
	}
	return nil
}

// AddRow appends cells as one row.
func (d *Dataset) AddRow(cells ...string) {
	d.Rows = append(d.Rows, cells)
}
