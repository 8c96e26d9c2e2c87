package commands

import (
	"encoding/csv"
	"fmt"
	"io"

	"google.golang.org/api/sheets/v4"

	"github.com/Dev-debug-web-coder/Project-Portal/projects"
)

// sheetToTSV writes the worksheet data to f as TSV, restricted to the
// expected project columns.
func sheetToTSV(f io.Writer, data *sheets.ValueRange) error {
	rows, err := projects.MakeRows(data.Values)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'

	w.Write(projects.Columns)
	for _, row := range rows {
		record := make([]string, len(projects.Columns))
		for i, k := range projects.Columns {
			record[i] = row[k]
		}

		w.Write(record)
	}

	w.Flush()

	return w.Error()
}

// tsvToRows reads a TSV file (header row first) into the same column-keyed
// row maps produced from a worksheet, so that 'sync --file' and the fsnotify
// watch source feed the engine identically to a sheet read.
func tsvToRows(f io.Reader) ([]map[string]string, error) {
	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("TSV file is empty")
	}

	values := make([][]interface{}, len(records))
	for i, record := range records {
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}

		values[i] = row
	}

	return projects.MakeRows(values)
}
