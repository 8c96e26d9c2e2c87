package projects

import (
	"fmt"
	"strconv"
)

// MakeRows converts a worksheet cell grid (header row followed by data rows,
// as returned by the Sheets API) into a list of column-name to cell-value
// mappings. Expected column names are matched exactly, unknown columns are
// ignored and blank rows are skipped.
func MakeRows(values [][]interface{}) ([]map[string]string, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("empty sheet")
	}

	// .. build column index
	expected := map[string]bool{}
	for _, column := range Columns {
		expected[column] = true
	}

	index := map[string]int{}
	header := values[0]
	for i, v := range header {
		k := clean(cell(v))
		if !expected[k] {
			continue
		}

		if _, ok := index[k]; ok {
			return nil, fmt.Errorf("duplicate column name '%s'", k)
		}

		index[k] = i
	}

	if _, ok := index["serial"]; !ok {
		return nil, fmt.Errorf("missing 'serial' column")
	}

	if _, ok := index["name"]; !ok {
		return nil, fmt.Errorf("missing 'name' column")
	}

	// ... records
	rows := []map[string]string{}
	for _, row := range values[1:] {
		fields := map[string]string{}
		blank := true

		for k, ix := range index {
			if ix < len(row) {
				v := clean(cell(row[ix]))
				if v != "" {
					fields[k] = v
					blank = false
				}
			}
		}

		if blank {
			continue
		}

		rows = append(rows, fields)
	}

	return rows, nil
}

// cell renders a raw worksheet cell value as a string. The Sheets API
// returns cells as strings with UNFORMATTED_VALUE disabled, but numeric and
// boolean cells can come back as native types.
func cell(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value

	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)

	case bool:
		return strconv.FormatBool(value)

	case nil:
		return ""

	default:
		return fmt.Sprintf("%v", value)
	}
}
