package commands

import (
	"reflect"
	"strings"
	"testing"

	"google.golang.org/api/sheets/v4"

	"github.com/Dev-debug-web-coder/Project-Portal/projects"
)

func TestSheetToTSV(t *testing.T) {
	expected := `serial	name	status	budgetAllocated	budgetSpent	progress	updatedAt
1001	Harbour Bridge Repaint	On Track	125000	37500.50	30	2024-03-17 14:30
1002	Tunnel Ventilation	On Hold	5000	4750	95	
`

	data := sheets.ValueRange{
		Values: [][]interface{}{
			{"serial", "name", "status", "budgetAllocated", "budgetSpent", "progress", "updatedAt"},
			{"1001", "Harbour Bridge Repaint", "On Track", "125000", "37500.50", "30", "2024-03-17 14:30"},
			{"1002", "Tunnel Ventilation", "On Hold", "5000", "4750", "95"},
		},
	}

	var b strings.Builder

	if err := sheetToTSV(&b, &data); err != nil {
		t.Fatalf("Unexpected error returned from sheetToTSV (%v)", err)
	}

	if b.String() != expected {
		t.Errorf("Incorrect TSV\n   expected: %v\n   got:      %v\n", expected, b.String())
	}
}

func TestTSVToRows(t *testing.T) {
	expected := []map[string]string{
		{"serial": "1001", "name": "Harbour Bridge Repaint", "status": "On Track", "progress": "30"},
		{"serial": "1002", "name": "Tunnel Ventilation", "status": "On Hold", "progress": "95"},
	}

	tsv := `serial	name	status	progress
1001	Harbour Bridge Repaint	On Track	30
1002	Tunnel Ventilation	On Hold	95
`

	rows, err := tsvToRows(strings.NewReader(tsv))
	if err != nil {
		t.Fatalf("Unexpected error returned from tsvToRows (%v)", err)
	}

	if !reflect.DeepEqual(rows, expected) {
		t.Errorf("Incorrect rows\n   expected: %v\n   got:      %v\n", expected, rows)
	}
}

func TestTSVToRowsWithEmptyFile(t *testing.T) {
	if _, err := tsvToRows(strings.NewReader("")); err == nil {
		t.Fatalf("Expected error return for empty TSV file, got %v", err)
	}
}

func TestTSVRoundTrip(t *testing.T) {
	data := sheets.ValueRange{
		Values: [][]interface{}{
			{"serial", "name", "status", "budgetAllocated", "budgetSpent", "progress", "updatedAt"},
			{"1001", "Harbour Bridge Repaint", "On Track", "125000", "37500.50", "30", "2024-03-17 14:30"},
		},
	}

	var b strings.Builder
	if err := sheetToTSV(&b, &data); err != nil {
		t.Fatalf("Unexpected error returned from sheetToTSV (%v)", err)
	}

	rows, err := tsvToRows(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("Unexpected error returned from tsvToRows (%v)", err)
	}

	expected, err := projects.MakeRows(data.Values)
	if err != nil {
		t.Fatalf("Unexpected error building expected rows (%v)", err)
	}

	if !reflect.DeepEqual(rows, expected) {
		t.Errorf("Incorrect round-tripped rows\n   expected: %v\n   got:      %v\n", expected, rows)
	}
}
