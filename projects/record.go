package projects

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the project delivery status as captured in the worksheet. The
// canonical set is closed but free-text values are preserved as-is and
// flagged rather than rejected.
type Status string

const (
	StatusActive    Status = "Active"
	StatusOnTrack   Status = "On Track"
	StatusAtRisk    Status = "At Risk"
	StatusOnHold    Status = "On Hold"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

var canonical = map[string]Status{
	"active":    StatusActive,
	"ontrack":   StatusOnTrack,
	"atrisk":    StatusAtRisk,
	"onhold":    StatusOnHold,
	"completed": StatusCompleted,
	"cancelled": StatusCancelled,
}

// ProjectRecord is the unit of synchronization and display - one worksheet
// row normalised into a typed record, keyed and ordered by Serial.
type ProjectRecord struct {
	Serial          int64
	Name            string
	Status          Status
	BudgetAllocated float64
	BudgetSpent     float64
	Progress        float64
	UpdatedAt       time.Time

	// NonCanonicalStatus is set when the worksheet status is not one of the
	// known status values. The value itself is preserved in Status.
	NonCanonicalStatus bool

	// ProgressClamped is set when the worksheet progress was missing or
	// outside [0,100] and has been clamped.
	ProgressClamped bool
}

// ValidationError describes why a worksheet row could not be normalised into
// a ProjectRecord. Row is the 1-based position of the row in the source
// snapshot (excluding the header row).
type ValidationError struct {
	Row    int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: invalid '%s' (%s)", e.Row, e.Field, e.Reason)
}

// Columns is the fixed set of expected worksheet column names. Column names
// are matched case-sensitively and unknown columns are ignored.
var Columns = []string{
	"serial",
	"name",
	"status",
	"budgetAllocated",
	"budgetSpent",
	"progress",
	"updatedAt",
}

// ParseRow normalises a single worksheet row (column name to raw cell value)
// into a ProjectRecord. 'serial' and 'name' are required, numeric fields are
// parsed with locale-tolerant rules and a parse failure returns a
// *ValidationError rather than aborting the batch.
func ParseRow(row int, fields map[string]string) (ProjectRecord, error) {
	record := ProjectRecord{}

	// ... serial
	v, ok := fields["serial"]
	if !ok || strings.TrimSpace(v) == "" {
		return record, &ValidationError{Row: row, Field: "serial", Reason: "missing"}
	}

	serial, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return record, &ValidationError{Row: row, Field: "serial", Reason: fmt.Sprintf("invalid value '%s'", v)}
	}

	record.Serial = serial

	// ... name
	v, ok = fields["name"]
	if !ok || strings.TrimSpace(v) == "" {
		return record, &ValidationError{Row: row, Field: "name", Reason: "missing"}
	}

	record.Name = strings.TrimSpace(v)

	// ... status
	if v, ok := fields["status"]; ok && strings.TrimSpace(v) != "" {
		status := strings.TrimSpace(v)
		if s, ok := canonical[normalise(status)]; ok {
			record.Status = s
		} else {
			record.Status = Status(status)
			record.NonCanonicalStatus = true
		}
	} else {
		record.Status = StatusActive
		record.NonCanonicalStatus = true
	}

	// ... budgets
	if amount, err := parseAmount(fields["budgetAllocated"]); err != nil {
		return record, &ValidationError{Row: row, Field: "budgetAllocated", Reason: err.Error()}
	} else if amount < 0 {
		return record, &ValidationError{Row: row, Field: "budgetAllocated", Reason: "negative amount"}
	} else {
		record.BudgetAllocated = amount
	}

	// NOTE: spent exceeding allocated signals overrun, not an error
	if amount, err := parseAmount(fields["budgetSpent"]); err != nil {
		return record, &ValidationError{Row: row, Field: "budgetSpent", Reason: err.Error()}
	} else if amount < 0 {
		return record, &ValidationError{Row: row, Field: "budgetSpent", Reason: "negative amount"}
	} else {
		record.BudgetSpent = amount
	}

	// ... progress, clamped to [0,100] rather than rejected
	record.Progress, record.ProgressClamped = parseProgress(fields["progress"])

	// ... updatedAt
	if v, ok := fields["updatedAt"]; ok && strings.TrimSpace(v) != "" {
		if timestamp, err := parseTimestamp(strings.TrimSpace(v)); err != nil {
			return record, &ValidationError{Row: row, Field: "updatedAt", Reason: err.Error()}
		} else {
			record.UpdatedAt = timestamp
		}
	}

	return record, nil
}

// Equal compares the synchronised fields of two records. Quality flags are
// derived and excluded, as is UpdatedAt (which is compared separately when
// deciding whether a stored record is out of date).
func (r ProjectRecord) Equal(other ProjectRecord) bool {
	return r.Serial == other.Serial &&
		r.Name == other.Name &&
		r.Status == other.Status &&
		r.BudgetAllocated == other.BudgetAllocated &&
		r.BudgetSpent == other.BudgetSpent &&
		r.Progress == other.Progress
}

// parseAmount parses a currency-ish amount with locale-tolerant separator
// rules e.g. '1,000.50', '1 000,50' and '$1000' are all accepted. A blank
// value parses as zero.
func parseAmount(v string) (float64, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return 0, nil
	}

	s = strings.TrimLeft(s, "$€£R ")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")

	comma := strings.LastIndex(s, ",")
	point := strings.LastIndex(s, ".")

	switch {
	case comma >= 0 && point >= 0:
		// the rightmost separator is the decimal separator
		if comma > point {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}

	case comma >= 0:
		// a single trailing comma group of 1 or 2 digits is a decimal
		// separator, anything else is a thousands separator
		if strings.Count(s, ",") == 1 && len(s)-comma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount '%s'", v)
	}

	return amount, nil
}

// parseProgress parses a percentage, clamping missing/malformed/out-of-range
// values into [0,100]. The second return value is true if the value was
// clamped or defaulted.
func parseProgress(v string) (float64, bool) {
	s := strings.TrimSuffix(strings.TrimSpace(v), "%")
	if s == "" {
		return 0, true
	}

	progress, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, true
	}

	if progress < 0 {
		return 0, true
	}

	if progress > 100 {
		return 100, true
	}

	return progress, false
}

func parseTimestamp(v string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"01/02/2006 15:04:05",
		"01/02/2006",
	}

	for _, format := range formats {
		if timestamp, err := time.ParseInLocation(format, v, time.Local); err == nil {
			return timestamp, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid timestamp '%s'", v)
}

func normalise(v string) string {
	return strings.ToLower(strings.ReplaceAll(v, " ", ""))
}

func clean(v string) string {
	return strings.TrimSpace(v)
}
