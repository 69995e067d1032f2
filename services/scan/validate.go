// Package scan reads member activity rows, validates them and flags members below their role threshold.
package scan

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/utils"
)

// Row error reasons
const (
	ReasonInvalidEmail    = "missing or invalid email"
	ReasonInvalidActivity = "invalid activity count"
)

// Column positions within a row
const (
	colName = iota
	colEmail
	colActivity
	colRole
)

// ValidationResult splits rows into valid members, row errors and warnings
type ValidationResult struct {
	Members  []models.Member     `json:"members"`
	Errors   []models.RowError   `json:"errors"`
	Warnings []models.RowWarning `json:"warnings"`
}

// ValidateRows validates [name, email, activity, role] rows. offset is the sheet row number of rows[0].
// Invalid rows are reported individually and excluded; blank rows are skipped.
func ValidateRows(rows [][]interface{}, offset int) ValidationResult {
	if offset < 1 {
		offset = 1
	}

	result := ValidationResult{
		Members:  make([]models.Member, 0, len(rows)),
		Errors:   []models.RowError{},
		Warnings: []models.RowWarning{},
	}

	for i, raw := range rows {
		rowNum := offset + i
		if isBlank(raw) {
			continue
		}

		email, ok := stringCell(raw, colEmail)
		if !ok || !utils.IsValidEmail(email) {
			result.Errors = append(result.Errors, models.RowError{Row: rowNum, Reason: ReasonInvalidEmail, Raw: raw})
			continue
		}

		activity, ok := parseActivity(cell(raw, colActivity))
		if !ok {
			result.Errors = append(result.Errors, models.RowError{Row: rowNum, Reason: ReasonInvalidActivity, Raw: raw})
			continue
		}

		name := textCell(raw, colName)
		if name == "" {
			name = email
			result.Warnings = append(result.Warnings, models.RowWarning{Row: rowNum, Message: "missing name, using email address"})
		}

		role := textCell(raw, colRole)
		if role == "" {
			result.Warnings = append(result.Warnings, models.RowWarning{Row: rowNum, Message: "missing role, using generic template"})
		}

		result.Members = append(result.Members, models.Member{
			Row:           rowNum,
			Name:          name,
			Email:         email,
			ActivityCount: activity,
			Role:          role,
			Raw:           raw,
		})
	}

	return result
}

func cell(row []interface{}, idx int) interface{} {
	if idx >= len(row) {
		return nil
	}
	return row[idx]
}

// stringCell returns a trimmed string cell; non-string values are rejected
func stringCell(row []interface{}, idx int) (string, bool) {
	s, ok := cell(row, idx).(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// textCell renders any scalar cell as trimmed text
func textCell(row []interface{}, idx int) string {
	switch v := cell(row, idx).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func isBlank(row []interface{}) bool {
	for i := range row {
		if textCell(row, i) != "" {
			return false
		}
	}
	return true
}

// parseActivity accepts non-negative whole numbers given as JSON numbers, Go numbers or numeric strings
func parseActivity(v interface{}) (int, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return checkCount(float64(i))
		}
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return checkCount(f)
}

func checkCount(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
