package models

// Member is one validated spreadsheet row
type Member struct {
	Row           int    `json:"row"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	ActivityCount int    `json:"activity_count"`
	Role          string `json:"role"`

	Raw []interface{} `json:"-"`
}

// FlaggedMember is a member whose activity count is below their effective threshold
type FlaggedMember struct {
	Member
	Threshold int `json:"threshold"`
}

// RowError describes a spreadsheet row that was excluded from processing
type RowError struct {
	Row    int           `json:"row"`
	Reason string        `json:"reason"`
	Raw    []interface{} `json:"raw"`
}

// RowWarning describes a row that was processed with a fallback
type RowWarning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}
