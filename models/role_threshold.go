package models

import (
	"strings"
	"time"
)

// DefaultActivityThreshold applies to any role without an override
const DefaultActivityThreshold = 5

// RoleThreshold overrides the default activity threshold for one normalized role
type RoleThreshold struct {
	Role      string    `json:"role" db:"role"`
	Threshold int       `json:"threshold" db:"threshold"`
	UpdatedBy string    `json:"updated_by" db:"updated_by"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the RoleThreshold model
func (RoleThreshold) TableName() string {
	return "role_thresholds"
}

// NormalizeRole trims and lower-cases a role name
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// ThresholdMap is a lookup of normalized role to threshold
type ThresholdMap map[string]int

// NewThresholdMap builds a lookup from stored overrides
func NewThresholdMap(thresholds []*RoleThreshold) ThresholdMap {
	m := make(ThresholdMap, len(thresholds))
	for _, t := range thresholds {
		m[NormalizeRole(t.Role)] = t.Threshold
	}
	return m
}
