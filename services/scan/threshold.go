package scan

import "github.com/clubpulse/activity-monitor/models"

// NormalizeRole trims and lower-cases a role name
func NormalizeRole(role string) string {
	return models.NormalizeRole(role)
}

// EffectiveThreshold returns the override for role, or def when none exists
func EffectiveThreshold(role string, overrides models.ThresholdMap, def int) int {
	if t, ok := overrides[NormalizeRole(role)]; ok {
		return t
	}
	return def
}

// Partition splits members into those strictly below their effective threshold and the rest
func Partition(members []models.Member, overrides models.ThresholdMap, def int) ([]models.FlaggedMember, []models.Member) {
	below := make([]models.FlaggedMember, 0)
	atOrAbove := make([]models.Member, 0, len(members))

	for _, m := range members {
		threshold := EffectiveThreshold(m.Role, overrides, def)
		if m.ActivityCount < threshold {
			below = append(below, models.FlaggedMember{Member: m, Threshold: threshold})
			continue
		}
		atOrAbove = append(atOrAbove, m)
	}
	return below, atOrAbove
}
