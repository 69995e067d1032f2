package scan

import (
	"testing"

	"github.com/clubpulse/activity-monitor/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveThreshold(t *testing.T) {
	overrides := models.ThresholdMap{"executive": 8, "member": 0}

	assert.Equal(t, 8, EffectiveThreshold("  Executive ", overrides, 5))
	assert.Equal(t, 0, EffectiveThreshold("MEMBER", overrides, 5))
	assert.Equal(t, 5, EffectiveThreshold("officer", overrides, 5))
	assert.Equal(t, 5, EffectiveThreshold("", overrides, 5))
	assert.Equal(t, 5, EffectiveThreshold("officer", nil, 5))
}

func TestPartition_FlaggedIffBelowThreshold(t *testing.T) {
	overrides := models.ThresholdMap{"executive": 5, "officer": 3}
	members := []models.Member{
		{Email: "a@x.com", ActivityCount: 3, Role: "Executive"},
		{Email: "b@x.com", ActivityCount: 5, Role: "executive"},
		{Email: "c@x.com", ActivityCount: 2, Role: "officer"},
		{Email: "d@x.com", ActivityCount: 3, Role: "officer"},
		{Email: "e@x.com", ActivityCount: 4, Role: ""},
		{Email: "f@x.com", ActivityCount: 5, Role: "member"},
	}

	below, atOrAbove := Partition(members, overrides, 5)

	require.Len(t, below, 3)
	assert.Equal(t, "a@x.com", below[0].Email)
	assert.Equal(t, 5, below[0].Threshold)
	assert.Equal(t, "c@x.com", below[1].Email)
	assert.Equal(t, 3, below[1].Threshold)
	assert.Equal(t, "e@x.com", below[2].Email)

	assert.Len(t, atOrAbove, 3)
	for _, f := range below {
		assert.Less(t, f.ActivityCount, f.Threshold)
	}
	for _, m := range atOrAbove {
		assert.GreaterOrEqual(t, m.ActivityCount, EffectiveThreshold(m.Role, overrides, 5))
	}
}

func TestPartition_ZeroThresholdFlagsNobody(t *testing.T) {
	below, atOrAbove := Partition([]models.Member{{Email: "a@x.com", ActivityCount: 0}}, nil, 0)
	assert.Empty(t, below)
	assert.Len(t, atOrAbove, 1)
}
