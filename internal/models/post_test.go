package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPostStatus(t *testing.T) {
	for _, s := range []PostStatus{PostStatusPending, PostStatusProcessing, PostStatusCompleted, PostStatusFailed} {
		assert.True(t, ValidPostStatus(s), "status %q should be valid", s)
	}
	assert.False(t, ValidPostStatus("deleted"))
	assert.False(t, ValidPostStatus(""))
}

func TestStatusBadgesCoverAllStatuses(t *testing.T) {
	statuses := []PostStatus{PostStatusPending, PostStatusProcessing, PostStatusCompleted, PostStatusFailed}

	assert.Len(t, StatusBadges, len(statuses))
	for _, s := range statuses {
		badge, ok := StatusBadges[s]
		assert.True(t, ok, "missing badge for %q", s)
		assert.NotEmpty(t, badge.Icon)
		assert.NotEmpty(t, badge.Label)
	}
}
