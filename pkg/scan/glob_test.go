package scan

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchGlob(t *testing.T) {
	keys := []string{"sync-record-a1", "sync-record-b2", "records-list"}

	for _, testCase := range []struct {
		name     string
		glob     string
		expected []string
	}{
		{
			name:     "match all",
			glob:     "*",
			expected: []string{"sync-record-a1", "sync-record-b2", "records-list"},
		},
		{
			name:     "match record keys",
			glob:     "sync-record-*",
			expected: []string{"sync-record-a1", "sync-record-b2"},
		},
		{
			name:     "match with ?",
			glob:     "sync-record-a?",
			expected: []string{"sync-record-a1"},
		},
		{
			name:     "match with * at the beginning",
			glob:     "*-list",
			expected: []string{"records-list"},
		},
		{
			name:     "no match",
			glob:     "nomatch",
			expected: nil,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			seq := MatchGlob(testCase.glob, slices.Values(keys))
			got := slices.Collect(seq)
			assert.Equal(t, testCase.expected, got)
		})
	}
}
