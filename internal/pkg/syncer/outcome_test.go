package syncer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	tests := []struct {
		name        string
		items       []ItemResult
		requireRows bool
		want        Status
	}{
		{
			name:  "all items saved",
			items: []ItemResult{itemOK("a", 10), itemOK("b", 5)},
			want:  StatusSucceeded,
		},
		{
			name:  "mixed results",
			items: []ItemResult{itemOK("a", 10), itemFailed("b", boom)},
			want:  StatusPartiallySucceeded,
		},
		{
			name:  "every item failed",
			items: []ItemResult{itemFailed("a", boom), itemFailed("b", boom)},
			want:  StatusFailed,
		},
		{
			name: "no items at all",
			want: StatusSucceeded,
		},
		{
			name:        "rows required but none saved",
			items:       []ItemResult{itemOK("a", 0), itemOK("b", 0)},
			requireRows: true,
			want:        StatusFailed,
		},
		{
			name:        "rows required and one day delivered",
			items:       []ItemResult{itemOK("a", 24), itemOK("b", 0)},
			requireRows: true,
			want:        StatusSucceeded,
		},
		{
			name:  "zero rows fine when not required",
			items: []ItemResult{itemOK("a", 0)},
			want:  StatusSucceeded,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, deriveStatus(tc.items, tc.requireRows))
		})
	}
}

func TestSavedTotal(t *testing.T) {
	t.Parallel()
	items := []ItemResult{itemOK("a", 3), itemFailed("b", errors.New("boom")), itemOK("c", 7)}
	assert.Equal(t, 10, savedTotal(items))
}
