package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"high", PriorityHigh, false},
		{"H", PriorityHigh, false},
		{" Medium ", PriorityMedium, false},
		{"", PriorityMedium, false},
		{"low", PriorityLow, false},
		{"urgent", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePriority(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPriority_DefaultsAndValidity(t *testing.T) {
	assert.Equal(t, PriorityMedium, Priority(0).OrDefault())
	assert.Equal(t, PriorityHigh, PriorityHigh.OrDefault())
	assert.False(t, Priority(0).Valid())
	assert.False(t, Priority(4).Valid())
	assert.True(t, PriorityLow.Valid())
	assert.Equal(t, "HIGH", PriorityHigh.String())
	assert.Equal(t, "Priority(9)", Priority(9).String())
}

func TestSweepOrder_HighFirst(t *testing.T) {
	require.Len(t, SweepOrder, 3)
	for i := 1; i < len(SweepOrder); i++ {
		assert.Greater(t, SweepOrder[i-1], SweepOrder[i])
	}
}

func TestSyncState_String(t *testing.T) {
	assert.Equal(t, "UNSYNCED", SyncStateUnsynced.String())
	assert.Equal(t, "SYNCED", SyncStateSynced.String())
}
