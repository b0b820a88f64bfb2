package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStyle(t *testing.T) {
	cases := []struct {
		style string
		want  Format
		drama bool
	}{
		{"Solo Narration", FormatSolo, false},
		{"dual", FormatDual, false},
		{"Duet Audio Drama", FormatDuet, true},
		{"Multi-Cast", FormatMulti, false},
		{"  multi-cast audio drama ", FormatMulti, true},
	}
	for _, tc := range cases {
		f, drama, err := ParseStyle(tc.style)
		require.NoError(t, err, tc.style)
		assert.Equal(t, tc.want, f, tc.style)
		assert.Equal(t, tc.drama, drama, tc.style)
	}

	_, _, err := ParseStyle("")
	assert.Error(t, err)
	_, _, err = ParseStyle("Full Cast")
	assert.Error(t, err)
}

func TestSlotCeiling(t *testing.T) {
	assert.Equal(t, 1, FormatSolo.SlotCeiling(10))
	assert.Equal(t, 2, FormatDual.SlotCeiling(10))
	assert.Equal(t, 2, FormatDuet.SlotCeiling(10))
	assert.Equal(t, 10, FormatMulti.SlotCeiling(0))
	assert.Equal(t, 10, FormatMulti.SlotCeiling(50))
	assert.Equal(t, 6, FormatMulti.SlotCeiling(6))
	assert.Equal(t, 0, Format("Quartet").SlotCeiling(10))
}

func TestStepOrder(t *testing.T) {
	assert.Equal(t, 0, StepPreProduction.Index())
	assert.Equal(t, 4, StepFinalDelivery.Index())
	assert.Equal(t, -1, ProductionStep("Mixing").Index())

	step, ok := ParseStep(" final delivery ")
	require.True(t, ok)
	assert.Equal(t, StepFinalDelivery, step)
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range TerminalStatuses {
		assert.True(t, s.Terminal())
	}
	assert.False(t, StatusReview.Terminal())
	assert.True(t, Production{ProductionStatus: StatusCancelled}.Archived())
}
