package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taller/internal/core"
)

func TestParseQuery(t *testing.T) {
	caracas, err := time.LoadLocation("America/Caracas")
	require.NoError(t, err)
	clock := time.Date(2025, 3, 20, 2, 0, 0, 0, time.UTC) // 19 March in Caracas

	t.Run("defaults to current month", func(t *testing.T) {
		q, err := ParseQuery("", 0, "", clock, caracas)
		require.NoError(t, err)
		assert.Equal(t, "2025-03", q.Month())
		assert.Equal(t, 19, q.Now.Day())
		assert.Equal(t, core.DivisionGeneral, q.Division)
	})

	t.Run("current month keeps now as reference", func(t *testing.T) {
		q, err := ParseQuery("2025-03", 2, "corte", clock, caracas)
		require.NoError(t, err)
		assert.True(t, q.Ref.Equal(q.Now))
		assert.Equal(t, core.DivisionLaser, q.Division)
		assert.Equal(t, 2, q.Week)
	})

	t.Run("past month", func(t *testing.T) {
		q, err := ParseQuery("2024-12", 0, "printing", clock, nil)
		require.NoError(t, err)
		assert.Equal(t, "2024-12", q.Month())
		assert.Equal(t, 2025, q.Now.Year())
	})

	for _, tc := range []struct {
		name, month, division string
		week                  int
		want                  error
	}{
		{"bad month", "marzo", "", 0, core.ErrInvalidDate},
		{"bad week", "", "", 6, core.ErrInvalidWeek},
		{"bad division", "", "panaderia", 0, core.ErrUnknownDivision},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseQuery(tc.month, tc.week, tc.division, clock, time.UTC)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
