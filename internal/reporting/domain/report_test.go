package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCancellationRateExact(t *testing.T) {
	r, err := NewCancellationRate(1, 4, 1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25.00").Equal(r.Percentage))
	assert.Equal(t, "25.00", r.Percentage.StringFixed(2))

	r, err = NewCancellationRate(1, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, "33.33", r.Percentage.String())

	r, err = NewCancellationRate(1, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, "66.67", r.Percentage.String())

	r, err = NewCancellationRate(1, 5, 0)
	require.NoError(t, err)
	assert.True(t, r.Percentage.IsZero())
}

func TestCancellationRateNoOrders(t *testing.T) {
	_, err := NewCancellationRate(1, 0, 0)
	assert.ErrorIs(t, err, ErrNoOrders)
}

func TestMostCancelled(t *testing.T) {
	best, err := MostCancelled([]DateCount{
		{Date: date(2020, 10, 1), CancelledQuantity: 0},
		{Date: date(2021, 10, 1), CancelledQuantity: 2},
		{Date: date(1989, 10, 1), CancelledQuantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, date(1989, 10, 1), best.Date)
	assert.Equal(t, int64(3), best.CancelledQuantity)
}

func TestMostCancelledTieTakesLaterDate(t *testing.T) {
	counts := []DateCount{
		{Date: date(2022, 5, 1), CancelledQuantity: 4},
		{Date: date(2023, 5, 1), CancelledQuantity: 4},
		{Date: date(2021, 5, 1), CancelledQuantity: 4},
	}
	best, err := MostCancelled(counts)
	require.NoError(t, err)
	assert.Equal(t, date(2023, 5, 1), best.Date)

	// order of input does not matter
	best, err = MostCancelled([]DateCount{counts[1], counts[2], counts[0]})
	require.NoError(t, err)
	assert.Equal(t, date(2023, 5, 1), best.Date)
}

func TestMostCancelledNone(t *testing.T) {
	_, err := MostCancelled(nil)
	assert.ErrorIs(t, err, ErrNoCancellations)
}
