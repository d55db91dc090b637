package indicators

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendScanner/internal/domain/models"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// risingSeries closes at 100+0.5*i with a symmetric 1.0 range around the close.
func risingSeries(n int) models.PriceSeries {
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 + 0.5*float64(i)
		bars[i] = models.Bar{Date: day0.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return models.PriceSeries{Ticker: "TEST", Bars: bars}
}

func randomWalk(n int, seed int64) models.PriceSeries {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]models.Bar, n)
	c := 50.0
	for i := range bars {
		c *= 1 + (rng.Float64()-0.5)*0.04
		h := c * (1 + rng.Float64()*0.01)
		l := c * (1 - rng.Float64()*0.01)
		bars[i] = models.Bar{Date: day0.AddDate(0, 0, i), Open: c, High: h, Low: l, Close: c}
	}
	return models.PriceSeries{Ticker: "RW", Bars: bars}
}

func TestSnapshot_RisingSeries(t *testing.T) {
	e := NewEngine(models.DefaultParams())
	s := risingSeries(260)

	snap, err := e.Snapshot(s)
	require.NoError(t, err)

	assert.Equal(t, "TEST", snap.Ticker)
	assert.Equal(t, day0.AddDate(0, 0, 259), snap.AsOf)
	assert.InDelta(t, 229.5, snap.Price, 1e-9)
	assert.InDelta(t, 224.75, snap.MAShort, 1e-9)
	assert.InDelta(t, 217.25, snap.MAMedium, 1e-9)
	assert.InDelta(t, 179.75, snap.MALong, 1e-9)
	assert.InDelta(t, 100, snap.RSI, 1e-9)
	assert.InDelta(t, 2, snap.ATR, 1e-9)
	// channel read one bar back: bar 258 high, bar 239 low
	assert.InDelta(t, 230, snap.ChannelHighPrev, 1e-9)
	assert.InDelta(t, 218.5, snap.ChannelLowPrev, 1e-9)
}

func TestSnapshot_MinimumHistory(t *testing.T) {
	e := NewEngine(models.DefaultParams())
	minBars := models.DefaultParams().MinBars()
	require.Equal(t, 205, minBars)

	_, err := e.Snapshot(risingSeries(minBars - 1))
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)

	_, err = e.Snapshot(risingSeries(minBars))
	assert.NoError(t, err)

	for _, n := range []int{0, 1, 20, 199, 200} {
		_, err := e.Snapshot(risingSeries(n))
		assert.Error(t, err, "n=%d", n)
	}
}

func TestSnapshot_Malformed(t *testing.T) {
	e := NewEngine(models.DefaultParams())

	dup := risingSeries(260)
	dup.Bars[100].Date = dup.Bars[99].Date
	_, err := e.Snapshot(dup)
	assert.ErrorIs(t, err, models.ErrMalformedSeries)

	nan := risingSeries(260)
	nan.Bars[10].Close = math.NaN()
	_, err = e.Snapshot(nan)
	assert.ErrorIs(t, err, models.ErrMalformedSeries)

	inf := risingSeries(260)
	inf.Bars[259].High = math.Inf(1)
	_, err = e.Snapshot(inf)
	assert.ErrorIs(t, err, models.ErrMalformedSeries)
}

func TestSnapshot_DoesNotMutateAndIsIdempotent(t *testing.T) {
	e := NewEngine(models.DefaultParams())
	s := randomWalk(300, 7)
	before := append([]models.Bar(nil), s.Bars...)

	a, err := e.Snapshot(s)
	require.NoError(t, err)
	b, err := e.Snapshot(s)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, before, s.Bars)
}

func TestSnapshot_RandomWalkBounds(t *testing.T) {
	e := NewEngine(models.DefaultParams())
	for seed := int64(1); seed <= 20; seed++ {
		snap, err := e.Snapshot(randomWalk(260, seed))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, snap.RSI, 0.0)
		assert.LessOrEqual(t, snap.RSI, 100.0)
		assert.Greater(t, snap.ATR, 0.0)
		assert.GreaterOrEqual(t, snap.ChannelHighPrev, snap.ChannelLowPrev)
		assert.False(t, snap.Degenerate())
	}
}

func TestOverlay(t *testing.T) {
	e := NewEngine(models.DefaultParams())
	s := risingSeries(60)

	ov, err := e.Overlay(s)
	require.NoError(t, err)
	require.Len(t, ov.SMA["ma20"], 60)
	require.Len(t, ov.SMA["ma50"], 60)

	assert.Nil(t, ov.SMA["ma20"][18])
	require.NotNil(t, ov.SMA["ma20"][19])
	assert.InDelta(t, 104.75, *ov.SMA["ma20"][19], 1e-9)
	assert.Nil(t, ov.SMA["ma50"][48])
	require.NotNil(t, ov.SMA["ma50"][59])
	assert.InDelta(t, 117.25, *ov.SMA["ma50"][59], 1e-9)

	ov, err = e.Overlay(s, 100)
	require.NoError(t, err)
	for _, v := range ov.SMA["ma100"] {
		assert.Nil(t, v)
	}

	_, err = e.Overlay(s, 1)
	assert.ErrorIs(t, err, models.ErrInvalidParams)
}
