package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-traffic-insights/internal/domain"
)

func reportFor(city string, count int) domain.Report {
	return domain.Report{CityID: city, ObservationCount: count}
}

func TestReportCache_PutAndGet(t *testing.T) {
	c := newReportCache(3)

	c.put(reportFor("austin", 5))

	got, ok := c.get("austin")
	require.True(t, ok)
	assert.Equal(t, 5, got.ObservationCount)

	_, ok = c.get("dallas")
	assert.False(t, ok)
}

func TestReportCache_UpdateReplacesInPlace(t *testing.T) {
	c := newReportCache(3)

	c.put(reportFor("austin", 5))
	c.put(reportFor("austin", 9))

	got, ok := c.get("austin")
	require.True(t, ok)
	assert.Equal(t, 9, got.ObservationCount)
	assert.Len(t, c.entries, 1)
}

func TestReportCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newReportCache(2)

	c.put(reportFor("austin", 1))
	c.put(reportFor("dallas", 2))

	// Touch austin so dallas becomes the eviction candidate.
	_, ok := c.get("austin")
	require.True(t, ok)

	c.put(reportFor("houston", 3))

	_, ok = c.get("dallas")
	assert.False(t, ok)
	_, ok = c.get("austin")
	assert.True(t, ok)
	_, ok = c.get("houston")
	assert.True(t, ok)
}

func TestReportCache_UpdateCountsAsUse(t *testing.T) {
	c := newReportCache(2)

	c.put(reportFor("austin", 1))
	c.put(reportFor("dallas", 2))
	c.put(reportFor("austin", 3)) // refresh, austin is now most recent
	c.put(reportFor("houston", 4))

	_, ok := c.get("austin")
	assert.True(t, ok)
	_, ok = c.get("dallas")
	assert.False(t, ok)
}
