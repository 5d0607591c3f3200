package pipeline

import (
	"sync"

	"github.com/couchcryptid/weather-traffic-insights/internal/domain"
)

// reportCache is a thread-safe LRU of the latest report per city, backing
// the HTTP read path without holding unbounded state for large fleets.
type reportCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	city   string
	report domain.Report
	prev   *entry
	next   *entry
}

func newReportCache(maxEntries int) *reportCache {
	return &reportCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *reportCache) get(city string) (domain.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[city]
	if !ok {
		return domain.Report{}, false
	}
	c.moveToFront(e)
	return e.report, true
}

func (c *reportCache) put(report domain.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[report.CityID]; ok {
		e.report = report
		c.moveToFront(e)
		return
	}

	e := &entry{city: report.CityID, report: report}
	c.entries[report.CityID] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *reportCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *reportCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *reportCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *reportCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.city)
	c.remove(c.tail)
}
