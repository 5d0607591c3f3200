package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-traffic-insights/internal/domain"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("key-1"),
		Value:     []byte(`{"city":"austin"}`),
		Topic:     "raw-observations",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("noaa")},
		},
	}

	r := &Reader{}
	raw := r.mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("key-1"), raw.Key)
	assert.JSONEq(t, `{"city":"austin"}`, string(raw.Value))
	assert.Equal(t, "raw-observations", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "noaa", raw.Source())
	assert.NotNil(t, raw.Commit)
}

func TestSerializeToMessage(t *testing.T) {
	generated := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	report := domain.Report{
		CityID: "austin",
		Window: domain.TimeRange{
			Start: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC),
		},
		EventCounts: map[domain.EventType]int{domain.EventHeatwave: 1},
		GeneratedAt: generated,
	}

	msg, err := serializeToMessage(report)
	require.NoError(t, err)

	assert.Equal(t, []byte("austin"), msg.Key)
	assert.Contains(t, string(msg.Value), `"city_id":"austin"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "city_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("austin"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(generated.Format(time.RFC3339)), msg.Headers[1].Value)
}
