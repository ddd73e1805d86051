package kafka

import (
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("co2"),
		Value:     []byte("year,sector,co2_kt\n2020,Industry,1\n"),
		Topic:     "raw-overshoot-datasets",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "format", Value: []byte("csv")},
			{Key: "dataset", Value: []byte("co2")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("co2"), raw.Key)
	assert.Equal(t, msg.Value, raw.Value)
	assert.Equal(t, "raw-overshoot-datasets", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "csv", raw.Headers["format"])
	assert.Equal(t, "co2", raw.Headers["dataset"])
	assert.Nil(t, raw.Commit)
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	payload := domain.ChartPayload{
		Dataset: "co2",
		Start:   2020,
		End:     2021,
		Series: []domain.NamedSeries{{
			Name:   "Industry",
			Points: domain.AlignedSeries{{Year: 2020, Value: 1}, {Year: 2021, Value: math.NaN()}},
		}},
		ProcessedAt: now,
	}

	msg, err := serializeToMessage(payload)
	require.NoError(t, err)

	assert.Equal(t, []byte("co2"), msg.Key)
	assert.Contains(t, string(msg.Value), `"dataset":"co2"`)
	assert.Contains(t, string(msg.Value), `{"year":2021,"value":null}`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "dataset", msg.Headers[0].Key)
	assert.Equal(t, []byte("co2"), msg.Headers[0].Value)
	assert.Equal(t, "series_count", msg.Headers[1].Key)
	assert.Equal(t, []byte("1"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)
}
