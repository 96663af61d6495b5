package kafka

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/quake-trends/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	at := time.Date(2010, 2, 27, 6, 34, 11, 530_000_000, time.UTC)
	ev := domain.Event{
		ID:        "official20100227063411530_30",
		Time:      at,
		Latitude:  -36.122,
		Longitude: -72.898,
		Depth:     22.9,
		Magnitude: 8.8,
		MagType:   "mww",
		Place:     "offshore Bio-Bio, Chile",
		Type:      "earthquake",
		MainEvent: 12,
	}

	msg, err := serializeToMessage(ev)
	require.NoError(t, err)

	assert.Equal(t, []byte("official20100227063411530_30"), msg.Key)
	assert.JSONEq(t, `{
		"id": "official20100227063411530_30",
		"time": "2010-02-27T06:34:11.53Z",
		"latitude": -36.122,
		"longitude": -72.898,
		"depth": 22.9,
		"mag": 8.8,
		"mag_type": "mww",
		"place": "offshore Bio-Bio, Chile",
		"type": "earthquake",
		"main_event": 12
	}`, string(msg.Value))

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "main_event", msg.Headers[0].Key)
	assert.Equal(t, []byte("12"), msg.Headers[0].Value)
	assert.Equal(t, "event_time", msg.Headers[1].Key)
	assert.Equal(t, []byte("2010-02-27T06:34:11.53Z"), msg.Headers[1].Value)
}

func TestSerializeToMessage_MissingMagnitude(t *testing.T) {
	ev := domain.Event{
		ID:        "iscgem610326",
		Time:      time.Date(1906, 4, 18, 13, 12, 21, 0, time.UTC),
		Depth:     math.NaN(),
		Magnitude: math.NaN(),
	}

	msg, err := serializeToMessage(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.NotContains(t, decoded, "mag")
	assert.NotContains(t, decoded, "depth")
	assert.EqualValues(t, 0, decoded["main_event"])
}
