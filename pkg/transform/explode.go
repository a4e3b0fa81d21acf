// Package transform converts wide Strava stream payloads into the narrow
// row shape the warehouse stores.
package transform

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/athletedash/ingest/pkg/strava"
)

// StreamRow is one (activity, stream type, sequence index) telemetry sample.
// Exactly one value slot is populated, except latlng samples which fill both
// lat and lng.
type StreamRow struct {
	ActivityID    int64     `json:"activity_id"`
	StreamType    string    `json:"stream_type"`
	SequenceIndex int       `json:"sequence_index"`
	ValueFloat    *float64  `json:"value_float,omitempty"`
	ValueInt      *int64    `json:"value_int,omitempty"`
	ValueBool     *bool     `json:"value_bool,omitempty"`
	ValueLat      *float64  `json:"value_lat,omitempty"`
	ValueLng      *float64  `json:"value_lng,omitempty"`
	IngestedAt    time.Time `json:"ingested_at"`
}

// ExplodeStreams flattens an activity's stream payload into one row per
// sample. Streams with empty data contribute zero rows. The sequence index
// is the sample's zero-based position in its stream; stream types are not
// required to have equal lengths. Samples whose value cannot be represented
// in the row shape are dropped silently and leave an index gap, keeping the
// surviving rows aligned with the time stream.
func ExplodeStreams(activityID int64, streams map[string]strava.Stream, ingestedAt time.Time) []StreamRow {
	var rows []StreamRow

	for streamType, stream := range streams {
		if len(stream.Data) == 0 {
			continue
		}

		for i, raw := range stream.Data {
			row := StreamRow{
				ActivityID:    activityID,
				StreamType:    streamType,
				SequenceIndex: i,
				IngestedAt:    ingestedAt,
			}
			if !classify(streamType, raw, &row) {
				continue
			}
			rows = append(rows, row)
		}
	}

	return rows
}

// classify fills the value slot for one raw sample. The decision table:
//
//	bool                      -> value_bool
//	integral number           -> value_int
//	fractional number         -> value_float
//	[lat, lng] under "latlng" -> value_lat + value_lng
//	anything else             -> dropped (nested shapes have no column)
func classify(streamType string, raw json.RawMessage, row *StreamRow) bool {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return false
	}

	switch v := value.(type) {
	case bool:
		row.ValueBool = &v
		return true

	case json.Number:
		if i, ok := asInt(v); ok {
			row.ValueInt = &i
			return true
		}
		f, err := v.Float64()
		if err != nil {
			return false
		}
		row.ValueFloat = &f
		return true

	case []interface{}:
		if streamType != "latlng" || len(v) != 2 {
			return false
		}
		lat, latOK := numberValue(v[0])
		lng, lngOK := numberValue(v[1])
		if !latOK || !lngOK {
			return false
		}
		row.ValueLat = &lat
		row.ValueLng = &lng
		return true

	default:
		return false
	}
}

// asInt reports whether the number was encoded without a fractional or
// exponent part. 180 is an int sample, 180.0 is a float sample.
func asInt(n json.Number) (int64, bool) {
	if strings.ContainsAny(n.String(), ".eE") {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}

func numberValue(v interface{}) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}
