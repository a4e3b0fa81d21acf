package warehouse

import "cloud.google.com/go/bigquery"

// StreamSchema is the explicit schema for the stream-samples table. The
// mixed-type optional value columns make autodetection unreliable at volume,
// so this load never infers.
var StreamSchema = bigquery.Schema{
	{Name: "activity_id", Type: bigquery.IntegerFieldType},
	{Name: "stream_type", Type: bigquery.StringFieldType},
	{Name: "sequence_index", Type: bigquery.IntegerFieldType},
	{Name: "value_float", Type: bigquery.FloatFieldType},
	{Name: "value_int", Type: bigquery.IntegerFieldType},
	{Name: "value_bool", Type: bigquery.BooleanFieldType},
	{Name: "value_lat", Type: bigquery.FloatFieldType},
	{Name: "value_lng", Type: bigquery.FloatFieldType},
	{Name: "ingested_at", Type: bigquery.TimestampFieldType},
}
