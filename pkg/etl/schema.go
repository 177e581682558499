package etl

import "github.com/wdm0006/songlake/pkg/frame"

func col(name string, k frame.Kind) frame.ColumnSchema {
	return frame.ColumnSchema{Name: name, Type: k, Nullable: true}
}

// SongRecordSchema is the shape of one song metadata object.
var SongRecordSchema = frame.Schema{Columns: []frame.ColumnSchema{
	col("song_id", frame.KindString),
	col("title", frame.KindString),
	col("artist_id", frame.KindString),
	col("artist_name", frame.KindString),
	col("artist_location", frame.KindString),
	col("artist_latitude", frame.KindFloat),
	col("artist_longitude", frame.KindFloat),
	col("year", frame.KindInt),
	col("duration", frame.KindFloat),
}}

// LogRecordSchema is the shape of one listening event.
var LogRecordSchema = frame.Schema{Columns: []frame.ColumnSchema{
	col("userId", frame.KindString),
	col("firstName", frame.KindString),
	col("lastName", frame.KindString),
	col("gender", frame.KindString),
	col("level", frame.KindString),
	col("page", frame.KindString),
	col("ts", frame.KindInt),
	col("song", frame.KindString),
	col("sessionId", frame.KindInt),
	col("location", frame.KindString),
	col("userAgent", frame.KindString),
}}

var SongsSchema = frame.Schema{Columns: []frame.ColumnSchema{
	col("song_id", frame.KindString),
	col("title", frame.KindString),
	col("artist_id", frame.KindString),
	col("year", frame.KindInt),
	col("duration", frame.KindFloat),
}}

var ArtistsSchema = frame.Schema{Columns: []frame.ColumnSchema{
	col("artist_id", frame.KindString),
	col("name", frame.KindString),
	col("location", frame.KindString),
	col("latitude", frame.KindFloat),
	col("longitude", frame.KindFloat),
}}

var UsersSchema = frame.Schema{Columns: []frame.ColumnSchema{
	col("userId", frame.KindString),
	col("firstName", frame.KindString),
	col("lastName", frame.KindString),
	col("gender", frame.KindString),
	col("level", frame.KindString),
}}

var TimeSchema = frame.Schema{Columns: []frame.ColumnSchema{
	col("timestamp", frame.KindTime),
	col("hour", frame.KindInt),
	col("day", frame.KindInt),
	col("week", frame.KindInt),
	col("month", frame.KindInt),
	col("year", frame.KindInt),
	col("weekday", frame.KindInt),
}}

var SongplaysSchema = frame.Schema{Columns: []frame.ColumnSchema{
	col("songplay_id", frame.KindString),
	col("start_time", frame.KindTime),
	col("user_id", frame.KindString),
	col("level", frame.KindString),
	col("song_id", frame.KindString),
	col("artist_id", frame.KindString),
	col("session_id", frame.KindInt),
	col("location", frame.KindString),
	col("user_agent", frame.KindString),
	col("year", frame.KindInt),
	col("month", frame.KindInt),
}}
