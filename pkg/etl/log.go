package etl

import (
	"context"
	"time"

	"github.com/wdm0006/songlake/pkg/frame"
	"github.com/wdm0006/songlake/pkg/lake"
	"github.com/wdm0006/songlake/pkg/transform/derive"
	rel "github.com/wdm0006/songlake/pkg/transform/relational"
	"github.com/wdm0006/songlake/pkg/transform/temporal"
)

const nextSong = "NextSong"

// eventsPipeline keeps song plays and derives their timestamp.
func eventsPipeline(loc *time.Location) *frame.Pipeline {
	return frame.NewPipeline(
		rel.NewInSet("page", nextSong),
		&temporal.EpochMillis{Column: "ts", Output: "timestamp", Location: loc},
	)
}

// usersPipeline keeps each user's most recent event, so level is current.
func usersPipeline() *frame.Pipeline {
	return frame.NewPipeline(
		&rel.DropDuplicates{Keys: []string{"userId"}, OrderBy: "ts", Descending: true},
		&rel.Select{Columns: UsersSchema.Names()},
	)
}

func timePipeline(loc *time.Location) *frame.Pipeline {
	return frame.NewPipeline(
		&rel.Select{Columns: []string{"timestamp"}},
		&temporal.DateParts{Column: "timestamp", Location: loc},
		&rel.Select{Columns: TimeSchema.Names()},
		&rel.Distinct{},
	)
}

func songplaysPipeline(songs, times *frame.Frame) *frame.Pipeline {
	return frame.NewPipeline(
		&rel.InnerJoin{Right: songs, LeftOn: []string{"song"}, RightOn: []string{"title"}, Columns: []string{"song_id", "artist_id"}},
		&rel.InnerJoin{Right: times, LeftOn: []string{"timestamp"}, RightOn: []string{"timestamp"}, Columns: []string{"year", "month"}},
		&derive.HashID{Output: "songplay_id", Columns: []string{"userId", "sessionId", "ts", "song_id"}},
		&rel.Rename{Mapping: map[string]string{
			"timestamp": "start_time",
			"userId":    "user_id",
			"sessionId": "session_id",
			"userAgent": "user_agent",
		}},
		&rel.Select{Columns: SongplaysSchema.Names()},
	)
}

// ProcessLogData builds the users, time and songplays tables from the event
// logs. Songplays join against the songs table already in the output store.
func (j *Job) ProcessLogData(ctx context.Context) error {
	raw, err := j.readInput(ctx, "log", j.logGlob, LogRecordSchema)
	if err != nil {
		return err
	}
	events, err := eventsPipeline(j.loc).Run(ctx, raw)
	if err != nil {
		return err
	}

	users, err := usersPipeline().Run(ctx, events)
	if err != nil {
		return err
	}
	if err := j.writeTable(ctx, usersTable, users); err != nil {
		return err
	}

	times, err := timePipeline(j.loc).Run(ctx, events)
	if err != nil {
		return err
	}
	if err := j.writeTable(ctx, timeTable, times); err != nil {
		return err
	}

	songs, err := lake.ReadTable(ctx, j.out, TableSongs, SongsSchema, j.format)
	if err != nil {
		return err
	}
	songplays, err := songplaysPipeline(songs, times).Run(ctx, events)
	if err != nil {
		return err
	}
	return j.writeTable(ctx, songplaysTable, songplays)
}
