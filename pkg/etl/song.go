package etl

import (
	"context"

	"github.com/wdm0006/songlake/pkg/frame"
	rel "github.com/wdm0006/songlake/pkg/transform/relational"
)

func songsPipeline() *frame.Pipeline {
	return frame.NewPipeline(
		&rel.Select{Columns: SongsSchema.Names()},
		&rel.DropDuplicates{Keys: []string{"song_id"}},
	)
}

func artistsPipeline() *frame.Pipeline {
	return frame.NewPipeline(
		&rel.Select{Columns: []string{"artist_id", "artist_name", "artist_location", "artist_latitude", "artist_longitude"}},
		&rel.Rename{Mapping: map[string]string{
			"artist_name":      "name",
			"artist_location":  "location",
			"artist_latitude":  "latitude",
			"artist_longitude": "longitude",
		}},
		&rel.DropDuplicates{Keys: []string{"artist_id"}},
	)
}

// ProcessSongData builds the songs and artists tables from the song objects.
func (j *Job) ProcessSongData(ctx context.Context) error {
	raw, err := j.readInput(ctx, "song", j.songGlob, SongRecordSchema)
	if err != nil {
		return err
	}
	songs, err := songsPipeline().Run(ctx, raw)
	if err != nil {
		return err
	}
	if err := j.writeTable(ctx, songsTable, songs); err != nil {
		return err
	}
	artists, err := artistsPipeline().Run(ctx, raw)
	if err != nil {
		return err
	}
	return j.writeTable(ctx, artistsTable, artists)
}
