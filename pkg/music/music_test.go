package music

import (
	"testing"
	"time"
)

func TestParseTracks(t *testing.T) {
	out := []byte(`{"title":"Song A","webpage_url":"https://yt/a","duration":180}
not json
{"title":"Song B","url":"https://yt/b","duration":4200.5}

{"title":"Song C","webpage_url":"https://yt/c","duration":240}
`)
	tracks := parseTracks(out)
	if len(tracks) != 3 {
		t.Fatalf("got %d tracks, want 3", len(tracks))
	}
	if tracks[0].Title != "Song A" || tracks[0].URL != "https://yt/a" {
		t.Errorf("tracks[0] = %+v", tracks[0])
	}
	// url field used when webpage_url is absent.
	if tracks[1].URL != "https://yt/b" {
		t.Errorf("tracks[1].URL = %q", tracks[1].URL)
	}
	if tracks[0].Duration != 3*time.Minute {
		t.Errorf("tracks[0].Duration = %s", tracks[0].Duration)
	}
}

func TestPickTrackSkipsLong(t *testing.T) {
	candidates := []Track{
		{Title: "ten hour loop", Duration: 10 * time.Hour},
		{Title: "normal song", Duration: 3 * time.Minute},
	}
	got, err := pickTrack(candidates, DefaultMaxDuration)
	if err != nil {
		t.Fatalf("pickTrack: %v", err)
	}
	if got.Title != "normal song" {
		t.Errorf("picked %q", got.Title)
	}
}

func TestPickTrackAllTooLong(t *testing.T) {
	candidates := []Track{{Title: "concert", Duration: time.Hour}}
	if _, err := pickTrack(candidates, DefaultMaxDuration); err == nil {
		t.Fatal("want error when every result exceeds the cap")
	}
}

func TestParseTracksEmpty(t *testing.T) {
	if got := parseTracks(nil); got != nil {
		t.Errorf("parseTracks(nil) = %v", got)
	}
}
