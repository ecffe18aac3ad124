package genres

import (
	"reflect"
	"sort"
	"testing"
)

func play(id string, genres ...string) Play {
	return Play{TrackID: id, Genres: genres}
}

func byGenre(stats []Stat) map[string]Stat {
	m := make(map[string]Stat, len(stats))
	for _, s := range stats {
		m[s.Genre] = s
	}
	return m
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name  string
		plays []Play
		want  map[string]Stat
	}{
		{
			name:  "empty input",
			plays: nil,
			want:  map[string]Stat{},
		},
		{
			name: "plays without genres",
			plays: []Play{
				play("t1"),
				play("t2"),
			},
			want: map[string]Stat{},
		},
		{
			name: "single dominant genre",
			plays: []Play{
				play("t1", "pop"), play("t2", "pop"), play("t3", "pop"), play("t4", "pop"),
				play("t5", "pop"), play("t6", "pop"), play("t7", "pop"), play("t8", "pop"),
				play("t9", "rock"), play("t10", "rock"),
			},
			want: map[string]Stat{
				"pop":  {Genre: "pop", RawCount: 8, Score: 10.0},
				"rock": {Genre: "rock", RawCount: 2, Score: 2.5},
			},
		},
		{
			name: "mixed case collapses",
			plays: []Play{
				play("t1", "Pop", "POP", "pop"),
				play("t2", "pop"),
			},
			want: map[string]Stat{
				"pop": {Genre: "pop", RawCount: 2, Score: 10.0},
			},
		},
		{
			name: "duplicate genre counts once per track",
			plays: []Play{
				play("t1", "indie", "indie", "shoegaze"),
			},
			want: map[string]Stat{
				"indie":    {Genre: "indie", RawCount: 1, Score: 10.0},
				"shoegaze": {Genre: "shoegaze", RawCount: 1, Score: 10.0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := byGenre(Aggregate(tt.plays))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Aggregate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregateMaxScoresExactlyTen(t *testing.T) {
	plays := []Play{
		play("t1", "pop", "rock"),
		play("t2", "pop", "jazz"),
		play("t3", "pop"),
		play("t4", "jazz"),
	}

	stats := Aggregate(plays)
	if len(stats) == 0 {
		t.Fatal("Aggregate() returned no stats")
	}

	maxScore := 0.0
	for _, s := range stats {
		if s.Score < 0 || s.Score > 10 {
			t.Errorf("score for %q = %g, want within [0, 10]", s.Genre, s.Score)
		}
		if s.Score > maxScore {
			maxScore = s.Score
		}
	}
	if maxScore != 10.0 {
		t.Errorf("max score = %g, want exactly 10.0", maxScore)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	plays := []Play{
		play("t1", "pop", "dance pop"),
		play("t2", "rock"),
		play("t3", "pop"),
	}

	first := Aggregate(plays)
	second := Aggregate(plays)

	sortStats := func(s []Stat) {
		sort.Slice(s, func(i, j int) bool { return s[i].Genre < s[j].Genre })
	}
	sortStats(first)
	sortStats(second)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated aggregation differs: %v vs %v", first, second)
	}
}

func TestTopN(t *testing.T) {
	stats := []Stat{
		{Genre: "rock", RawCount: 2, Score: 5.0},
		{Genre: "pop", RawCount: 4, Score: 10.0},
		{Genre: "jazz", RawCount: 2, Score: 5.0},
		{Genre: "ambient", RawCount: 1, Score: 2.5},
	}

	got := TopN(stats, 3)

	want := []Stat{
		{Genre: "pop", RawCount: 4, Score: 10.0},
		// Equal scores break ties by genre name so ranking is stable.
		{Genre: "jazz", RawCount: 2, Score: 5.0},
		{Genre: "rock", RawCount: 2, Score: 5.0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopN() = %v, want %v", got, want)
	}

	// Input must not be reordered.
	if stats[0].Genre != "rock" {
		t.Errorf("TopN() mutated its input: %v", stats)
	}
}

func TestTopNShorterThanN(t *testing.T) {
	stats := []Stat{{Genre: "pop", RawCount: 1, Score: 10.0}}
	if got := TopN(stats, 5); len(got) != 1 {
		t.Errorf("TopN() = %v, want single entry", got)
	}
	if got := TopN(nil, 5); len(got) != 0 {
		t.Errorf("TopN(nil) = %v, want empty", got)
	}
}
