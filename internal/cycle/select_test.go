package cycle

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/hoangvle/recall-cycle/internal/config"
	"github.com/hoangvle/recall-cycle/internal/notestore"
	"github.com/hoangvle/recall-cycle/internal/store"
)

const yesterdayTag = "cycle::2026-03-13"

func makeNote(id int64, domain string, tags ...string) notestore.Note {
	return notestore.Note{
		ID:   id,
		Tags: tags,
		Fields: map[string]notestore.Field{
			"DomainPath": {Value: domain},
		},
		Cards: []int64{id * 10},
	}
}

func makeCard(noteID, due int64, lapses, interval, reps int) notestore.Card {
	return notestore.Card{
		ID:       noteID * 10,
		Note:     noteID,
		Due:      due,
		Lapses:   lapses,
		Interval: interval,
		Reps:     reps,
	}
}

// flatInputs builds n notes in one domain with increasing due dates.
func flatInputs(n int, params config.Params) Inputs {
	in := Inputs{
		Params:       params,
		Cards:        map[int64]notestore.Card{},
		YesterdayTag: yesterdayTag,
	}
	for i := 1; i <= n; i++ {
		id := int64(i)
		in.Notes = append(in.Notes, makeNote(id, fmt.Sprintf("go/pkg%d/x", i%5)))
		in.Cards[id] = makeCard(id, int64(i), 0, i, i)
	}
	return in
}

func defaultParams() config.Params {
	return config.Params{
		Total:          30,
		MaintainTotal:  20,
		NewTotal:       10,
		RewardCap:      3,
		DomainCapSteps: []int{6, 7, 8, 9999},
	}
}

func TestSelectTodayDeterministic(t *testing.T) {
	in := flatInputs(40, defaultParams())
	first := SelectToday(in)
	second := SelectToday(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("selection not deterministic:\n%v\n%v", first, second)
	}
}

func TestSelectTodayCardinality(t *testing.T) {
	tests := []struct {
		name   string
		active int
		want   int
	}{
		{"more than total", 40, 30},
		{"exactly total", 30, 30},
		{"fewer than total", 10, 10},
		{"empty base", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectToday(flatInputs(tt.active, defaultParams()))
			if len(got) != tt.want {
				t.Fatalf("got %d notes, want %d", len(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i-1] >= got[i] {
					t.Fatalf("result not sorted ascending at %d: %v", i, got)
				}
			}
		})
	}
}

func TestSelectTodayRewardPriority(t *testing.T) {
	in := flatInputs(40, defaultParams())
	// Tag five notes with yesterday's cycle; only the three lowest ids may
	// enter through the reward pool.
	for _, id := range []int64{35, 36, 37, 38, 39} {
		in.Notes[id-1].Tags = append(in.Notes[id-1].Tags, yesterdayTag)
	}

	got := SelectToday(in)
	selected := toSet(got)
	for _, id := range []int64{35, 36, 37} {
		if !selected[id] {
			t.Errorf("reward note %d missing from today set %v", id, got)
		}
	}
}

func TestSelectTodayExcludesRetired(t *testing.T) {
	in := flatInputs(10, defaultParams())
	in.Notes[0].Tags = append(in.Notes[0].Tags, "id::item-1")
	in.Items = []store.Item{{ID: "item-1", Retired: true}}
	in.Notes[1].Tags = append(in.Notes[1].Tags, notestore.TagRetired)

	got := SelectToday(in)
	selected := toSet(got)
	if selected[1] || selected[2] {
		t.Fatalf("retired notes selected: %v", got)
	}
	if len(got) != 8 {
		t.Fatalf("got %d notes, want 8", len(got))
	}
}

func TestSelectTodayNoDuplicates(t *testing.T) {
	in := flatInputs(40, defaultParams())
	// Yesterday-tagged notes are also the most due; they must not appear in
	// both reward and maintain.
	in.Notes[0].Tags = append(in.Notes[0].Tags, yesterdayTag)
	in.Notes[1].Tags = append(in.Notes[1].Tags, yesterdayTag)

	got := SelectToday(in)
	seen := map[int64]bool{}
	for _, id := range got {
		if seen[id] {
			t.Fatalf("duplicate id %d in %v", id, got)
		}
		seen[id] = true
	}
	if len(got) != 30 {
		t.Fatalf("got %d notes, want 30", len(got))
	}
}

func TestDuePoolOrdering(t *testing.T) {
	notes := []notestore.Note{makeNote(1, "a"), makeNote(2, "a"), makeNote(3, "a"), makeNote(4, "a")}
	cards := map[int64]notestore.Card{
		1: makeCard(1, 5, 0, 1, 1),
		2: makeCard(2, 3, 2, 1, 1),
		3: makeCard(3, 3, 7, 1, 1), // same due as 2, more lapses, wins
		4: makeCard(4, 1, 0, 1, 1),
	}
	got := duePool(notes, cards, map[int64]bool{})
	want := []int64{4, 3, 2, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("duePool = %v, want %v", got, want)
	}
}

func TestFailedPoolOrdering(t *testing.T) {
	notes := []notestore.Note{makeNote(1, "a"), makeNote(2, "a"), makeNote(3, "a"), makeNote(4, "a")}
	cards := map[int64]notestore.Card{
		1: makeCard(1, 9, 0, 1, 1), // never lapsed, excluded
		2: makeCard(2, 9, 3, 1, 1),
		3: makeCard(3, 2, 3, 1, 1), // ties on lapses, earlier due wins
		4: makeCard(4, 1, 5, 1, 1),
	}
	got := failedPool(notes, cards, map[int64]bool{})
	want := []int64{4, 3, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("failedPool = %v, want %v", got, want)
	}
}

func TestLowStabilityPoolOrdering(t *testing.T) {
	notes := []notestore.Note{makeNote(1, "a"), makeNote(2, "a"), makeNote(3, "a")}
	cards := map[int64]notestore.Card{
		1: makeCard(1, 1, 0, 10, 2),
		2: makeCard(2, 1, 0, 2, 9),
		3: makeCard(3, 1, 0, 2, 1), // same interval as 2, fewer reps, wins
	}
	got := lowStabilityPool(notes, cards, map[int64]bool{})
	want := []int64{3, 2, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lowStabilityPool = %v, want %v", got, want)
	}
}

func TestDomainCapStepRelaxation(t *testing.T) {
	// Eight notes in one domain, two in another. With cap step 2 only two
	// of the crowded domain fit; the relaxed step admits the rest.
	var notes []notestore.Note
	var candidates []int64
	for i := int64(1); i <= 8; i++ {
		notes = append(notes, makeNote(i, "go/http/server"))
		candidates = append(candidates, i)
	}
	for i := int64(9); i <= 10; i++ {
		notes = append(notes, makeNote(i, "go/sql/driver"))
		candidates = append(candidates, i)
	}

	got := applyDomainCap(candidates, notes, []int{2, 9999}, 6)
	if len(got) != 6 {
		t.Fatalf("got %d, want 6: %v", len(got), got)
	}
	// First pass takes 1, 2 (cap), 9, 10; relaxation fills 3, 4.
	want := []int64{1, 2, 9, 10, 3, 4}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("applyDomainCap = %v, want %v", got, want)
	}
}

func TestDomainCapHonorsTarget(t *testing.T) {
	var notes []notestore.Note
	var candidates []int64
	for i := int64(1); i <= 5; i++ {
		notes = append(notes, makeNote(i, "a"))
		candidates = append(candidates, i)
	}
	got := applyDomainCap(candidates, notes, []int{9999}, 3)
	if len(got) != 3 {
		t.Fatalf("got %d, want 3", len(got))
	}
}
