/*
Package cycle computes the Today set for one run.

Selection is fully deterministic: notes flow through ordered priority
pools (reward, due, failed, low-stability, fallback), domain caps are
applied with step relaxation, and every tie breaks on ascending note id.
Running the selection twice over the same inputs yields the same set.
*/
package cycle

import (
	"sort"

	"github.com/hoangvle/recall-cycle/internal/notestore"
)

// rewardPool picks notes that carried yesterday's cycle tag, ascending by
// note id, capped at rewardCap.
func rewardPool(notes []notestore.Note, yesterdayTag string, rewardCap int) []int64 {
	var ids []int64
	for _, n := range notes {
		if n.HasTag(yesterdayTag) {
			ids = append(ids, n.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > rewardCap {
		ids = ids[:rewardCap]
	}
	return ids
}

// duePool orders every remaining carded note by due asc, lapses desc,
// note id asc.
func duePool(notes []notestore.Note, cards map[int64]notestore.Card, exclude map[int64]bool) []int64 {
	type entry struct {
		due    int64
		lapses int
		id     int64
	}
	var pool []entry
	for _, n := range notes {
		if exclude[n.ID] {
			continue
		}
		card, ok := cards[n.ID]
		if !ok {
			continue
		}
		pool = append(pool, entry{due: card.Due, lapses: card.Lapses, id: n.ID})
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].due != pool[j].due {
			return pool[i].due < pool[j].due
		}
		if pool[i].lapses != pool[j].lapses {
			return pool[i].lapses > pool[j].lapses
		}
		return pool[i].id < pool[j].id
	})
	ids := make([]int64, 0, len(pool))
	for _, e := range pool {
		ids = append(ids, e.id)
	}
	return ids
}

// failedPool orders notes whose card has lapsed at least once by lapses
// desc, due asc, note id asc.
func failedPool(notes []notestore.Note, cards map[int64]notestore.Card, exclude map[int64]bool) []int64 {
	type entry struct {
		lapses int
		due    int64
		id     int64
	}
	var pool []entry
	for _, n := range notes {
		if exclude[n.ID] {
			continue
		}
		card, ok := cards[n.ID]
		if !ok || card.Lapses == 0 {
			continue
		}
		pool = append(pool, entry{lapses: card.Lapses, due: card.Due, id: n.ID})
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].lapses != pool[j].lapses {
			return pool[i].lapses > pool[j].lapses
		}
		if pool[i].due != pool[j].due {
			return pool[i].due < pool[j].due
		}
		return pool[i].id < pool[j].id
	})
	ids := make([]int64, 0, len(pool))
	for _, e := range pool {
		ids = append(ids, e.id)
	}
	return ids
}

// lowStabilityPool orders remaining carded notes by interval asc, reps asc,
// due asc, note id asc.
func lowStabilityPool(notes []notestore.Note, cards map[int64]notestore.Card, exclude map[int64]bool) []int64 {
	type entry struct {
		interval int
		reps     int
		due      int64
		id       int64
	}
	var pool []entry
	for _, n := range notes {
		if exclude[n.ID] {
			continue
		}
		card, ok := cards[n.ID]
		if !ok {
			continue
		}
		pool = append(pool, entry{interval: card.Interval, reps: card.Reps, due: card.Due, id: n.ID})
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].interval != pool[j].interval {
			return pool[i].interval < pool[j].interval
		}
		if pool[i].reps != pool[j].reps {
			return pool[i].reps < pool[j].reps
		}
		if pool[i].due != pool[j].due {
			return pool[i].due < pool[j].due
		}
		return pool[i].id < pool[j].id
	})
	ids := make([]int64, 0, len(pool))
	for _, e := range pool {
		ids = append(ids, e.id)
	}
	return ids
}

// fallbackPool returns every remaining note in input order.
func fallbackPool(notes []notestore.Note, exclude map[int64]bool) []int64 {
	var ids []int64
	for _, n := range notes {
		if !exclude[n.ID] {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
