package cycle

import (
	"sort"

	"github.com/hoangvle/recall-cycle/internal/config"
	"github.com/hoangvle/recall-cycle/internal/notestore"
	"github.com/hoangvle/recall-cycle/internal/store"
)

// Inputs carries everything SelectToday needs. Notes and Cards come from the
// base snapshot; Items supplies retirement flags keyed by item id.
type Inputs struct {
	Notes        []notestore.Note
	Cards        map[int64]notestore.Card
	Items        []store.Item
	Params       config.Params
	YesterdayTag string
}

// SelectToday returns the Today note ids, sorted ascending.
//
// Pools are drained in priority order. The reward pool honors yesterday's
// cycle tag. Maintain fills from due, failed, and low-stability candidates
// under the domain cap; new fills from the maintain candidates that the cap
// passed over plus the fallback pool. If the combined set still falls short
// of the total, remaining active notes top it up in ascending id order.
func SelectToday(in Inputs) []int64 {
	active := ActiveNotes(in.Notes, in.Items)
	cards := make(map[int64]notestore.Card, len(in.Cards))
	for _, n := range active {
		if c, ok := in.Cards[n.ID]; ok {
			cards[n.ID] = c
		}
	}
	p := in.Params

	reward := rewardPool(active, in.YesterdayTag, p.RewardCap)
	exclude := toSet(reward)

	due := duePool(active, cards, exclude)
	duePrefix := due
	if len(duePrefix) > p.MaintainTotal {
		duePrefix = duePrefix[:p.MaintainTotal]
	}
	addAll(exclude, duePrefix)

	failed := failedPool(active, cards, exclude)
	addAll(exclude, failed)

	lowStability := lowStabilityPool(active, cards, exclude)
	addAll(exclude, lowStability)

	fallback := fallbackPool(active, exclude)

	maintainCandidates := concat(duePrefix, failed, lowStability)
	maintain := applyDomainCap(maintainCandidates, active, p.DomainCapSteps, p.MaintainTotal)

	// New draws from the maintain candidates the cap passed over, then the
	// fallback pool, in that order.
	maintainSet := toSet(maintain)
	var newCandidates []int64
	for _, id := range maintainCandidates {
		if !maintainSet[id] {
			newCandidates = append(newCandidates, id)
		}
	}
	newCandidates = append(newCandidates, fallback...)
	newPool := applyDomainCap(newCandidates, active, p.DomainCapSteps, p.NewTotal)

	today := dedupe(concat(reward, maintain, newPool))

	// Top up from any active note not yet selected, ascending by id.
	if len(today) < p.Total {
		selected := toSet(today)
		var remaining []int64
		for _, n := range active {
			if !selected[n.ID] {
				remaining = append(remaining, n.ID)
			}
		}
		sort.Slice(remaining, func(i, j int) bool { return remaining[i] < remaining[j] })
		need := p.Total - len(today)
		if len(remaining) > need {
			remaining = remaining[:need]
		}
		today = append(today, remaining...)
	}

	if len(today) > p.Total {
		today = today[:p.Total]
	}
	sort.Slice(today, func(i, j int) bool { return today[i] < today[j] })
	return today
}

// ActiveNotes drops notes whose item is retired or that carry the retired
// status tag. Selection and the end selfcheck share this definition so a
// correct run is never miscounted.
func ActiveNotes(notes []notestore.Note, items []store.Item) []notestore.Note {
	retired := map[string]bool{}
	for _, it := range items {
		if it.Retired {
			retired[it.ID] = true
		}
	}
	var active []notestore.Note
	for _, n := range notes {
		if n.HasTag(notestore.TagRetired) {
			continue
		}
		if id := n.ItemID(); id != "" && retired[id] {
			continue
		}
		active = append(active, n)
	}
	return active
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func addAll(set map[int64]bool, ids []int64) {
	for _, id := range ids {
		set[id] = true
	}
}

func concat(lists ...[]int64) []int64 {
	var out []int64
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// dedupe keeps the first occurrence of each id, preserving order.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	var out []int64
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
