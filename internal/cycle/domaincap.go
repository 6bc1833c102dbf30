package cycle

import "github.com/hoangvle/recall-cycle/internal/notestore"

const unknownDomain = "unknown/unknown/unknown"

// applyDomainCap fills a quota from candidates while capping how many notes
// any single domain path may contribute. Caps relax step by step: each pass
// reconsiders skipped candidates under the next, larger cap until the quota
// is met or the steps run out. Candidate order is preserved within a pass.
func applyDomainCap(candidates []int64, notes []notestore.Note, capSteps []int, target int) []int64 {
	byID := make(map[int64]notestore.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}

	var result []int64
	picked := make(map[int64]bool)
	for _, step := range capSteps {
		domainCounts := map[string]int{}
		for _, id := range candidates {
			if picked[id] {
				continue
			}
			note, ok := byID[id]
			if !ok {
				continue
			}
			domain := domainOf(note)
			if domainCounts[domain] >= step {
				continue
			}
			result = append(result, id)
			picked[id] = true
			domainCounts[domain]++
			if len(result) >= target {
				return result
			}
		}
	}
	return result
}

// domainOf reads the note's DomainPath field, falling back to a sentinel so
// untagged notes still share one cap bucket.
func domainOf(n notestore.Note) string {
	if v := n.FieldValue("DomainPath"); v != "" {
		return v
	}
	return unknownDomain
}
