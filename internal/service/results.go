package service

import "github.com/classpulse/poll-service/internal/domain"

// aggregate derives per-option counts and integer percentages from a ledger.
// Options nobody picked get an explicit zero entry; percentages are 0 when
// there are no responses.
func aggregate(ledger map[string]int, optionCount, rosterSize int) domain.Results {
	counts := make([]int, optionCount)
	for _, idx := range ledger {
		if idx >= 0 && idx < optionCount {
			counts[idx]++
		}
	}

	total := len(ledger)
	percentages := make([]int, optionCount)
	if total > 0 {
		for i, c := range counts {
			percentages[i] = c * 100 / total
		}
	}

	return domain.Results{
		Counts:      counts,
		Percentages: percentages,
		Total:       total,
		RosterSize:  rosterSize,
	}
}

// SummaryResults rebuilds the results projection from a finalized summary,
// so ended-poll broadcasts never depend on whatever session is current.
func SummaryResults(sum domain.PollSummary) domain.Results {
	total := 0
	for _, c := range sum.Counts {
		total += c
	}

	percentages := make([]int, len(sum.Counts))
	if total > 0 {
		for i, c := range sum.Counts {
			percentages[i] = c * 100 / total
		}
	}

	return domain.Results{
		Counts:      append([]int(nil), sum.Counts...),
		Percentages: percentages,
		Total:       total,
		RosterSize:  sum.Participants,
	}
}

// TopOption returns the index of the most chosen option. Ties resolve to the
// lowest index; -1 when there are no options.
func TopOption(r domain.Results) int {
	top := -1
	best := -1
	for i, c := range r.Counts {
		if c > best {
			top, best = i, c
		}
	}
	return top
}
