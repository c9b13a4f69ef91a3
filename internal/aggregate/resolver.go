// Package aggregate reduces a set of poll questions to one canonical
// representative per aggregation bucket.
//
// Questions sharing an aggregation index are successive revisions of the
// same conceptual metric: scoring collapses them into a single canonical
// question so historical answers to retired revisions still aggregate
// under the live one. The input is expected to be pre-filtered to
// non-deleted rows (the repository's default scope does this); a bucket
// whose rows were all soft-deleted therefore never appears in the output.
package aggregate

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/teampulse/pulse-backend/internal/domain"
)

// Canonical picks one question per aggregation bucket under a
// deterministic rule: the revision with the newest CreatedAt wins, ties
// broken by the highest id. The output has exactly one entry per distinct
// aggregation index present in the input and is ordered by aggregation
// index ascending. Empty input yields an empty, non-nil slice.
//
// Under the append-only discipline a bucket holds at most one active
// revision. More than one active revision is an upstream consistency
// violation: it is logged and resolved by the same rule rather than
// failed, because scoring must stay available with imperfect data.
func Canonical(questions []domain.PollQuestion) []domain.PollQuestion {
	buckets := make(map[int]domain.PollQuestion)
	sizes := make(map[int]int)

	for _, q := range questions {
		sizes[q.AggregationIndex]++
		cur, ok := buckets[q.AggregationIndex]
		if !ok || newer(q, cur) {
			buckets[q.AggregationIndex] = q
		}
	}

	out := make([]domain.PollQuestion, 0, len(buckets))
	for idx, q := range buckets {
		if sizes[idx] > 1 {
			log.Warn().
				Int("aggregation_index", idx).
				Int("active_revisions", sizes[idx]).
				Uint("picked_question_id", q.ID).
				Msg("aggregation bucket has multiple active questions")
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AggregationIndex < out[j].AggregationIndex
	})
	return out
}

// newer reports whether a should replace b as the bucket representative.
func newer(a, b domain.PollQuestion) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}
