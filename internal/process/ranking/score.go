package ranking

import (
	"time"

	"github.com/lueurxax/feedpulse/internal/core/domain"
)

// Trend is the recency factor 1/(1+ageHours). Ages in the future count as zero,
// so the result stays within (0, 1].
func Trend(now, at time.Time) float64 {
	age := now.Sub(at)
	if age < 0 {
		age = 0
	}

	return 1 / (1 + age.Hours())
}

// MessageScore is popularity scaled by recency.
func MessageScore(m domain.Message, now time.Time) float64 {
	return float64(m.Popularity()) * Trend(now, m.Date)
}

type topicAggregate struct {
	popularity int64
	latest     time.Time
}

// TopicScores sums member popularity per topic and applies the trend of the
// most recent member. Only members dated at or after start count; topics with
// none are absent from the result.
func TopicScores(members []domain.TopicMember, start, now time.Time) map[int64]float64 {
	aggs := make(map[int64]*topicAggregate)

	for _, mem := range members {
		if mem.Message.Date.Before(start) {
			continue
		}

		agg, ok := aggs[mem.TopicID]
		if !ok {
			agg = &topicAggregate{latest: mem.Message.Date}
			aggs[mem.TopicID] = agg
		}

		agg.popularity += mem.Message.Popularity()

		if mem.Message.Date.After(agg.latest) {
			agg.latest = mem.Message.Date
		}
	}

	scores := make(map[int64]float64, len(aggs))
	for id, agg := range aggs {
		scores[id] = float64(agg.popularity) * Trend(now, agg.latest)
	}

	return scores
}
