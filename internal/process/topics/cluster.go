package topics

import (
	"github.com/lueurxax/feedpulse/internal/core/domain"
)

// Cluster groups messages greedily in the given order. Each message joins the
// first existing cluster whose representative (its first member) has a ratio
// of at least threshold, otherwise it starts a new cluster. The result is
// fully determined by the input order and threshold.
func Cluster(msgs []domain.Message, threshold float64) [][]domain.Message {
	var (
		clusters [][]domain.Message
		reps     [][]string
	)

	for _, m := range msgs {
		text := chars(m.Text)
		joined := false

		for i, rep := range reps {
			if ratio(text, rep) >= threshold {
				clusters[i] = append(clusters[i], m)
				joined = true

				break
			}
		}

		if !joined {
			clusters = append(clusters, []domain.Message{m})
			reps = append(reps, text)
		}
	}

	return clusters
}

// Title derives a topic title from its representative message text.
func Title(text string) string {
	n := 0
	for i := range text {
		if n == domain.TopicTitleMaxLen {
			return text[:i]
		}

		n++
	}

	return text
}
