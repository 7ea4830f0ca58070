package certificate

import (
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/domain/session"
)

const (
	TypeConsecutiveMakes  = "consecutive_makes"
	TypePerfectSession    = "perfect_session"
	TypeCareerMilestone   = "career_milestone"
	TypeAccuracyMilestone = "accuracy_milestone"

	minPuttsForPerfect  = 10
	minPuttsForAccuracy = 500
)

var (
	streakMilestones   = []int{3, 7, 10, 15, 21, 42, 50, 77, 100}
	careerMilestones   = []int{1000, 5000, 10000, 25000, 50000}
	accuracyMilestones = []int{80, 90, 95}
)

type Achievement struct {
	Type   string
	Value  float64
	Rarity string
	Data   map[string]any
}

func tier(v, epic, legendary int) string {
	switch {
	case v >= legendary:
		return "legendary"
	case v >= epic:
		return "epic"
	default:
		return "rare"
	}
}

// Detect lists the achievements a session earns given the career stats before it.
// Whether a certificate already exists is decided by the queue's uniqueness.
func Detect(before player.Stats, s session.Stats) []Achievement {
	var out []Achievement

	for _, m := range streakMilestones {
		if s.BestStreak >= m {
			out = append(out, achievement(TypeConsecutiveMakes, m, tier(m, 50, 100), map[string]any{
				"streak_length": s.BestStreak,
				"total_putts":   s.TotalPutts,
			}))
		}
	}

	if s.TotalPutts >= minPuttsForPerfect && s.TotalMakes == s.TotalPutts {
		out = append(out, achievement(TypePerfectSession, s.TotalPutts, tier(s.TotalPutts, 25, 50), map[string]any{
			"total_putts": s.TotalPutts,
			"total_makes": s.TotalMakes,
		}))
	}

	careerMakes := before.TotalMakes + s.TotalMakes
	for _, m := range careerMilestones {
		if before.TotalMakes < m && careerMakes >= m {
			out = append(out, achievement(TypeCareerMilestone, m, tier(m, 5000, 25000), map[string]any{
				"career_makes": careerMakes,
			}))
		}
	}

	careerPutts := before.TotalPutts + s.TotalPutts
	if careerPutts >= minPuttsForAccuracy {
		accuracy := player.Percentage(careerMakes, careerPutts)
		for _, m := range accuracyMilestones {
			if accuracy >= float64(m) {
				out = append(out, achievement(TypeAccuracyMilestone, m, tier(m, 90, 95), map[string]any{
					"career_accuracy": accuracy,
					"career_putts":    careerPutts,
				}))
			}
		}
	}
	return out
}

func achievement(kind string, value int, rarity string, extra map[string]any) Achievement {
	data := map[string]any{
		"achievement_type":  kind,
		"achievement_value": value,
		"rarity_tier":       rarity,
	}
	for k, v := range extra {
		data[k] = v
	}
	return Achievement{Type: kind, Value: float64(value), Rarity: rarity, Data: data}
}
