package duel

import (
	"fmt"

	"github.com/proofofputt/putt-api/internal/domain/session"
)

type ScoringMethod string

const (
	ScoringTotalMakes     ScoringMethod = "total_makes"
	ScoringMakePercentage ScoringMethod = "make_percentage"
	ScoringBestStreak     ScoringMethod = "best_streak"
	ScoringFastest21      ScoringMethod = "fastest_21"
)

// missingFastest21 ranks a session without a 21-make run behind every real time.
const missingFastest21 = 999999

func (m ScoringMethod) Valid() bool {
	switch m {
	case ScoringTotalMakes, ScoringMakePercentage, ScoringBestStreak, ScoringFastest21:
		return true
	}
	return false
}

// LowerWins is true for time-based methods.
func (m ScoringMethod) LowerWins() bool {
	return m == ScoringFastest21
}

type Rules struct {
	DuelType        string        `json:"duel_type"`
	TimeLimitHours  int           `json:"time_limit_hours"`
	TargetPutts     int           `json:"target_putts"`
	ScoringMethod   ScoringMethod `json:"scoring_method"`
	HandicapEnabled bool          `json:"handicap_enabled"`
	EntryStakes     float64       `json:"entry_stakes"`
	AutoAccept      bool          `json:"auto_accept"`
}

func DefaultRules() Rules {
	return Rules{
		DuelType:       "standard",
		TimeLimitHours: 48,
		TargetPutts:    50,
		ScoringMethod:  ScoringTotalMakes,
	}
}

// RuleOverrides carries caller-supplied settings; nil fields keep defaults.
type RuleOverrides struct {
	DuelType        *string        `json:"duel_type,omitempty"`
	TimeLimitHours  *int           `json:"time_limit_hours,omitempty"`
	TargetPutts     *int           `json:"target_putts,omitempty"`
	ScoringMethod   *ScoringMethod `json:"scoring_method,omitempty"`
	HandicapEnabled *bool          `json:"handicap_enabled,omitempty"`
	EntryStakes     *float64       `json:"entry_stakes,omitempty"`
	AutoAccept      *bool          `json:"auto_accept,omitempty"`
}

func (r Rules) Merge(o RuleOverrides) (Rules, error) {
	if o.DuelType != nil && *o.DuelType != "" {
		r.DuelType = *o.DuelType
	}
	if o.TimeLimitHours != nil {
		if *o.TimeLimitHours <= 0 || *o.TimeLimitHours > 24*30 {
			return r, fmt.Errorf("time_limit_hours must be between 1 and 720")
		}
		r.TimeLimitHours = *o.TimeLimitHours
	}
	if o.TargetPutts != nil {
		if *o.TargetPutts <= 0 {
			return r, fmt.Errorf("target_putts must be positive")
		}
		r.TargetPutts = *o.TargetPutts
	}
	if o.ScoringMethod != nil {
		if !o.ScoringMethod.Valid() {
			return r, fmt.Errorf("unsupported scoring_method %q", *o.ScoringMethod)
		}
		r.ScoringMethod = *o.ScoringMethod
	}
	if o.HandicapEnabled != nil {
		r.HandicapEnabled = *o.HandicapEnabled
	}
	if o.EntryStakes != nil {
		if *o.EntryStakes < 0 {
			return r, fmt.Errorf("entry_stakes cannot be negative")
		}
		r.EntryStakes = *o.EntryStakes
	}
	if o.AutoAccept != nil {
		r.AutoAccept = *o.AutoAccept
	}
	return r, nil
}

// ScoreOf extracts the value a session contributes under method.
func ScoreOf(method ScoringMethod, s session.Stats) float64 {
	switch method {
	case ScoringMakePercentage:
		return s.MakePercentage
	case ScoringBestStreak:
		return float64(s.BestStreak)
	case ScoringFastest21:
		if s.Fastest21Makes == nil || *s.Fastest21Makes <= 0 {
			return missingFastest21
		}
		return *s.Fastest21Makes
	default:
		return float64(s.TotalMakes)
	}
}

type Outcome int

const (
	OutcomeTie Outcome = iota
	OutcomeCreatorWins
	OutcomeInvitedWins
)

func Decide(method ScoringMethod, creatorScore, invitedScore float64) Outcome {
	if creatorScore == invitedScore {
		return OutcomeTie
	}
	creatorAhead := creatorScore > invitedScore
	if method.LowerWins() {
		creatorAhead = !creatorAhead
	}
	if creatorAhead {
		return OutcomeCreatorWins
	}
	return OutcomeInvitedWins
}

// Winner resolves the outcome to a player id; nil on a tie.
func (d Duel) Winner(o Outcome) *int64 {
	switch o {
	case OutcomeCreatorWins:
		id := d.CreatorID
		return &id
	case OutcomeInvitedWins:
		id := d.InvitedPlayerID
		return &id
	}
	return nil
}
