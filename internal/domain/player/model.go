package player

import (
	"strings"
	"time"
)

const (
	TierBasic   = "basic"
	TierPremium = "premium"
)

type Player struct {
	ID                   int64
	Name                 string
	Email                string
	PasswordHash         string
	MembershipTier       string
	SubscriptionStatus   string
	Timezone             string
	IsHidden             bool
	InvitationIdentifier string
	IdentifierType       string
	InvitedBy            *int64
	InvitedAt            *time.Time
	ClaimedAt            *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Unclaimed reports whether the player is a placeholder nobody has taken over yet.
func (p Player) Unclaimed() bool {
	return p.IsHidden && p.ClaimedAt == nil
}

// MatchesIdentifier reports whether a caller with the given email or username
// may act on behalf of this hidden placeholder.
func (p Player) MatchesIdentifier(email, username string) bool {
	ident := strings.ToLower(strings.TrimSpace(p.InvitationIdentifier))
	if ident == "" {
		return false
	}
	switch p.IdentifierType {
	case "email":
		return ident == strings.ToLower(strings.TrimSpace(email))
	case "username":
		return ident == strings.ToLower(strings.TrimSpace(username))
	default:
		return ident == strings.ToLower(strings.TrimSpace(email)) || ident == strings.ToLower(strings.TrimSpace(username))
	}
}

type Stats struct {
	PlayerID             int64
	TotalSessions        int
	TotalPutts           int
	TotalMakes           int
	TotalMisses          int
	MakePercentage       float64
	BestStreak           int
	Fastest21Makes       *float64
	TotalDurationSeconds float64
	LastSessionAt        *time.Time
	UpdatedAt            time.Time
}

// SessionDelta is what one uploaded session adds to cumulative stats.
type SessionDelta struct {
	Putts           int
	Makes           int
	Misses          int
	BestStreak      int
	Fastest21Makes  *float64
	DurationSeconds float64
	RecordedAt      time.Time
}

// Apply folds a session into the running totals.
func (s Stats) Apply(d SessionDelta) Stats {
	s.TotalSessions++
	s.TotalPutts += d.Putts
	s.TotalMakes += d.Makes
	s.TotalMisses += d.Misses
	s.TotalDurationSeconds += d.DurationSeconds
	if d.BestStreak > s.BestStreak {
		s.BestStreak = d.BestStreak
	}
	if d.Fastest21Makes != nil && (s.Fastest21Makes == nil || *d.Fastest21Makes < *s.Fastest21Makes) {
		v := *d.Fastest21Makes
		s.Fastest21Makes = &v
	}
	s.MakePercentage = Percentage(s.TotalMakes, s.TotalPutts)
	at := d.RecordedAt
	s.LastSessionAt = &at
	s.UpdatedAt = d.RecordedAt
	return s
}

// Percentage returns makes/putts*100 rounded to two decimals; zero putts yields 0.
func Percentage(makes, putts int) float64 {
	if putts <= 0 {
		return 0
	}
	raw := float64(makes) / float64(putts) * 100
	return float64(int64(raw*100+0.5)) / 100
}

type Profile struct {
	Player Player
	Stats  Stats
}

// Registration carries the credentials a claimed or new account receives.
type Registration struct {
	Name         string
	Email        string
	PasswordHash string
	At           time.Time
}
