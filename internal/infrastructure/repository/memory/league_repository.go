package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/league"
)

type LeagueRepository struct {
	s *Store
}

func NewLeagueRepository(s *Store) *LeagueRepository {
	return &LeagueRepository{s: s}
}

func (r *LeagueRepository) CreateWithOwner(_ context.Context, l league.League) (league.League, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.leagues {
		if existing.Slug == l.Slug {
			return league.League{}, duplicateError("leagues_slug_key")
		}
	}
	l.ID = r.s.nextID("leagues")
	r.s.leagues[l.ID] = l
	r.s.members[l.ID] = map[int64]league.Membership{
		l.CreatedBy: {
			LeagueID: l.ID,
			PlayerID: l.CreatedBy,
			Role:     league.RoleOwner,
			IsActive: true,
			JoinedAt: l.CreatedAt,
		},
	}
	return r.s.decorateLeague(l), nil
}

func (r *LeagueRepository) GetByID(_ context.Context, id int64) (league.League, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.leagues[id]
	if !ok {
		return league.League{}, false, nil
	}
	return r.s.decorateLeague(l), true, nil
}

func (r *LeagueRepository) ListByMember(_ context.Context, playerID int64) ([]league.League, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]league.League, 0)
	for id, l := range r.s.leagues {
		if m, ok := r.s.members[id][playerID]; ok && m.IsActive {
			out = append(out, r.s.decorateLeague(l))
		}
	}
	sortLeagues(out)
	return out, nil
}

func (r *LeagueRepository) ListPublic(_ context.Context, excludePlayerID int64, limit int) ([]league.League, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]league.League, 0)
	for id, l := range r.s.leagues {
		if l.Settings.Privacy != league.PrivacyPublic || !l.Joinable() {
			continue
		}
		if m, ok := r.s.members[id][excludePlayerID]; ok && m.IsActive {
			continue
		}
		out = append(out, r.s.decorateLeague(l))
	}
	sortLeagues(out)
	return page(out, limit, 0), nil
}

func (r *LeagueRepository) ListMembers(_ context.Context, leagueID int64) ([]league.Membership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]league.Membership, 0, len(r.s.members[leagueID]))
	for _, m := range r.s.members[leagueID] {
		if !m.IsActive {
			continue
		}
		m.PlayerName = r.s.players[m.PlayerID].Name
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].PlayerID < out[j].PlayerID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (r *LeagueRepository) GetMembership(_ context.Context, leagueID, playerID int64) (league.Membership, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.members[leagueID][playerID]
	if ok {
		m.PlayerName = r.s.players[playerID].Name
	}
	return m, ok, nil
}

func (r *LeagueRepository) AddMember(_ context.Context, m league.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.leagues[m.LeagueID]
	if !ok {
		return fmt.Errorf("league %d not found", m.LeagueID)
	}
	existing, found := r.s.members[m.LeagueID][m.PlayerID]
	if found && existing.IsActive {
		return league.ErrAlreadyMember
	}
	if l.Full(r.s.activeMembers(m.LeagueID)) {
		return league.ErrLeagueFull
	}
	if r.s.members[m.LeagueID] == nil {
		r.s.members[m.LeagueID] = map[int64]league.Membership{}
	}
	if m.Role == "" {
		m.Role = league.RoleMember
	}
	m.IsActive = true
	r.s.members[m.LeagueID][m.PlayerID] = m
	return nil
}

func (r *LeagueRepository) Start(_ context.Context, leagueID int64, at time.Time, rounds []league.Round) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.leagues[leagueID]
	if !ok || !l.Status.Startable() {
		return false, nil
	}
	l.Status = league.StatusActive
	l.StartedAt = &at
	l.UpdatedAt = at
	r.s.leagues[leagueID] = l
	for _, round := range rounds {
		round.ID = r.s.nextID("rounds")
		round.LeagueID = leagueID
		r.s.rounds[round.ID] = round
	}
	return true, nil
}

func (r *LeagueRepository) ListRounds(_ context.Context, leagueID int64) ([]league.Round, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.leagueRounds(leagueID), nil
}

func (r *LeagueRepository) GetRound(_ context.Context, roundID int64) (league.Round, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	round, ok := r.s.rounds[roundID]
	return round, ok, nil
}

func (r *LeagueRepository) SubmitRoundSession(_ context.Context, rs league.RoundSession) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := roundKey{roundID: rs.RoundID, playerID: rs.PlayerID}
	_, replaced := r.s.roundSessions[key]
	r.s.roundSessions[key] = rs
	if !replaced {
		if m, ok := r.s.members[rs.LeagueID][rs.PlayerID]; ok {
			m.SessionsThisRound++
			r.s.members[rs.LeagueID][rs.PlayerID] = m
		}
	}
	return replaced, nil
}

func (r *LeagueRepository) Standings(_ context.Context, leagueID int64) ([]league.Standing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byPlayer := map[int64]*league.Standing{}
	for _, m := range r.s.members[leagueID] {
		if !m.IsActive {
			continue
		}
		byPlayer[m.PlayerID] = &league.Standing{PlayerID: m.PlayerID, PlayerName: r.s.players[m.PlayerID].Name}
	}
	for _, rs := range r.s.roundSessions {
		st, ok := byPlayer[rs.PlayerID]
		if rs.LeagueID != leagueID || !ok {
			continue
		}
		st.TotalScore += rs.Score
		st.RoundsPlayed++
	}

	out := make([]league.Standing, 0, len(byPlayer))
	for _, st := range byPlayer {
		out = append(out, *st)
	}
	return out, nil
}

func (r *LeagueRepository) AdvanceRounds(_ context.Context, now time.Time) ([]league.RoundAdvance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	leagueIDs := make([]int64, 0)
	for id, l := range r.s.leagues {
		if l.Status == league.StatusActive {
			leagueIDs = append(leagueIDs, id)
		}
	}
	sort.Slice(leagueIDs, func(i, j int) bool { return leagueIDs[i] < leagueIDs[j] })

	out := make([]league.RoundAdvance, 0)
	for _, leagueID := range leagueIDs {
		rounds := r.s.leagueRounds(leagueID)
		for i, round := range rounds {
			if round.Status != league.RoundActive || now.Before(round.EndTime) {
				continue
			}
			round.Status = league.RoundCompleted
			r.s.rounds[round.ID] = round
			adv := league.RoundAdvance{LeagueID: leagueID, CompletedRound: round.Number}

			if i+1 < len(rounds) {
				next := rounds[i+1]
				next.Status = league.RoundActive
				r.s.rounds[next.ID] = next
				n := next.Number
				adv.ActivatedRound = &n
			} else {
				l := r.s.leagues[leagueID]
				l.Status = league.StatusCompleted
				l.CompletedAt = &now
				l.UpdatedAt = now
				r.s.leagues[leagueID] = l
				adv.LeagueFinished = true
			}
			for playerID, m := range r.s.members[leagueID] {
				m.SessionsThisRound = 0
				r.s.members[leagueID][playerID] = m
			}
			out = append(out, adv)
			break
		}
	}
	return out, nil
}

func (r *LeagueRepository) CreateInvitation(_ context.Context, inv league.Invitation) (league.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if inv.Status == "" {
		inv.Status = league.InvitationPending
	}
	for id, existing := range r.s.leagueInvites {
		if existing.LeagueID != inv.LeagueID || existing.InviteeID != inv.InviteeID || existing.Status != league.InvitationPending {
			continue
		}
		if !existing.ExpiresAt.After(inv.InvitedAt) {
			existing.Status = league.InvitationExpired
			r.s.leagueInvites[id] = existing
			continue
		}
		if inv.Status == league.InvitationPending {
			return league.Invitation{}, duplicateError("league_invitations_pending_key")
		}
	}
	inv.ID = r.s.nextID("league_invitations")
	r.s.leagueInvites[inv.ID] = inv
	return inv, nil
}

func (r *LeagueRepository) GetInvitation(_ context.Context, id int64) (league.Invitation, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	inv, ok := r.s.leagueInvites[id]
	return inv, ok, nil
}

func (r *LeagueRepository) HasPendingInvitation(_ context.Context, leagueID, playerID int64, now time.Time) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, inv := range r.s.leagueInvites {
		if inv.LeagueID == leagueID && inv.InviteeID == playerID && inv.Status == league.InvitationPending && inv.ExpiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r *LeagueRepository) SetInvitationStatus(_ context.Context, id int64, from, to league.InvitationStatus, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	inv, ok := r.s.leagueInvites[id]
	if !ok || inv.Status != from {
		return false, nil
	}
	inv.Status = to
	inv.RespondedAt = &at
	r.s.leagueInvites[id] = inv
	return true, nil
}

func (r *LeagueRepository) ExpireInvitations(_ context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for id, inv := range r.s.leagueInvites {
		if inv.Status == league.InvitationPending && !now.Before(inv.ExpiresAt) {
			inv.Status = league.InvitationExpired
			r.s.leagueInvites[id] = inv
			n++
		}
	}
	return n, nil
}

// decorateLeague fills the derived columns; callers hold the lock.
func (s *Store) decorateLeague(l league.League) league.League {
	l.MemberCount = s.activeMembers(l.ID)
	l.ActiveRound = nil
	for _, round := range s.leagueRounds(l.ID) {
		if round.Status == league.RoundActive {
			n := round.Number
			l.ActiveRound = &n
			break
		}
	}
	return l
}

func (s *Store) activeMembers(leagueID int64) int {
	n := 0
	for _, m := range s.members[leagueID] {
		if m.IsActive {
			n++
		}
	}
	return n
}

func (s *Store) leagueRounds(leagueID int64) []league.Round {
	out := make([]league.Round, 0)
	for _, round := range s.rounds {
		if round.LeagueID == leagueID {
			out = append(out, round)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func sortLeagues(items []league.League) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
