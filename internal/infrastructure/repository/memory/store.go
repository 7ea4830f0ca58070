package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/analytics"
	"github.com/proofofputt/putt-api/internal/domain/certificate"
	"github.com/proofofputt/putt-api/internal/domain/duel"
	"github.com/proofofputt/putt-api/internal/domain/invitation"
	"github.com/proofofputt/putt-api/internal/domain/leaderboard"
	"github.com/proofofputt/putt-api/internal/domain/league"
	"github.com/proofofputt/putt-api/internal/domain/notification"
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/domain/session"
	"github.com/proofofputt/putt-api/internal/domain/subscription"
)

const firstPlayerID = 1000

// Store holds every table behind one lock so cross-entity operations
// (claiming a hidden profile, league standings, leaderboard aggregation)
// stay atomic the way a database transaction would.
type Store struct {
	mu  sync.RWMutex
	seq map[string]int64

	players  map[int64]player.Player
	stats    map[int64]player.Stats
	friends  map[int64]map[int64]time.Time
	sessions map[string]session.Session
	reports  map[string]string

	duels map[int64]duel.Duel

	leagues       map[int64]league.League
	members       map[int64]map[int64]league.Membership
	rounds        map[int64]league.Round
	roundSessions map[roundKey]league.RoundSession
	leagueInvites map[int64]league.Invitation

	invitations map[int64]invitation.Invitation

	boards map[string]cachedBoard
	groups map[int64]leaderboard.Group

	notifications map[int64]notification.Notification

	events      []analytics.Event
	conversions []analytics.Conversion

	orders   []subscription.Order
	webhooks map[int64]subscription.WebhookEvent
	subs     map[int64]subscription.State

	queue   map[int64]certificate.QueueEntry
	batches map[string]certificate.Batch
	certs   map[int64]certificate.Certificate
}

type roundKey struct {
	roundID  int64
	playerID int64
}

type cachedBoard struct {
	context      leaderboard.Context
	entries      []leaderboard.Entry
	stale        bool
	calculatedAt time.Time
}

func NewStore() *Store {
	return &Store{
		seq:           map[string]int64{"players": firstPlayerID - 1},
		players:       map[int64]player.Player{},
		stats:         map[int64]player.Stats{},
		friends:       map[int64]map[int64]time.Time{},
		sessions:      map[string]session.Session{},
		reports:       map[string]string{},
		duels:         map[int64]duel.Duel{},
		leagues:       map[int64]league.League{},
		members:       map[int64]map[int64]league.Membership{},
		rounds:        map[int64]league.Round{},
		roundSessions: map[roundKey]league.RoundSession{},
		leagueInvites: map[int64]league.Invitation{},
		invitations:   map[int64]invitation.Invitation{},
		boards:        map[string]cachedBoard{},
		groups:        map[int64]leaderboard.Group{},
		notifications: map[int64]notification.Notification{},
		webhooks:      map[int64]subscription.WebhookEvent{},
		subs:          map[int64]subscription.State{},
		queue:         map[int64]certificate.QueueEntry{},
		batches:       map[string]certificate.Batch{},
		certs:         map[int64]certificate.Certificate{},
	}
}

// nextID must be called with the write lock held.
func (s *Store) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// duplicateError mirrors the Postgres unique violation text callers match on.
func duplicateError(constraint string) error {
	return fmt.Errorf("pq: duplicate key value violates unique constraint %q", constraint)
}
