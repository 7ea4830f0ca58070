package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/proofofputt/putt-api/internal/domain/duel"
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/domain/user"
	"github.com/proofofputt/putt-api/internal/platform/logging"
)

var errPasswordMismatch = errors.New("password mismatch")

type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns a non-nil error when password does not match hash.
	Compare(hash, password string) error
}

type TokenIssuer interface {
	Issue(p user.Principal) (token string, expiresAt time.Time, err error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Player    player.Player
	Claimed   bool
}

type AuthService struct {
	players player.Repository
	duels   duel.Repository
	hasher  PasswordHasher
	tokens  TokenIssuer
	logger  *logging.Logger
	now     func() time.Time
}

func NewAuthService(players player.Repository, duels duel.Repository, hasher PasswordHasher, tokens TokenIssuer, logger *logging.Logger) *AuthService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthService{
		players: players,
		duels:   duels,
		hasher:  hasher,
		tokens:  tokens,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuthService.Register")
	defer span.End()

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateRegistration(input); err != nil {
		return AuthResult{}, err
	}

	existing, found, err := s.players.GetByEmail(ctx, input.Email)
	if err != nil {
		return AuthResult{}, fmt.Errorf("get player by email: %w", err)
	}
	if found && !existing.Unclaimed() {
		return AuthResult{}, fmt.Errorf("%w: an account with this email already exists", ErrConflict)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()

	hidden, claimable, err := s.findClaimable(ctx, input, existing, found)
	if err != nil {
		return AuthResult{}, err
	}

	var (
		registered player.Player
		claimed    bool
	)
	if claimable {
		registered, err = s.players.ActivateHidden(ctx, hidden.ID, player.Registration{
			Name:         input.Name,
			Email:        input.Email,
			PasswordHash: hash,
			At:           now,
		})
		if err != nil {
			if isDuplicateConstraintError(err) {
				return AuthResult{}, fmt.Errorf("%w: an account with this email already exists", ErrConflict)
			}
			return AuthResult{}, fmt.Errorf("claim hidden player: %w", err)
		}
		claimed = true
		s.promotePendingDuels(ctx, registered.ID, now)
	} else {
		registered, err = s.players.Create(ctx, player.Player{
			Name:               input.Name,
			Email:              input.Email,
			PasswordHash:       hash,
			MembershipTier:     player.TierBasic,
			SubscriptionStatus: "inactive",
			Timezone:           "America/New_York",
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		if err != nil {
			if isDuplicateConstraintError(err) {
				return AuthResult{}, fmt.Errorf("%w: an account with this email already exists", ErrConflict)
			}
			return AuthResult{}, fmt.Errorf("create player: %w", err)
		}
	}

	result, err := s.issue(registered)
	if err != nil {
		return AuthResult{}, err
	}
	result.Claimed = claimed
	return result, nil
}

// findClaimable picks the placeholder a registration takes over: one stored
// under the email itself, else one invited by email or username identifier.
func (s *AuthService) findClaimable(ctx context.Context, input RegisterInput, byEmail player.Player, found bool) (player.Player, bool, error) {
	if found && byEmail.Unclaimed() {
		return byEmail, true, nil
	}
	p, ok, err := s.players.FindUnclaimedByIdentifier(ctx, input.Email, "email", "username")
	if err != nil {
		return player.Player{}, false, fmt.Errorf("find hidden player by email identifier: %w", err)
	}
	if ok {
		return p, true, nil
	}
	p, ok, err = s.players.FindUnclaimedByIdentifier(ctx, strings.ToLower(input.Name), "username")
	if err != nil {
		return player.Player{}, false, fmt.Errorf("find hidden player by username identifier: %w", err)
	}
	return p, ok, nil
}

// promotePendingDuels moves duels waiting for this player to sign up back to pending.
func (s *AuthService) promotePendingDuels(ctx context.Context, playerID int64, now time.Time) {
	if s.duels == nil {
		return
	}
	waiting, err := s.duels.ListByPlayer(ctx, playerID, duel.StatusPendingNewPlayer)
	if err != nil {
		s.logger.WarnContext(ctx, "list duels awaiting claimed player failed", "player_id", playerID, "error", err)
		return
	}
	for _, d := range waiting {
		if _, err := s.duels.Transition(ctx, d.ID, duel.Transition{
			From: []duel.Status{duel.StatusPendingNewPlayer},
			To:   duel.StatusPending,
			At:   now,
		}); err != nil {
			s.logger.WarnContext(ctx, "promote duel after claim failed", "duel_id", d.ID, "error", err)
		}
	}
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuthService.Login")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return AuthResult{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	p, found, err := s.players.GetByEmail(ctx, email)
	if err != nil {
		return AuthResult{}, fmt.Errorf("get player by email: %w", err)
	}
	if !found || p.IsHidden || p.PasswordHash == "" {
		return AuthResult{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if err := s.hasher.Compare(p.PasswordHash, input.Password); err != nil {
		return AuthResult{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return s.issue(p)
}

func (s *AuthService) Me(ctx context.Context, playerID int64) (player.Profile, error) {
	p, found, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return player.Profile{}, fmt.Errorf("get player: %w", err)
	}
	if !found {
		return player.Profile{}, fmt.Errorf("%w: player=%d", ErrNotFound, playerID)
	}
	stats, _, err := s.players.GetStats(ctx, playerID)
	if err != nil {
		return player.Profile{}, fmt.Errorf("get player stats: %w", err)
	}
	stats.PlayerID = playerID
	return player.Profile{Player: p, Stats: stats}, nil
}

func (s *AuthService) issue(p player.Player) (AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user.Principal{PlayerID: p.ID, Email: p.Email})
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	p.PasswordHash = ""
	return AuthResult{Token: token, ExpiresAt: expiresAt, Player: p}, nil
}

func validateRegistration(input RegisterInput) error {
	if input.Email == "" || input.Password == "" || input.Name == "" {
		return fmt.Errorf("%w: email, password and name are required", ErrInvalidInput)
	}
	if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
		return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	if len(input.Password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(input.Name); n < 2 || n > 50 {
		return fmt.Errorf("%w: name must be between 2 and 50 characters", ErrInvalidInput)
	}
	return nil
}
