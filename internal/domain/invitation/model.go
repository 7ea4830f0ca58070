package invitation

import (
	"net/mail"
	"strings"
	"time"
)

type Type string

const (
	TypeDuel   Type = "duel"
	TypeLeague Type = "league"
	TypeFriend Type = "friend"
)

func (t Type) Valid() bool {
	return t == TypeDuel || t == TypeLeague || t == TypeFriend
}

type IdentifierType string

const (
	IdentifierEmail    IdentifierType = "email"
	IdentifierPhone    IdentifierType = "phone"
	IdentifierTelegram IdentifierType = "telegram"
	IdentifierUsername IdentifierType = "username"
	IdentifierOther    IdentifierType = "other"
)

func (t IdentifierType) Valid() bool {
	switch t {
	case IdentifierEmail, IdentifierPhone, IdentifierTelegram, IdentifierUsername, IdentifierOther:
		return true
	}
	return false
}

// NormalizeIdentifier lowercases emails and usernames and strips phone formatting.
func NormalizeIdentifier(t IdentifierType, raw string) string {
	raw = strings.TrimSpace(raw)
	switch t {
	case IdentifierEmail, IdentifierUsername:
		return strings.ToLower(raw)
	case IdentifierTelegram:
		return strings.ToLower(strings.TrimPrefix(raw, "@"))
	case IdentifierPhone:
		var b strings.Builder
		for i, r := range raw {
			if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	return raw
}

func IsEmail(raw string) bool {
	addr, err := mail.ParseAddress(raw)
	return err == nil && addr.Address == raw
}

// PlaceholderEmail is the email a hidden player gets for a non-email identifier.
func PlaceholderEmail(identifier string) string {
	if IsEmail(identifier) {
		return identifier
	}
	var b strings.Builder
	for _, r := range strings.ToLower(identifier) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' || r == '+' {
			b.WriteRune(r)
		}
	}
	local := b.String()
	if local == "" {
		local = "invitee"
	}
	return local + "@temp.proofofputt.com"
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

const TTL = 30 * 24 * time.Hour

// Data is the type-specific payload; it is part of the uniqueness key.
type Data struct {
	DuelID   *int64 `json:"duel_id,omitempty"`
	LeagueID *int64 `json:"league_id,omitempty"`
}

type Invitation struct {
	ID             int64
	InviterID      int64
	TargetPlayerID int64
	Type           Type
	Data           Data
	Identifier     string
	IdentifierType IdentifierType
	Message        string
	Status         Status
	ExpiresAt      time.Time
	RespondedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	InviterName string
}

func (i Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)
