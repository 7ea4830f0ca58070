package certificate

import (
	"fmt"
	"time"
)

type QueueEntry struct {
	ID               int64
	PlayerID         int64
	AchievementType  string
	AchievementValue float64
	Data             map[string]any
	SessionID        *string
	AchievedAt       time.Time
	QueuedAt         time.Time
	Processed        bool
	BatchID          *string
}

// Rarity reads the rarity tier stored in the achievement data.
func (e QueueEntry) Rarity() string {
	if r, ok := e.Data["rarity_tier"].(string); ok && r != "" {
		return r
	}
	return "common"
}

type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchCompleted BatchStatus = "completed"
)

type Batch struct {
	ID               string
	Name             string
	MerkleRoot       string
	CertificateCount int
	Status           BatchStatus
	OTSProof         []byte
	IsConfirmed      bool
	CreatedAt        time.Time
	ProcessedAt      *time.Time
}

// BatchName labels the weekly run, e.g. "Satoshi Sunday 2026-10-18".
func BatchName(at time.Time) string {
	return fmt.Sprintf("Satoshi Sunday %s", at.UTC().Format("2006-01-02"))
}

type Certificate struct {
	ID               int64
	PlayerID         int64
	AchievementType  string
	AchievementValue float64
	Rarity           string
	SessionID        *string
	AchievedAt       time.Time
	Data             map[string]any
	DataHash         string
	MerkleRoot       string
	LeafIndex        int
	BatchID          string
	IssuedAt         time.Time
	IsVerified       bool
}

type Summary struct {
	BatchID          string
	BatchName        string
	CertificateCount int
	MerkleRoot       string
	ByType           map[string]int
	ByRarity         map[string]int
	UniquePlayers    int
	Timestamped      bool
}

func Summarize(batch Batch, entries []QueueEntry, timestamped bool) Summary {
	s := Summary{
		BatchID:          batch.ID,
		BatchName:        batch.Name,
		CertificateCount: len(entries),
		MerkleRoot:       batch.MerkleRoot,
		ByType:           map[string]int{},
		ByRarity:         map[string]int{},
		Timestamped:      timestamped,
	}
	players := map[int64]struct{}{}
	for _, e := range entries {
		s.ByType[e.AchievementType]++
		s.ByRarity[e.Rarity()]++
		players[e.PlayerID] = struct{}{}
	}
	s.UniquePlayers = len(players)
	return s
}
