package postgres

import (
	"time"

	"github.com/proofofputt/putt-api/internal/domain/certificate"
)

type certificateQueueTableModel struct {
	ID               int64                 `db:"queue_id,omitinsert"`
	PlayerID         int64                 `db:"player_id"`
	AchievementType  string                `db:"achievement_type"`
	AchievementValue float64               `db:"achievement_value"`
	Data             jsonb[map[string]any] `db:"achievement_data"`
	SessionID        *string               `db:"session_id"`
	AchievedAt       time.Time             `db:"achieved_at"`
	QueuedAt         time.Time             `db:"queued_at"`
	Processed        bool                  `db:"processed"`
	BatchID          *string               `db:"batch_id"`
}

var certificateQueueColumns = []string{
	"queue_id", "player_id", "achievement_type", "achievement_value", "achievement_data",
	"session_id", "achieved_at", "queued_at", "processed", "batch_id",
}

func newCertificateQueueTableModel(e certificate.QueueEntry) certificateQueueTableModel {
	data := e.Data
	if data == nil {
		data = map[string]any{}
	}
	return certificateQueueTableModel{
		PlayerID:         e.PlayerID,
		AchievementType:  e.AchievementType,
		AchievementValue: e.AchievementValue,
		Data:             jsonOf(data),
		SessionID:        e.SessionID,
		AchievedAt:       e.AchievedAt,
		QueuedAt:         e.QueuedAt,
		Processed:        e.Processed,
		BatchID:          e.BatchID,
	}
}

func (m certificateQueueTableModel) toDomain() certificate.QueueEntry {
	return certificate.QueueEntry{
		ID:               m.ID,
		PlayerID:         m.PlayerID,
		AchievementType:  m.AchievementType,
		AchievementValue: m.AchievementValue,
		Data:             m.Data.V,
		SessionID:        m.SessionID,
		AchievedAt:       m.AchievedAt,
		QueuedAt:         m.QueuedAt,
		Processed:        m.Processed,
		BatchID:          m.BatchID,
	}
}

type certificateBatchTableModel struct {
	ID               string     `db:"batch_id"`
	Name             string     `db:"batch_name"`
	MerkleRoot       string     `db:"merkle_root"`
	CertificateCount int        `db:"certificate_count"`
	Status           string     `db:"status"`
	OTSProof         []byte     `db:"ots_proof"`
	IsConfirmed      bool       `db:"is_confirmed"`
	CreatedAt        time.Time  `db:"created_at"`
	ProcessedAt      *time.Time `db:"processed_at"`
}

var certificateBatchColumns = []string{
	"batch_id", "batch_name", "merkle_root", "certificate_count", "status",
	"ots_proof", "is_confirmed", "created_at", "processed_at",
}

func newCertificateBatchTableModel(b certificate.Batch) certificateBatchTableModel {
	status := b.Status
	if status == "" {
		status = certificate.BatchPending
	}
	return certificateBatchTableModel{
		ID:               b.ID,
		Name:             b.Name,
		MerkleRoot:       b.MerkleRoot,
		CertificateCount: b.CertificateCount,
		Status:           string(status),
		OTSProof:         b.OTSProof,
		IsConfirmed:      b.IsConfirmed,
		CreatedAt:        b.CreatedAt,
		ProcessedAt:      b.ProcessedAt,
	}
}

func (m certificateBatchTableModel) toDomain() certificate.Batch {
	return certificate.Batch{
		ID:               m.ID,
		Name:             m.Name,
		MerkleRoot:       m.MerkleRoot,
		CertificateCount: m.CertificateCount,
		Status:           certificate.BatchStatus(m.Status),
		OTSProof:         m.OTSProof,
		IsConfirmed:      m.IsConfirmed,
		CreatedAt:        m.CreatedAt,
		ProcessedAt:      m.ProcessedAt,
	}
}

type blockchainCertificateTableModel struct {
	ID               int64                 `db:"certificate_id,omitinsert"`
	PlayerID         int64                 `db:"player_id"`
	AchievementType  string                `db:"achievement_type"`
	AchievementValue float64               `db:"achievement_value"`
	Rarity           string                `db:"rarity_tier"`
	SessionID        *string               `db:"session_id"`
	AchievedAt       time.Time             `db:"achieved_at"`
	Data             jsonb[map[string]any] `db:"achievement_data"`
	DataHash         string                `db:"data_hash"`
	MerkleRoot       string                `db:"merkle_root"`
	LeafIndex        int                   `db:"leaf_index"`
	BatchID          string                `db:"batch_id"`
	IssuedAt         time.Time             `db:"issued_at"`
	IsVerified       bool                  `db:"is_verified"`
}

var blockchainCertificateColumns = []string{
	"certificate_id", "player_id", "achievement_type", "achievement_value", "rarity_tier",
	"session_id", "achieved_at", "achievement_data", "data_hash", "merkle_root",
	"leaf_index", "batch_id", "issued_at", "is_verified",
}

func (m blockchainCertificateTableModel) toDomain() certificate.Certificate {
	return certificate.Certificate{
		ID:               m.ID,
		PlayerID:         m.PlayerID,
		AchievementType:  m.AchievementType,
		AchievementValue: m.AchievementValue,
		Rarity:           m.Rarity,
		SessionID:        m.SessionID,
		AchievedAt:       m.AchievedAt,
		Data:             m.Data.V,
		DataHash:         m.DataHash,
		MerkleRoot:       m.MerkleRoot,
		LeafIndex:        m.LeafIndex,
		BatchID:          m.BatchID,
		IssuedAt:         m.IssuedAt,
		IsVerified:       m.IsVerified,
	}
}
