package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/proofofputt/putt-api/internal/domain/certificate"
	qb "github.com/proofofputt/putt-api/internal/platform/querybuilder"
)

type CertificateRepository struct {
	db *sqlx.DB
}

func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) Enqueue(ctx context.Context, e certificate.QueueEntry) (certificate.QueueEntry, bool, error) {
	query, args, err := qb.InsertModel("achievement_certificate_queue", newCertificateQueueTableModel(e),
		"ON CONFLICT (player_id, achievement_type, achievement_value) DO NOTHING RETURNING queue_id")
	if err != nil {
		return certificate.QueueEntry{}, false, fmt.Errorf("build insert certificate queue query: %w", err)
	}

	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		if !isNotFound(err) {
			return certificate.QueueEntry{}, false, fmt.Errorf("insert certificate queue entry: %w", err)
		}
		existing, err := r.selectQueue(ctx, 1,
			qb.Eq("player_id", e.PlayerID),
			qb.Eq("achievement_type", e.AchievementType),
			qb.Eq("achievement_value", e.AchievementValue),
		)
		if err != nil {
			return certificate.QueueEntry{}, false, err
		}
		if len(existing) == 0 {
			return certificate.QueueEntry{}, false, fmt.Errorf("certificate queue entry for player %d vanished", e.PlayerID)
		}
		return existing[0], false, nil
	}
	e.ID = id
	return e, true, nil
}

func (r *CertificateRepository) ListUnprocessed(ctx context.Context, limit int) ([]certificate.QueueEntry, error) {
	return r.selectQueue(ctx, limit, qb.Eq("processed", false))
}

func (r *CertificateRepository) selectQueue(ctx context.Context, limit int, conds ...qb.Condition) ([]certificate.QueueEntry, error) {
	query, args, err := qb.Select(certificateQueueColumns...).From("achievement_certificate_queue").
		Where(conds...).
		OrderBy("achieved_at", "queue_id").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select certificate queue query: %w", err)
	}
	var rows []certificateQueueTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select certificate queue: %w", err)
	}
	out := make([]certificate.QueueEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *CertificateRepository) CreateBatch(ctx context.Context, b certificate.Batch) error {
	query, args, err := qb.InsertModel("certificate_batches", newCertificateBatchTableModel(b), "")
	if err != nil {
		return fmt.Errorf("build insert certificate batch query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert certificate batch: %w", err)
	}
	return nil
}

func (r *CertificateRepository) CompleteBatch(ctx context.Context, b certificate.Batch, certs []certificate.Certificate, queueIDs []int64, at time.Time) error {
	return withTx(ctx, r.db, "complete certificate batch", func(tx *sqlx.Tx) error {
		query, args, err := qb.Update("certificate_batches").
			Set("merkle_root", b.MerkleRoot).
			Set("certificate_count", b.CertificateCount).
			Set("ots_proof", b.OTSProof).
			Set("is_confirmed", b.IsConfirmed).
			Set("status", string(certificate.BatchCompleted)).
			Set("processed_at", at).
			Where(qb.Eq("batch_id", b.ID)).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build complete certificate batch query: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("complete certificate batch: %w", err)
		}
		if n, err := rowsAffected(res, "complete certificate batch"); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("batch %s not found", b.ID)
		}

		if len(certs) > 0 {
			insert := qb.InsertInto("blockchain_certificates").Columns(
				"player_id", "achievement_type", "achievement_value", "rarity_tier", "session_id",
				"achieved_at", "achievement_data", "data_hash", "merkle_root", "leaf_index",
				"batch_id", "issued_at", "is_verified",
			)
			for _, c := range certs {
				data := c.Data
				if data == nil {
					data = map[string]any{}
				}
				insert = insert.Values(
					c.PlayerID, c.AchievementType, c.AchievementValue, c.Rarity, c.SessionID,
					c.AchievedAt, jsonOf(data), c.DataHash, c.MerkleRoot, c.LeafIndex,
					b.ID, c.IssuedAt, c.IsVerified,
				)
			}
			query, args, err = insert.Suffix("ON CONFLICT (player_id, achievement_type, achievement_value) DO NOTHING").ToSQL()
			if err != nil {
				return fmt.Errorf("build insert certificates query: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert certificates: %w", err)
			}
		}

		if len(queueIDs) > 0 {
			query, args, err = qb.Update("achievement_certificate_queue").
				Set("processed", true).
				Set("batch_id", b.ID).
				Where(qb.In("queue_id", queueIDs)).
				ToSQL()
			if err != nil {
				return fmt.Errorf("build mark queue processed query: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("mark queue processed: %w", err)
			}
		}
		return nil
	})
}

func (r *CertificateRepository) GetBatch(ctx context.Context, id string) (certificate.Batch, bool, error) {
	query, args, err := qb.Select(certificateBatchColumns...).From("certificate_batches").
		Where(qb.Eq("batch_id", id)).
		ToSQL()
	if err != nil {
		return certificate.Batch{}, false, fmt.Errorf("build select certificate batch query: %w", err)
	}
	var row certificateBatchTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return certificate.Batch{}, false, nil
		}
		return certificate.Batch{}, false, fmt.Errorf("select certificate batch: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *CertificateRepository) ListBatchLeaves(ctx context.Context, batchID string) ([]string, error) {
	query, args, err := qb.Select("data_hash").From("blockchain_certificates").
		Where(qb.Eq("batch_id", batchID)).
		OrderBy("leaf_index").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select batch leaves query: %w", err)
	}
	out := make([]string, 0)
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("select batch leaves: %w", err)
	}
	return out, nil
}

func (r *CertificateRepository) ListByPlayer(ctx context.Context, playerID int64) ([]certificate.Certificate, error) {
	query, args, err := qb.Select(blockchainCertificateColumns...).From("blockchain_certificates").
		Where(qb.Eq("player_id", playerID)).
		OrderBy("issued_at DESC", "certificate_id DESC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select player certificates query: %w", err)
	}
	var rows []blockchainCertificateTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select player certificates: %w", err)
	}
	out := make([]certificate.Certificate, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *CertificateRepository) GetCertificate(ctx context.Context, id int64) (certificate.Certificate, bool, error) {
	query, args, err := qb.Select(blockchainCertificateColumns...).From("blockchain_certificates").
		Where(qb.Eq("certificate_id", id)).
		ToSQL()
	if err != nil {
		return certificate.Certificate{}, false, fmt.Errorf("build select certificate query: %w", err)
	}
	var row blockchainCertificateTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return certificate.Certificate{}, false, nil
		}
		return certificate.Certificate{}, false, fmt.Errorf("select certificate: %w", err)
	}
	return row.toDomain(), true, nil
}
