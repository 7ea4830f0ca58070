package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/certificate"
)

type CertificateRepository struct {
	s *Store
}

func NewCertificateRepository(s *Store) *CertificateRepository {
	return &CertificateRepository{s: s}
}

func (r *CertificateRepository) Enqueue(_ context.Context, e certificate.QueueEntry) (certificate.QueueEntry, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.queue {
		if existing.PlayerID == e.PlayerID && existing.AchievementType == e.AchievementType && existing.AchievementValue == e.AchievementValue {
			return existing, false, nil
		}
	}
	e.ID = r.s.nextID("achievement_queue")
	r.s.queue[e.ID] = e
	return e, true, nil
}

func (r *CertificateRepository) ListUnprocessed(_ context.Context, limit int) ([]certificate.QueueEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]certificate.QueueEntry, 0)
	for _, e := range r.s.queue {
		if !e.Processed {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AchievedAt.Equal(out[j].AchievedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AchievedAt.Before(out[j].AchievedAt)
	})
	return page(out, limit, 0), nil
}

func (r *CertificateRepository) CreateBatch(_ context.Context, b certificate.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.batches[b.ID]; exists {
		return duplicateError("certificate_batches_pkey")
	}
	r.s.batches[b.ID] = b
	return nil
}

func (r *CertificateRepository) CompleteBatch(_ context.Context, b certificate.Batch, certs []certificate.Certificate, queueIDs []int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.batches[b.ID]; !ok {
		return fmt.Errorf("batch %s not found", b.ID)
	}
	for _, c := range certs {
		if r.s.hasCertificate(c) {
			continue
		}
		c.ID = r.s.nextID("certificates")
		r.s.certs[c.ID] = c
	}
	for _, id := range queueIDs {
		e, ok := r.s.queue[id]
		if !ok {
			continue
		}
		batchID := b.ID
		e.Processed = true
		e.BatchID = &batchID
		r.s.queue[id] = e
	}
	b.Status = certificate.BatchCompleted
	b.ProcessedAt = &at
	r.s.batches[b.ID] = b
	return nil
}

func (r *CertificateRepository) GetBatch(_ context.Context, id string) (certificate.Batch, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.batches[id]
	return b, ok, nil
}

func (r *CertificateRepository) ListBatchLeaves(_ context.Context, batchID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	certs := make([]certificate.Certificate, 0)
	for _, c := range r.s.certs {
		if c.BatchID == batchID {
			certs = append(certs, c)
		}
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].LeafIndex < certs[j].LeafIndex })
	out := make([]string, len(certs))
	for i, c := range certs {
		out[i] = c.DataHash
	}
	return out, nil
}

func (r *CertificateRepository) ListByPlayer(_ context.Context, playerID int64) ([]certificate.Certificate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]certificate.Certificate, 0)
	for _, c := range r.s.certs {
		if c.PlayerID == playerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

func (r *CertificateRepository) GetCertificate(_ context.Context, id int64) (certificate.Certificate, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.certs[id]
	return c, ok, nil
}

func (s *Store) hasCertificate(c certificate.Certificate) bool {
	for _, existing := range s.certs {
		if existing.PlayerID == c.PlayerID && existing.AchievementType == c.AchievementType && existing.AchievementValue == c.AchievementValue {
			return true
		}
	}
	return false
}
