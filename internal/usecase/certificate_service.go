package usecase

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/certificate"
	"github.com/proofofputt/putt-api/internal/platform/id"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/sourcegraph/conc/iter"
)

const maxBatchEntries = 10000

// Timestamper submits a digest to an external timestamping calendar and returns its proof.
type Timestamper interface {
	Stamp(ctx context.Context, digest []byte) ([]byte, error)
}

type CertificateService struct {
	repo     certificate.Repository
	stamper  Timestamper
	ids      id.Generator
	notifier notifier
	logger   *logging.Logger
	now      func() time.Time

	running sync.Mutex
}

func NewCertificateService(repo certificate.Repository, stamper Timestamper, n notifier, logger *logging.Logger) *CertificateService {
	if n == nil {
		n = nopNotifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CertificateService{
		repo:     repo,
		stamper:  stamper,
		ids:      id.NewUUIDGenerator(),
		notifier: n,
		logger:   logger,
		now:      time.Now,
	}
}

// QueueAchievements enqueues newly earned achievements and notifies the player
// for each one that was not queued before. It returns the newly queued ones.
func (s *CertificateService) QueueAchievements(ctx context.Context, playerID int64, sessionID string, at time.Time, found []certificate.Achievement) ([]certificate.Achievement, error) {
	var queued []certificate.Achievement
	for _, a := range found {
		data := make(map[string]any, len(a.Data)+3)
		for k, v := range a.Data {
			data[k] = v
		}
		data["player_id"] = playerID
		data["session_id"] = sessionID
		data["achieved_at"] = at.UTC().Format(time.RFC3339)

		sid := sessionID
		_, ok, err := s.repo.Enqueue(ctx, certificate.QueueEntry{
			PlayerID:         playerID,
			AchievementType:  a.Type,
			AchievementValue: a.Value,
			Data:             data,
			SessionID:        &sid,
			AchievedAt:       at,
			QueuedAt:         s.now().UTC(),
		})
		if err != nil {
			return queued, fmt.Errorf("enqueue achievement %s/%g: %w", a.Type, a.Value, err)
		}
		if !ok {
			continue
		}
		queued = append(queued, a)
		if _, err := s.notifier.Notify(ctx, achievementNotification(playerID, a)); err != nil {
			s.logger.WarnContext(ctx, "achievement notification failed", "player_id", playerID, "type", a.Type, "error", err)
		}
	}
	return queued, nil
}

type BatchResult struct {
	Summary certificate.Summary
	Empty   bool
}

// RunBatch issues certificates for every unprocessed queue entry under one
// Merkle root. Timestamping the root is best effort.
func (s *CertificateService) RunBatch(ctx context.Context) (_ BatchResult, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CertificateService.RunBatch")
	defer func() {
		failSpan(span, err)
		span.End()
	}()

	if !s.running.TryLock() {
		return BatchResult{}, fmt.Errorf("%w: a certificate batch is already running", ErrConflict)
	}
	defer s.running.Unlock()

	entries, err := s.repo.ListUnprocessed(ctx, maxBatchEntries)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list queued achievements: %w", err)
	}
	if len(entries) == 0 {
		s.logger.InfoContext(ctx, "certificate batch skipped, queue empty")
		return BatchResult{Empty: true}, nil
	}

	leaves, err := iter.MapErr(entries, func(e *certificate.QueueEntry) (string, error) {
		return certificate.HashData(e.Data)
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("hash achievements: %w", err)
	}
	tree, err := certificate.BuildTree(leaves)
	if err != nil {
		return BatchResult{}, fmt.Errorf("build merkle tree: %w", err)
	}

	batchID, err := s.ids.NewID()
	if err != nil {
		return BatchResult{}, fmt.Errorf("generate batch id: %w", err)
	}
	now := s.now().UTC()
	batch := certificate.Batch{
		ID:               batchID,
		Name:             certificate.BatchName(now),
		MerkleRoot:       tree.Root(),
		CertificateCount: len(entries),
		Status:           certificate.BatchPending,
		CreatedAt:        now,
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return BatchResult{}, fmt.Errorf("create batch: %w", err)
	}

	batch.OTSProof = s.stamp(ctx, batch)

	certs := make([]certificate.Certificate, len(entries))
	queueIDs := make([]int64, len(entries))
	for i, e := range entries {
		certs[i] = certificate.Certificate{
			PlayerID:         e.PlayerID,
			AchievementType:  e.AchievementType,
			AchievementValue: e.AchievementValue,
			Rarity:           e.Rarity(),
			SessionID:        e.SessionID,
			AchievedAt:       e.AchievedAt,
			Data:             e.Data,
			DataHash:         leaves[i],
			MerkleRoot:       batch.MerkleRoot,
			LeafIndex:        i,
			BatchID:          batch.ID,
			IssuedAt:         now,
		}
		queueIDs[i] = e.ID
	}
	batch.Status = certificate.BatchCompleted
	batch.ProcessedAt = &now
	if err := s.repo.CompleteBatch(ctx, batch, certs, queueIDs, now); err != nil {
		return BatchResult{}, fmt.Errorf("complete batch: %w", err)
	}

	summary := certificate.Summarize(batch, entries, len(batch.OTSProof) > 0)
	s.logger.InfoContext(ctx, "certificate batch issued",
		"batch_id", batch.ID,
		"certificates", summary.CertificateCount,
		"players", summary.UniquePlayers,
		"merkle_root", summary.MerkleRoot,
		"timestamped", summary.Timestamped,
	)
	return BatchResult{Summary: summary}, nil
}

func (s *CertificateService) stamp(ctx context.Context, batch certificate.Batch) []byte {
	if s.stamper == nil {
		return nil
	}
	digest, err := hex.DecodeString(batch.MerkleRoot)
	if err != nil {
		s.logger.WarnContext(ctx, "merkle root is not hex", "batch_id", batch.ID, "error", err)
		return nil
	}
	proof, err := s.stamper.Stamp(ctx, digest)
	if err != nil {
		s.logger.WarnContext(ctx, "timestamp submission failed, issuing without proof", "batch_id", batch.ID, "error", err)
		return nil
	}
	return proof
}

func (s *CertificateService) List(ctx context.Context, playerID int64) ([]certificate.Certificate, error) {
	certs, err := s.repo.ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}

type CertificateVerification struct {
	Certificate    certificate.Certificate
	ComputedHash   string
	HashMatches    bool
	InMerkleTree   bool
	Proof          []certificate.ProofStep
	Timestamped    bool
	BatchConfirmed bool
}

// Verify recomputes the certificate's leaf hash and its inclusion proof against the batch root.
func (s *CertificateService) Verify(ctx context.Context, certificateID int64) (CertificateVerification, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CertificateService.Verify")
	defer span.End()

	cert, found, err := s.repo.GetCertificate(ctx, certificateID)
	if err != nil {
		return CertificateVerification{}, fmt.Errorf("get certificate: %w", err)
	}
	if !found {
		return CertificateVerification{}, fmt.Errorf("%w: certificate=%d", ErrNotFound, certificateID)
	}
	computed, err := certificate.HashData(cert.Data)
	if err != nil {
		return CertificateVerification{}, fmt.Errorf("hash certificate data: %w", err)
	}
	out := CertificateVerification{
		Certificate:  cert,
		ComputedHash: computed,
		HashMatches:  computed == cert.DataHash,
	}

	leaves, err := s.repo.ListBatchLeaves(ctx, cert.BatchID)
	if err != nil {
		return CertificateVerification{}, fmt.Errorf("list batch leaves: %w", err)
	}
	if tree, err := certificate.BuildTree(leaves); err == nil {
		if proof, err := tree.Proof(cert.LeafIndex); err == nil {
			out.Proof = proof
			out.InMerkleTree = certificate.VerifyProof(computed, proof, cert.MerkleRoot)
		}
	}

	batch, found, err := s.repo.GetBatch(ctx, cert.BatchID)
	if err != nil {
		return CertificateVerification{}, fmt.Errorf("get batch: %w", err)
	}
	if found {
		out.Timestamped = len(batch.OTSProof) > 0
		out.BatchConfirmed = batch.IsConfirmed
	}
	return out, nil
}
