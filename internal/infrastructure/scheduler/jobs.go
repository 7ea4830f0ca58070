package scheduler

import (
	"context"
	"time"
)

// Jobs lists the maintenance work the API runs on a timer. Nil funcs are skipped.
type Jobs struct {
	CertificateCron string
	SweepInterval   time.Duration
	RefreshInterval time.Duration

	CertificateBatch  Func
	ExpireDuels       Func
	ExpireInvitations Func
	ExpireLeagueInvs  Func
	AdvanceRounds     Func
	RefreshBoards     Func
	RetryWebhooks     Func
}

func (s *Scheduler) Register(j Jobs) error {
	if j.CertificateBatch != nil && j.CertificateCron != "" {
		if err := s.Cron("certificate-batch", j.CertificateCron, j.CertificateBatch); err != nil {
			return err
		}
	}

	sweeps := []struct {
		name string
		fn   Func
	}{
		{"expire-duels", j.ExpireDuels},
		{"expire-invitations", j.ExpireInvitations},
		{"expire-league-invitations", j.ExpireLeagueInvs},
		{"advance-league-rounds", j.AdvanceRounds},
		{"retry-zaprite-webhooks", j.RetryWebhooks},
	}
	for _, sw := range sweeps {
		if sw.fn == nil {
			continue
		}
		if err := s.Every(sw.name, j.SweepInterval, sw.fn); err != nil {
			return err
		}
	}

	if j.RefreshBoards != nil {
		if err := s.Every("refresh-leaderboards", j.RefreshInterval, j.RefreshBoards); err != nil {
			return err
		}
	}
	return nil
}

// Counted adapts the (n, err) shape most sweep methods return.
func Counted(fn func(ctx context.Context) (int, error)) Func {
	return func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	}
}
