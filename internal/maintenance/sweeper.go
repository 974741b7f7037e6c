// Package maintenance expires past bookings and purges long-deleted ones.
package maintenance

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	bookingrepo "github.com/ovaphlow/pitchfork/service-salon/internal/booking/repo"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/database"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/metrics"
)

// Result counts what one sweep changed.
type Result struct {
	Expired int64 `json:"expired"`
	Purged  int64 `json:"purged"`
}

// Sweeper runs the two cleanup statements. Each is atomic on its own; no lock
// is held between them.
type Sweeper struct {
	repo   *bookingrepo.BookingRepo
	clock  clockwork.Clock
	logger *zap.SugaredLogger
}

func NewSweeper(r *bookingrepo.BookingRepo, clock clockwork.Clock, logger *zap.SugaredLogger) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sweeper{repo: r, clock: clock, logger: logger}
}

// Sweep expires valid bookings dated more than a day ago, then purges deleted
// bookings created more than a month ago.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	now := s.clock.Now().UTC().Truncate(time.Second)
	expireBefore := database.DateOf(now.AddDate(0, 0, -1))
	purgeBefore := monthBefore(now)

	var res Result
	var err error
	res.Expired, err = s.repo.ExpirePast(ctx, expireBefore)
	if err != nil {
		metrics.RecordSweep(0, 0, err)
		return Result{}, err
	}
	res.Purged, err = s.repo.PurgeDeleted(ctx, purgeBefore)
	if err != nil {
		metrics.RecordSweep(res.Expired, 0, err)
		return res, err
	}
	metrics.RecordSweep(res.Expired, res.Purged, nil)
	s.logger.Infow("maintenance sweep finished", "expired", res.Expired, "purged", res.Purged,
		"expire_before", expireBefore, "purge_before", purgeBefore)
	return res, nil
}

// monthBefore steps back one calendar month, clamping the day to the end of
// the shorter month (Mar 31 -> Feb 28). time.AddDate would roll over instead.
func monthBefore(t time.Time) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m-1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}
