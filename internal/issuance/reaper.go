package issuance

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/giftar/giftpin/internal/ledger"
	"github.com/giftar/giftpin/internal/pins"
)

const (
	defaultReservationTimeout = 10 * time.Minute
	defaultReaperInterval     = time.Minute
	reaperBatchSize           = 200
)

// Reaper settles creations interrupted between debit and persist: it refunds
// reservations pending past the timeout and frees PIN claims never attached to a gift.
type Reaper struct {
	ledger   *ledger.Ledger
	pins     *pins.Registry
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewReaper constructs a Reaper. It returns nil without a ledger.
func NewReaper(l *ledger.Ledger, registry *pins.Registry, timeout, interval time.Duration) *Reaper {
	if l == nil || registry == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultReservationTimeout
	}
	if interval <= 0 {
		interval = defaultReaperInterval
	}
	return &Reaper{
		ledger:   l,
		pins:     registry,
		timeout:  timeout,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the reaper loop in a background goroutine.
func (r *Reaper) Start(ctx context.Context) {
	if r == nil {
		return
	}
	go r.run(ctx)
	log.Infof("reservation reaper started (interval=%s timeout=%s)", r.interval, r.timeout)
}

func (r *Reaper) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		r.reapOnce(ctx)
		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// reapOnce returns the number of refunded reservations and released claims.
func (r *Reaper) reapOnce(ctx context.Context) (int, int64) {
	cutoff := r.now().Add(-r.timeout)

	refunded := 0
	pending, errList := r.ledger.PendingBefore(ctx, cutoff, reaperBatchSize)
	if errList != nil {
		log.WithError(errList).Warn("reservation reaper: list pending failed")
	}
	for _, reservation := range pending {
		if errComp := r.ledger.Compensate(ctx, reservation); errComp != nil {
			log.WithError(errComp).WithField("reservation", reservation.Handle).Warn("reservation reaper: compensate failed")
			continue
		}
		refunded++
	}

	released, errRelease := r.pins.ReleaseOrphans(ctx, cutoff)
	if errRelease != nil {
		log.WithError(errRelease).Warn("reservation reaper: release orphan pins failed")
	}

	if refunded > 0 || released > 0 {
		log.Infof("reservation reaper: refunded %d reservations, released %d pins (cutoff=%s)", refunded, released, cutoff.Format(time.RFC3339))
	}
	return refunded, released
}
