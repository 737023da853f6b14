package inventoryworker

import (
	"context"
	"time"

	"github.com/wolfman30/lesson-booking-agent/internal/inventory"
	"github.com/wolfman30/lesson-booking-agent/internal/schedule"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

type seeder interface {
	EnsureSeeded(ctx context.Context, from, to time.Time) (inventory.SeedReport, error)
}

// SeedPoller keeps the calendar seeded over a rolling horizon starting today.
type SeedPoller struct {
	seeder   seeder
	logger   *logging.Logger
	interval time.Duration
	horizon  int
	loc      *time.Location
	now      func() time.Time
}

func NewSeedPoller(seeder seeder, logger *logging.Logger) *SeedPoller {
	if logger == nil {
		logger = logging.Default()
	}
	return &SeedPoller{
		seeder:   seeder,
		logger:   logger,
		interval: 6 * time.Hour,
		horizon:  60,
		loc:      time.UTC,
		now:      time.Now,
	}
}

func (p *SeedPoller) WithInterval(d time.Duration) *SeedPoller {
	if d > 0 {
		p.interval = d
	}
	return p
}

func (p *SeedPoller) WithHorizonDays(n int) *SeedPoller {
	if n > 0 {
		p.horizon = n
	}
	return p
}

func (p *SeedPoller) WithLocation(loc *time.Location) *SeedPoller {
	if loc != nil {
		p.loc = loc
	}
	return p
}

// Run seeds immediately and then on every tick until ctx is cancelled.
func (p *SeedPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.seed(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.seed(ctx)
		}
	}
}

func (p *SeedPoller) seed(ctx context.Context) {
	if p.seeder == nil {
		return
	}
	now := p.now().In(p.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.loc)
	to := from.AddDate(0, 0, p.horizon-1)
	report, err := p.seeder.EnsureSeeded(ctx, from, to)
	if err != nil {
		p.logger.Error("calendar seed failed", "error", err, "from", from.Format(schedule.ISODate))
		return
	}
	p.logger.Info("calendar seeded", "from", from.Format(schedule.ISODate),
		"to", to.Format(schedule.ISODate), "days", report.Days, "written", report.Written)
}
