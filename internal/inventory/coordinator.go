package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/lesson-booking-agent/internal/schedule"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

// Recorder receives inventory outcomes. Implementations must be nil-safe.
type Recorder interface {
	ObserveReservation(outcome string)
	ObserveSeed(written bool)
}

// Reservation outcomes reported to the Recorder.
const (
	OutcomeReserved   = "reserved"
	OutcomeNoCapacity = "no_capacity"
	OutcomeNotFound   = "not_found"
	OutcomeError      = "error"
)

// SeedReport summarises an EnsureSeeded run.
type SeedReport struct {
	Days    int
	Written int
}

// Coordinator expands the weekly template into dated slots and reserves seats.
type Coordinator struct {
	store    Store
	template schedule.WeeklyTemplate
	loc      *time.Location
	logger   *logging.Logger
	recorder Recorder
	tracer   trace.Tracer
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithLocation sets the timezone dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder reports outcomes to metrics.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// NewCoordinator builds a coordinator over store and tmpl.
func NewCoordinator(store Store, tmpl schedule.WeeklyTemplate, opts ...Option) *Coordinator {
	if store == nil {
		panic("inventory: store cannot be nil")
	}
	c := &Coordinator{
		store:    store,
		template: tmpl,
		loc:      time.UTC,
		logger:   logging.Default(),
		tracer:   otel.Tracer("lessons.internal.inventory"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureSeeded makes sure every weekday in [from, to] that has lessons holds a
// record with all template slots. Existing records are merged, never replaced,
// so seats already taken stay taken.
func (c *Coordinator) EnsureSeeded(ctx context.Context, from, to time.Time) (SeedReport, error) {
	ctx, span := c.tracer.Start(ctx, "inventory.ensure_seeded")
	defer span.End()

	var report SeedReport
	day := c.midnight(from)
	last := c.midnight(to)
	for !day.After(last) {
		written, err := c.seedDay(ctx, day)
		if err != nil {
			span.RecordError(err)
			return report, err
		}
		if !schedule.IsWeekend(day) && c.template.Open(day.Weekday()) {
			report.Days++
		}
		if written {
			report.Written++
		}
		day = day.AddDate(0, 0, 1)
	}
	c.logger.Debug("inventory seeded", "from", from.Format(schedule.ISODate), "to", to.Format(schedule.ISODate),
		"days", report.Days, "written", report.Written)
	return report, nil
}

func (c *Coordinator) seedDay(ctx context.Context, day time.Time) (bool, error) {
	if schedule.IsWeekend(day) {
		return false, nil
	}
	entries := c.template.Entries(day.Weekday())
	if len(entries) == 0 {
		return false, nil
	}
	date := day.Format(schedule.ISODate)
	written := false
	err := c.store.Update(ctx, DayKey(date), func(current []byte, _ bool) ([]byte, error) {
		written = false
		existing, err := decodeSlots(current)
		if err != nil {
			return nil, err
		}
		merged, changed := MergeTemplate(existing, date, entries)
		if !changed {
			return nil, ErrUnchanged
		}
		written = true
		return encodeSlots(merged)
	})
	if err != nil {
		return false, fmt.Errorf("inventory: seed %s: %w", date, err)
	}
	if c.recorder != nil {
		c.recorder.ObserveSeed(written)
	}
	return written, nil
}

// AvailableSlots returns the slots stored for an ISO date, ordered by time.
// A date without a record yields an empty list.
func (c *Coordinator) AvailableSlots(ctx context.Context, date string) ([]Slot, error) {
	raw, found, err := c.store.Read(ctx, DayKey(date))
	if err != nil {
		return nil, fmt.Errorf("inventory: available slots %s: %w", date, err)
	}
	if !found {
		return []Slot{}, nil
	}
	slots, err := decodeSlots(raw)
	if err != nil {
		return nil, err
	}
	SortSlots(slots)
	return slots, nil
}

// Reserve atomically takes one seat of the lesson at hhmm on date. The date is
// seeded first so a reservation never depends on the background seeder.
// ErrNoCapacity and ErrSlotNotFound are returned unwrapped.
func (c *Coordinator) Reserve(ctx context.Context, date, hhmm, discipline string) (Slot, error) {
	ctx, span := c.tracer.Start(ctx, "inventory.reserve", trace.WithAttributes(
		attribute.String("lesson.date", date),
		attribute.String("lesson.time", hhmm),
		attribute.String("lesson.discipline", discipline),
	))
	defer span.End()

	day, err := time.ParseInLocation(schedule.ISODate, date, c.loc)
	if err != nil {
		return Slot{}, fmt.Errorf("inventory: reserve: %w", err)
	}
	if _, err := c.seedDay(ctx, day); err != nil {
		c.observe(OutcomeError)
		span.RecordError(err)
		return Slot{}, err
	}

	var reserved Slot
	err = c.store.Update(ctx, DayKey(date), func(current []byte, _ bool) ([]byte, error) {
		slots, err := decodeSlots(current)
		if err != nil {
			return nil, err
		}
		next, slot, err := ReserveSeat(slots, hhmm, discipline)
		if err != nil {
			return nil, err
		}
		reserved = slot
		return encodeSlots(next)
	})
	switch {
	case err == nil:
		c.observe(OutcomeReserved)
		c.logger.Info("seat reserved", "date", date, "time", hhmm, "discipline", discipline,
			"remaining_seats", reserved.RemainingSeats)
		return reserved, nil
	case errors.Is(err, ErrNoCapacity):
		c.observe(OutcomeNoCapacity)
		return Slot{}, ErrNoCapacity
	case errors.Is(err, ErrSlotNotFound):
		c.observe(OutcomeNotFound)
		return Slot{}, ErrSlotNotFound
	default:
		c.observe(OutcomeError)
		span.RecordError(err)
		c.logger.Error("reservation failed", "date", date, "time", hhmm, "error", err)
		return Slot{}, fmt.Errorf("inventory: reserve: %w", err)
	}
}

func (c *Coordinator) observe(outcome string) {
	if c.recorder != nil {
		c.recorder.ObserveReservation(outcome)
	}
}

func (c *Coordinator) midnight(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}
