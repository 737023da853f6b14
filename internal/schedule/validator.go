package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Reason identifies why a booking request was rejected.
type Reason string

const (
	ReasonPastDate      Reason = "past_date"
	ReasonBlackout      Reason = "blackout_month"
	ReasonBeyondYear    Reason = "beyond_booking_year"
	ReasonClosedWeekday Reason = "closed_weekday"
	ReasonNoDiscipline  Reason = "discipline_not_on_weekday"
	ReasonNoSuchLesson  Reason = "no_such_lesson"
)

// Result is the outcome of a booking check.
type Result struct {
	OK      bool
	Date    string // ISO yyyy-mm-dd, set when a date was checked and accepted
	Weekday time.Weekday
	Reason  Reason
	Message string
}

// Validator cross-checks requested lessons against the weekly template.
type Validator struct {
	template WeeklyTemplate
	catalog  *Catalog
	loc      *time.Location
	blackout map[time.Month]bool
	now      func() time.Time
}

// ValidatorOption customises a Validator.
type ValidatorOption func(*Validator)

// WithLocation sets the studio timezone used to decide what "today" is.
func WithLocation(loc *time.Location) ValidatorOption {
	return func(v *Validator) {
		if loc != nil {
			v.loc = loc
		}
	}
}

// WithBlackoutMonths replaces the closed months. An empty list disables the blackout.
func WithBlackoutMonths(months ...time.Month) ValidatorOption {
	return func(v *Validator) {
		v.blackout = make(map[time.Month]bool, len(months))
		for _, m := range months {
			v.blackout[m] = true
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewValidator builds a validator over tmpl. August is closed unless overridden.
func NewValidator(tmpl WeeklyTemplate, catalog *Catalog, opts ...ValidatorOption) *Validator {
	if catalog == nil {
		catalog = NewCatalog(tmpl, DefaultAliases())
	}
	v := &Validator{
		template: tmpl,
		catalog:  catalog,
		loc:      time.UTC,
		blackout: map[time.Month]bool{time.August: true},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Template exposes the read-only timetable.
func (v *Validator) Template() WeeklyTemplate { return v.template }

// Catalog exposes the discipline lookup.
func (v *Validator) Catalog() *Catalog { return v.catalog }

// Location is the studio timezone.
func (v *Validator) Location() *time.Location { return v.loc }

// Today returns midnight of the current day in the studio timezone.
func (v *Validator) Today() time.Time {
	now := v.now().In(v.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, v.loc)
}

// NormalizeDiscipline maps free text to a canonical discipline name.
func (v *Validator) NormalizeDiscipline(text string) string {
	return v.catalog.Normalize(text)
}

// ParseDate reads a date relative to today in the studio timezone.
func (v *Validator) ParseDate(text string) (time.Time, error) {
	return ParseDate(text, v.now(), v.loc)
}

// CheckDayTime verifies that discipline is held on wd at hhmm.
func (v *Validator) CheckDayTime(wd time.Weekday, discipline, hhmm string) Result {
	if !v.template.Open(wd) {
		return reject(ReasonClosedWeekday, fmt.Sprintf(
			"There are no lessons on %s. %s", wd, v.weekdaysHint(discipline)))
	}
	times := v.template.TimesFor(wd, discipline)
	if len(times) == 0 {
		return reject(ReasonNoDiscipline, fmt.Sprintf(
			"%s is not held on %s. %s", discipline, wd, v.weekdaysHint(discipline)))
	}
	if _, ok := v.template.Lookup(wd, discipline, hhmm); !ok {
		return reject(ReasonNoSuchLesson, fmt.Sprintf(
			"There is no %s lesson at %s on %s. Available times: %s.", discipline, hhmm, wd, strings.Join(times, ", ")))
	}
	return Result{OK: true, Weekday: wd}
}

// ValidateBooking checks a parsed date against the chosen discipline and time.
// The weekday always comes from the date itself; weekdayHint is advisory and
// only used to point out a mismatch in the message.
func (v *Validator) ValidateBooking(date time.Time, weekdayHint, discipline, hhmm string) Result {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, v.loc)
	today := v.Today()

	if day.Before(today) {
		return reject(ReasonPastDate, "That date is in the past. Please choose a future date.")
	}
	if v.blackout[day.Month()] {
		return reject(ReasonBlackout, fmt.Sprintf("The studio is closed in %s. Please choose another date.", day.Month()))
	}
	if day.Year() > today.Year() {
		allowed := today.Month() == time.December && day.Year() == today.Year()+1
		if !allowed {
			return reject(ReasonBeyondYear, fmt.Sprintf(
				"Bookings are open for %d only. Please choose a date this year.", today.Year()))
		}
	}

	wd := day.Weekday()
	res := v.CheckDayTime(wd, discipline, hhmm)
	if !res.OK {
		prefix := fmt.Sprintf("%s is a %s. ", day.Format("02/01/2006"), wd)
		if hint, ok := ParseWeekday(weekdayHint); ok && hint != wd {
			prefix = fmt.Sprintf("%s is a %s, not a %s. ", day.Format("02/01/2006"), wd, hint)
		}
		res.Message = prefix + res.Message
		return res
	}
	return Result{OK: true, Date: day.Format(ISODate), Weekday: wd}
}

// TimesFor lists the times a discipline is held on a weekday.
func (v *Validator) TimesFor(wd time.Weekday, discipline string) []string {
	return v.template.TimesFor(wd, discipline)
}

// WeekdaysFor lists the weekdays a discipline is held on.
func (v *Validator) WeekdaysFor(discipline string) []time.Weekday {
	return v.template.WeekdaysFor(discipline)
}

func (v *Validator) weekdaysHint(discipline string) string {
	days := v.template.WeekdaysFor(discipline)
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, 0, len(days))
	for _, wd := range days {
		parts = append(parts, fmt.Sprintf("%s (%s)", wd, strings.Join(v.template.TimesFor(wd, discipline), ", ")))
	}
	return fmt.Sprintf("%s is held on: %s.", discipline, strings.Join(parts, "; "))
}

func reject(reason Reason, message string) Result {
	return Result{OK: false, Reason: reason, Message: strings.TrimSpace(message)}
}
