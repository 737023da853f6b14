package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// SlotTemplate is one recurring lesson offered on a weekday.
type SlotTemplate struct {
	Time       string `json:"time"`
	Discipline string `json:"discipline"`
	Capacity   int    `json:"capacity"`
}

// WeeklyTemplate maps a weekday to its ordered lesson offering. It is read-only once loaded.
type WeeklyTemplate map[time.Weekday][]SlotTemplate

// templateFile is the on-disk JSON shape: weekday names as keys plus optional discipline aliases.
type templateFile struct {
	Days    map[string][]SlotTemplate `json:"days"`
	Aliases map[string][]string       `json:"aliases,omitempty"`
}

var errEmptyTemplate = errors.New("schedule: template has no lessons")

// DefaultTemplate returns the built-in studio timetable. Weekends are closed.
func DefaultTemplate() WeeklyTemplate {
	return WeeklyTemplate{
		time.Monday: {
			{Time: "09:30", Discipline: "PILATES MATWORK", Capacity: 10},
			{Time: "18:30", Discipline: "PILATES REFORMER", Capacity: 6},
			{Time: "19:30", Discipline: "YOGA", Capacity: 12},
		},
		time.Tuesday: {
			{Time: "10:00", Discipline: "POSTURAL TRAINING", Capacity: 8},
			{Time: "18:00", Discipline: "PILATES MATWORK", Capacity: 10},
		},
		time.Wednesday: {
			{Time: "09:30", Discipline: "PILATES MATWORK", Capacity: 10},
			{Time: "18:30", Discipline: "PILATES REFORMER", Capacity: 6},
		},
		time.Thursday: {
			{Time: "10:00", Discipline: "POSTURAL TRAINING", Capacity: 8},
			{Time: "19:00", Discipline: "YOGA", Capacity: 12},
		},
		time.Friday: {
			{Time: "09:30", Discipline: "PILATES MATWORK", Capacity: 10},
			{Time: "17:30", Discipline: "PILATES REFORMER", Capacity: 6},
		},
	}
}

// LoadTemplate reads a JSON timetable from path. An empty path yields the default
// template and default aliases.
func LoadTemplate(path string) (WeeklyTemplate, map[string][]string, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTemplate(), DefaultAliases(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("schedule: read template: %w", err)
	}
	return ParseTemplate(raw)
}

// ParseTemplate decodes and validates a JSON timetable.
func ParseTemplate(raw []byte) (WeeklyTemplate, map[string][]string, error) {
	var file templateFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("schedule: decode template: %w", err)
	}
	tmpl := make(WeeklyTemplate, len(file.Days))
	for name, entries := range file.Days {
		wd, ok := ParseWeekday(name)
		if !ok {
			return nil, nil, fmt.Errorf("schedule: unknown weekday %q", name)
		}
		normalized := make([]SlotTemplate, 0, len(entries))
		for _, entry := range entries {
			hhmm, err := ParseClock(entry.Time)
			if err != nil {
				return nil, nil, fmt.Errorf("schedule: %s: %w", name, err)
			}
			entry.Time = hhmm
			entry.Discipline = canonicalKey(entry.Discipline)
			normalized = append(normalized, entry)
		}
		tmpl[wd] = append(tmpl[wd], normalized...)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, nil, err
	}
	aliases := file.Aliases
	if len(aliases) == 0 {
		aliases = DefaultAliases()
	}
	return tmpl, aliases, nil
}

// Validate checks capacities and that no weekday repeats a (time, discipline) pair.
// Weekend entries are rejected because weekend dates are never seeded.
func (t WeeklyTemplate) Validate() error {
	total := 0
	for wd, entries := range t {
		if weekendDay(wd) && len(entries) > 0 {
			return fmt.Errorf("schedule: %s: the studio is closed on weekends", wd)
		}
		seen := make(map[string]struct{}, len(entries))
		for _, entry := range entries {
			if entry.Discipline == "" {
				return fmt.Errorf("schedule: %s %s: discipline required", wd, entry.Time)
			}
			if entry.Capacity <= 0 {
				return fmt.Errorf("schedule: %s %s %s: capacity must be positive", wd, entry.Time, entry.Discipline)
			}
			key := entry.Time + "|" + entry.Discipline
			if _, dup := seen[key]; dup {
				return fmt.Errorf("schedule: %s: duplicate lesson %s at %s", wd, entry.Discipline, entry.Time)
			}
			seen[key] = struct{}{}
			total++
		}
	}
	if total == 0 {
		return errEmptyTemplate
	}
	return nil
}

// Entries returns the lessons offered on a weekday, ordered by time.
func (t WeeklyTemplate) Entries(wd time.Weekday) []SlotTemplate {
	entries := append([]SlotTemplate(nil), t[wd]...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Time < entries[j].Time })
	return entries
}

// Lookup finds the template entry for an exact (weekday, discipline, time) combination.
func (t WeeklyTemplate) Lookup(wd time.Weekday, discipline, hhmm string) (SlotTemplate, bool) {
	for _, entry := range t[wd] {
		if entry.Discipline == discipline && entry.Time == hhmm {
			return entry, true
		}
	}
	return SlotTemplate{}, false
}

// Open reports whether any lesson is held on the weekday.
func (t WeeklyTemplate) Open(wd time.Weekday) bool {
	return !weekendDay(wd) && len(t[wd]) > 0
}

// TimesFor lists the times a discipline is held on a weekday.
func (t WeeklyTemplate) TimesFor(wd time.Weekday, discipline string) []string {
	var times []string
	for _, entry := range t.Entries(wd) {
		if entry.Discipline == discipline {
			times = append(times, entry.Time)
		}
	}
	return times
}

// WeekdaysFor lists, Monday first, the weekdays on which a discipline is held.
func (t WeeklyTemplate) WeekdaysFor(discipline string) []time.Weekday {
	var days []time.Weekday
	for _, wd := range weekOrder {
		if !t.Open(wd) {
			continue
		}
		for _, entry := range t[wd] {
			if entry.Discipline == discipline {
				days = append(days, wd)
				break
			}
		}
	}
	return days
}

// Disciplines returns the distinct discipline names in timetable order.
func (t WeeklyTemplate) Disciplines() []string {
	seen := map[string]struct{}{}
	var names []string
	for _, wd := range weekOrder {
		for _, entry := range t.Entries(wd) {
			if _, ok := seen[entry.Discipline]; ok {
				continue
			}
			seen[entry.Discipline] = struct{}{}
			names = append(names, entry.Discipline)
		}
	}
	return names
}

var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	return weekendDay(t.Weekday())
}

func weekendDay(wd time.Weekday) bool {
	return wd == time.Saturday || wd == time.Sunday
}
