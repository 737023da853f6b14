package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/wolfman30/lesson-booking-agent/internal/schedule"
)

var (
	// ErrNoCapacity means the lesson is full. It is a normal booking outcome.
	ErrNoCapacity = errors.New("inventory: no capacity")
	// ErrSlotNotFound means the date has no lesson at the requested time.
	ErrSlotNotFound = errors.New("inventory: slot not found")
)

// Slot is a dated, bookable instance of a template lesson.
type Slot struct {
	Date           string `json:"date"`
	Time           string `json:"time"`
	Discipline     string `json:"discipline"`
	Capacity       int    `json:"capacity"`
	RemainingSeats int    `json:"remaining_seats"`
}

// DayKey is the store key holding every slot of one date.
func DayKey(date string) string {
	return fmt.Sprintf("calendar:%s", date)
}

// MergeTemplate backfills a day's slots from the template. Missing lessons are
// appended at full capacity, missing capacities are filled in, and remaining
// seats are only clamped into [0, capacity]; an existing count is never reset.
// The boolean reports whether anything changed.
func MergeTemplate(existing []Slot, date string, entries []schedule.SlotTemplate) ([]Slot, bool) {
	merged := make([]Slot, len(existing), len(existing)+len(entries))
	copy(merged, existing)
	changed := false

	index := make(map[string]int, len(merged))
	for i := range merged {
		index[slotID(merged[i].Time, merged[i].Discipline)] = i
		if merged[i].Date == "" {
			merged[i].Date = date
			changed = true
		}
	}

	for _, entry := range entries {
		i, ok := index[slotID(entry.Time, entry.Discipline)]
		if !ok {
			merged = append(merged, Slot{
				Date:           date,
				Time:           entry.Time,
				Discipline:     entry.Discipline,
				Capacity:       entry.Capacity,
				RemainingSeats: entry.Capacity,
			})
			index[slotID(entry.Time, entry.Discipline)] = len(merged) - 1
			changed = true
			continue
		}
		if merged[i].Capacity <= 0 {
			merged[i].Capacity = entry.Capacity
			changed = true
		}
	}

	for i := range merged {
		if merged[i].Capacity <= 0 {
			continue
		}
		switch {
		case merged[i].RemainingSeats < 0:
			merged[i].RemainingSeats = 0
			changed = true
		case merged[i].RemainingSeats > merged[i].Capacity:
			merged[i].RemainingSeats = merged[i].Capacity
			changed = true
		}
	}
	return merged, changed
}

// ReserveSeat takes one seat from the matching slot. An empty discipline matches
// the first slot at that time. The input slice is not modified.
func ReserveSeat(slots []Slot, hhmm, discipline string) ([]Slot, Slot, error) {
	for i, slot := range slots {
		if slot.Time != hhmm || (discipline != "" && slot.Discipline != discipline) {
			continue
		}
		if slot.RemainingSeats <= 0 {
			return nil, slot, ErrNoCapacity
		}
		next := make([]Slot, len(slots))
		copy(next, slots)
		next[i].RemainingSeats--
		return next, next[i], nil
	}
	return nil, Slot{}, ErrSlotNotFound
}

// SortSlots orders slots by time then discipline.
func SortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Time != slots[j].Time {
			return slots[i].Time < slots[j].Time
		}
		return slots[i].Discipline < slots[j].Discipline
	})
}

func decodeSlots(raw []byte) ([]Slot, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var slots []Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, fmt.Errorf("inventory: decode slots: %w", err)
	}
	return slots, nil
}

func encodeSlots(slots []Slot) ([]byte, error) {
	if slots == nil {
		slots = []Slot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return nil, fmt.Errorf("inventory: encode slots: %w", err)
	}
	return data, nil
}

func slotID(hhmm, discipline string) string {
	return hhmm + "|" + discipline
}
