package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/lesson-booking-agent/internal/inventory"
	"github.com/wolfman30/lesson-booking-agent/internal/schedule"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

const maxSeedDays = 366

type calendarInventory interface {
	AvailableSlots(ctx context.Context, date string) ([]inventory.Slot, error)
	EnsureSeeded(ctx context.Context, from, to time.Time) (inventory.SeedReport, error)
}

type AdminCalendarConfig struct {
	Inventory   calendarInventory
	Location    *time.Location
	HorizonDays int
	Logger      *logging.Logger
	Now         func() time.Time
}

// AdminCalendarHandler exposes the slot calendar to operators.
type AdminCalendarHandler struct {
	inventory   calendarInventory
	loc         *time.Location
	horizonDays int
	logger      *logging.Logger
	now         func() time.Time
}

func NewAdminCalendarHandler(cfg AdminCalendarConfig) *AdminCalendarHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 60
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AdminCalendarHandler{
		inventory:   cfg.Inventory,
		loc:         cfg.Location,
		horizonDays: cfg.HorizonDays,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
}

type DaySlotsResponse struct {
	Date  string           `json:"date"`
	Slots []inventory.Slot `json:"slots"`
}

// GetDaySlots lists the slots stored for one date.
// Route: GET /admin/slots/{date}
func (h *AdminCalendarHandler) GetDaySlots(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.inventory == nil {
		http.Error(w, "inventory not configured", http.StatusServiceUnavailable)
		return
	}
	date := strings.TrimSpace(chi.URLParam(r, "date"))
	if _, err := time.ParseInLocation(schedule.ISODate, date, h.loc); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	slots, err := h.inventory.AvailableSlots(r.Context(), date)
	if err != nil {
		h.logger.Error("admin calendar: read slots failed", "date", date, "error", err)
		http.Error(w, "failed to read slots", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, DaySlotsResponse{Date: date, Slots: slots})
}

type SeedRequest struct {
	From string `json:"from,omitempty"`
	Days int    `json:"days,omitempty"`
}

type SeedResponse struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Days    int    `json:"days"`
	Written int    `json:"written"`
}

// Seed expands the weekly template over a date range. Both fields are
// optional: from defaults to today and days to the configured horizon.
// Route: POST /admin/seed
func (h *AdminCalendarHandler) Seed(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.inventory == nil {
		http.Error(w, "inventory not configured", http.StatusServiceUnavailable)
		return
	}
	var req SeedRequest
	if r.Body != nil {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	now := h.now().In(h.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	if strings.TrimSpace(req.From) != "" {
		parsed, err := time.ParseInLocation(schedule.ISODate, strings.TrimSpace(req.From), h.loc)
		if err != nil {
			http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		from = parsed
	}
	days := req.Days
	if days <= 0 {
		days = h.horizonDays
	}
	if days > maxSeedDays {
		http.Error(w, "days must not exceed 366", http.StatusBadRequest)
		return
	}
	to := from.AddDate(0, 0, days-1)

	report, err := h.inventory.EnsureSeeded(r.Context(), from, to)
	if err != nil {
		h.logger.Error("admin calendar: seed failed", "from", from.Format(schedule.ISODate), "error", err)
		http.Error(w, "failed to seed calendar", http.StatusInternalServerError)
		return
	}
	h.logger.Info("admin calendar: seeded", "from", from.Format(schedule.ISODate),
		"to", to.Format(schedule.ISODate), "written", report.Written)
	writeJSON(w, http.StatusOK, SeedResponse{
		From:    from.Format(schedule.ISODate),
		To:      to.Format(schedule.ISODate),
		Days:    report.Days,
		Written: report.Written,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
