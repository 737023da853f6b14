package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/lesson-booking-agent/internal/booking"
	"github.com/wolfman30/lesson-booking-agent/internal/inventory"
	"github.com/wolfman30/lesson-booking-agent/internal/schedule"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

// ErrReplyFailed wraps delivery failures of outbound replies.
var ErrReplyFailed = errors.New("conversation: reply delivery failed")

// Reserver takes one seat of a dated lesson.
type Reserver interface {
	Reserve(ctx context.Context, date, hhmm, discipline string) (inventory.Slot, error)
}

// BookingNotifier is told once about every completed booking.
type BookingNotifier interface {
	NotifyBooking(ctx context.Context, b booking.Booking) error
}

// StepRecorder receives dialogue metrics. Implementations must be nil-safe.
type StepRecorder interface {
	ObserveMessage(step string)
}

// InboundMessage is one text received from the channel.
type InboundMessage struct {
	MessageID string `json:"message_id,omitempty"`
	From      string `json:"from"`
	To        string `json:"to,omitempty"`
	Body      string `json:"body"`
}

// Controller runs the booking dialogue for every identity.
type Controller struct {
	validator  *schedule.Validator
	inventory  Reserver
	sessions   SessionStore
	disengaged *DisengagedSet
	messenger  ReplyMessenger
	notifier   BookingNotifier
	keywords   *KeywordDetector
	prompts    prompts
	recorder   StepRecorder
	logger     *logging.Logger
	tracer     trace.Tracer
	owner      string
	studio     string
	now        func() time.Time

	locksMu sync.Mutex
	locks   map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

// ControllerConfig carries the collaborators of a Controller.
type ControllerConfig struct {
	Validator  *schedule.Validator
	Inventory  Reserver
	Sessions   SessionStore
	Disengaged *DisengagedSet
	Messenger  ReplyMessenger
	Notifier   BookingNotifier
	Recorder   StepRecorder
	Logger     *logging.Logger

	// OwnerIdentity messages are ignored.
	OwnerIdentity   string
	StudioName      string
	ReengageKeyword string
	Now             func() time.Time
}

// NewController validates cfg and builds a controller.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Validator == nil {
		panic("conversation: validator cannot be nil")
	}
	if cfg.Inventory == nil {
		panic("conversation: inventory cannot be nil")
	}
	if cfg.Messenger == nil {
		panic("conversation: messenger cannot be nil")
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewMemorySessionStore(DefaultIdleTimeout)
	}
	if cfg.Disengaged == nil {
		cfg.Disengaged = NewDisengagedSet()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.StudioName == "" {
		cfg.StudioName = "the studio"
	}
	keywords := NewKeywordDetector(cfg.ReengageKeyword)
	keyword := strings.ToLower(strings.TrimSpace(cfg.ReengageKeyword))
	if keyword == "" {
		keyword = "prenotazione"
	}
	return &Controller{
		validator:  cfg.Validator,
		inventory:  cfg.Inventory,
		sessions:   cfg.Sessions,
		disengaged: cfg.Disengaged,
		messenger:  cfg.Messenger,
		notifier:   cfg.Notifier,
		keywords:   keywords,
		prompts:    prompts{studio: cfg.StudioName, keyword: keyword, validator: cfg.Validator},
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
		tracer:     otel.Tracer("lessons.internal.conversation"),
		owner:      normalizeIdentity(cfg.OwnerIdentity),
		studio:     cfg.StudioName,
		now:        cfg.Now,
		locks:      make(map[string]*identityLock),
	}
}

// turn is the result of one step handler.
type turn struct {
	replies []string
	// persist stores the mutated state; clear removes it after the replies.
	persist bool
	clear   bool
	booking *booking.Booking
}

func reply(persist bool, texts ...string) turn {
	return turn{replies: texts, persist: persist}
}

// HandleMessage advances the dialogue of msg.From by one message. Business
// outcomes are answered in the conversation; only delivery failures are returned.
func (c *Controller) HandleMessage(ctx context.Context, msg InboundMessage) error {
	identity := normalizeIdentity(msg.From)
	if identity == "" {
		return nil
	}
	if c.owner != "" && identity == c.owner {
		c.logger.Debug("ignoring message from owner", "identity", identity)
		return nil
	}

	unlock := c.lock(identity)
	defer unlock()

	ctx, span := c.tracer.Start(ctx, "conversation.handle_message")
	defer span.End()

	body := strings.TrimSpace(msg.Body)

	if c.disengaged.Contains(identity) {
		c.observe(StepDisengaged)
		if !c.keywords.IsReengage(body) {
			return c.send(ctx, msg, c.prompts.disengaged())
		}
		c.disengaged.Remove(identity)
		c.sessions.Set(identity, State{Step: StepAskDiscipline})
		c.logger.Info("identity re-engaged", "identity", identity)
		return c.send(ctx, msg, c.prompts.askDiscipline())
	}

	state, ok := c.sessions.Get(identity)
	if !ok || c.keywords.IsReset(body) {
		return c.start(ctx, identity, msg)
	}
	span.SetAttributes(attribute.String("conversation.step", string(state.Step)))
	c.observe(state.Step)

	if !state.Step.expectsName() && c.keywords.IsCancel(body) {
		return c.disengage(ctx, identity, msg)
	}

	var t turn
	switch state.Step {
	case StepNew:
		t = c.handleNew(&state, body)
		if t.clear && !t.persist {
			return c.disengage(ctx, identity, msg)
		}
	case StepAskDiscipline:
		t = c.handleDiscipline(&state, body)
	case StepAskDayTime:
		t = c.handleDayTime(&state, body)
	case StepAskDate:
		t = c.handleDate(&state, body)
	case StepAskName:
		t = c.handleName(&state, body, StepAskSurname, msgAskSurname)
	case StepAskSurname:
		t = c.handleSurname(&state, body, StepAskPhone, msgAskPhone)
	case StepAskPhone:
		t = c.handlePhone(&state, body, StepConfirm)
	case StepConfirm:
		t = c.handleConfirm(ctx, identity, &state, body)
	case StepModify:
		t = c.handleModifyChoice(&state, body)
	case StepModifyDiscipline, StepModifyDay, StepModifyTime, StepModifyDate,
		StepModifyName, StepModifySurname, StepModifyPhone:
		t = c.handleModify(&state, body)
	default:
		c.logger.Warn("conversation in unknown step, resetting", "identity", identity, "step", state.Step)
		c.sessions.Clear(identity)
		return c.send(ctx, msg, msgGenericError)
	}

	return c.apply(ctx, identity, msg, state, t)
}

// apply performs the side effects of a turn in order: state, replies,
// notification, clear.
func (c *Controller) apply(ctx context.Context, identity string, msg InboundMessage, state State, t turn) error {
	if t.persist {
		c.sessions.Set(identity, state)
	}
	var sendErr error
	for _, text := range t.replies {
		if err := c.send(ctx, msg, text); err != nil && sendErr == nil {
			sendErr = err
		}
	}
	if t.booking != nil && c.notifier != nil {
		if err := c.notifier.NotifyBooking(ctx, *t.booking); err != nil {
			c.logger.Error("booking notification failed", "error", err, "identity", identity,
				"reference", t.booking.Reference)
		}
	}
	if t.clear || state.Step.Terminal() {
		c.sessions.Clear(identity)
	}
	return sendErr
}

func (c *Controller) start(ctx context.Context, identity string, msg InboundMessage) error {
	c.observe(StepNew)
	if c.keywords.IsReengage(msg.Body) {
		c.sessions.Set(identity, State{Step: StepAskDiscipline})
		return c.send(ctx, msg, c.prompts.askDiscipline())
	}
	c.sessions.Set(identity, State{Step: StepNew})
	return c.send(ctx, msg, c.prompts.greeting())
}

func (c *Controller) disengage(ctx context.Context, identity string, msg InboundMessage) error {
	c.sessions.Clear(identity)
	c.disengaged.Add(identity)
	c.logger.Info("identity disengaged", "identity", identity)
	return c.send(ctx, msg, c.prompts.disengaged())
}

func (c *Controller) handleNew(state *State, body string) turn {
	switch {
	case c.keywords.IsYes(body):
		state.Step = StepAskDiscipline
		return reply(true, c.prompts.askDiscipline())
	case c.keywords.IsNo(body):
		return turn{clear: true}
	}
	return reply(true, msgYesNo+" "+c.prompts.greeting())
}

func (c *Controller) handleDiscipline(state *State, body string) turn {
	discipline := c.validator.NormalizeDiscipline(body)
	if !c.validator.Catalog().Known(discipline) {
		return reply(true, c.prompts.unknownDiscipline(body))
	}
	state.Fields.Discipline = discipline
	state.Step = StepAskDayTime
	return reply(true, c.prompts.askDayTime(discipline))
}

func (c *Controller) handleDayTime(state *State, body string) turn {
	discipline := state.Fields.Discipline
	wd, hhmm, err := schedule.ParseDayTime(body)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidTime) {
			if times := c.validator.TimesFor(wd, discipline); len(times) > 0 {
				return reply(true, fmt.Sprintf("Which time on %s? Available: %s.", wd, strings.Join(times, ", ")))
			}
		}
		return reply(true, c.prompts.badDayTime(discipline))
	}
	res := c.validator.CheckDayTime(wd, discipline, hhmm)
	if !res.OK {
		return reply(true, res.Message)
	}
	state.Fields.Weekday = wd.String()
	state.Fields.Time = hhmm
	state.Step = StepAskDate
	return reply(true, c.prompts.askDate(wd))
}

func (c *Controller) handleDate(state *State, body string) turn {
	date, err := c.validator.ParseDate(body)
	if err != nil {
		return reply(true, c.prompts.badDate())
	}
	res := c.validator.ValidateBooking(date, state.Fields.Weekday, state.Fields.Discipline, state.Fields.Time)
	if !res.OK {
		return reply(true, res.Message)
	}
	state.Fields.Date = res.Date
	state.Fields.Weekday = res.Weekday.String()
	state.Step = StepAskName
	return reply(true, msgAskName)
}

func (c *Controller) handleName(state *State, body string, next Step, prompt string) turn {
	name, ok := schedule.NormalizeName(body)
	if !ok {
		return reply(true, msgBadName+" "+msgAskName)
	}
	state.Fields.Name = name
	state.Step = next
	return reply(true, prompt)
}

func (c *Controller) handleSurname(state *State, body string, next Step, prompt string) turn {
	surname, ok := schedule.NormalizeName(body)
	if !ok {
		return reply(true, msgBadName+" "+msgAskSurname)
	}
	state.Fields.Surname = surname
	state.Step = next
	return reply(true, prompt)
}

func (c *Controller) handlePhone(state *State, body string, next Step) turn {
	phone, ok := schedule.NormalizePhone(body)
	if !ok {
		return reply(true, msgBadPhone)
	}
	state.Fields.Phone = phone
	state.Step = next
	return reply(true, c.prompts.confirm(state.Fields))
}

func (c *Controller) handleConfirm(ctx context.Context, identity string, state *State, body string) turn {
	switch {
	case c.keywords.IsYes(body):
		state.Step = StepModify
		return reply(true, c.prompts.modifyMenu())
	case c.keywords.IsNo(body):
		return c.reserve(ctx, identity, state)
	}
	return reply(true, msgYesNo+" "+msgConfirmAsk)
}

func (c *Controller) reserve(ctx context.Context, identity string, state *State) turn {
	fields := state.Fields
	if !fields.Complete() {
		c.logger.Warn("confirmation reached with missing fields", "identity", identity)
		state.Step = StepFailed
		return reply(true, msgGenericError)
	}
	slot, err := c.inventory.Reserve(ctx, fields.Date, fields.Time, fields.Discipline)
	switch {
	case err == nil:
		b := booking.New(identity, fields, slot.RemainingSeats, c.now())
		state.Step = StepDone
		c.logger.Info("booking completed", "identity", identity, "reference", b.Reference,
			"date", fields.Date, "time", fields.Time, "discipline", fields.Discipline)
		replies := []string{c.prompts.booked(b)}
		if reminder, err := booking.Render(booking.TemplateReminder, b, c.studio); err == nil {
			replies = append(replies, reminder)
		}
		return turn{replies: replies, persist: true, booking: &b}
	case errors.Is(err, inventory.ErrNoCapacity), errors.Is(err, inventory.ErrSlotNotFound):
		text := c.prompts.full(fields)
		if errors.Is(err, inventory.ErrSlotNotFound) {
			text = c.prompts.slotMissing(fields)
		}
		state.Fields.Weekday, state.Fields.Time, state.Fields.Date = "", "", ""
		state.Step = StepAskDayTime
		return reply(true, text)
	default:
		c.logger.Error("reservation failed", "error", err, "identity", identity, "date", fields.Date)
		state.Step = StepFailed
		return reply(true, msgRetryLater)
	}
}

func (c *Controller) handleModifyChoice(state *State, body string) turn {
	if c.keywords.IsBack(body) || c.keywords.IsNo(body) {
		state.Step = StepConfirm
		return reply(true, c.prompts.confirm(state.Fields))
	}
	step, ok := parseModifyChoice(body)
	if !ok {
		return reply(true, c.prompts.modifyMenu())
	}
	state.Step = step
	return reply(true, c.prompts.modifyPrompt(step, state.Fields))
}

// handleModify re-validates the changed field against the rest of the booking
// and keeps the previous value when the new one does not fit.
func (c *Controller) handleModify(state *State, body string) turn {
	if c.keywords.IsBack(body) {
		state.Step = StepConfirm
		return reply(true, c.prompts.confirm(state.Fields))
	}

	candidate := state.Fields
	retry := func(text string) turn {
		return reply(true, text+" Reply \"back\" to keep the current value.")
	}

	switch state.Step {
	case StepModifyDiscipline:
		discipline := c.validator.NormalizeDiscipline(body)
		if !c.validator.Catalog().Known(discipline) {
			return retry(c.prompts.unknownDiscipline(body))
		}
		candidate.Discipline = discipline
	case StepModifyDay:
		wd, ok := schedule.ParseWeekday(firstWord(body))
		if !ok {
			return retry("I couldn't read a day of the week.")
		}
		candidate.Date = schedule.NextOccurrence(wd, c.validator.Today()).Format(schedule.ISODate)
		candidate.Weekday = wd.String()
	case StepModifyTime:
		hhmm, err := schedule.ParseClock(body)
		if err != nil {
			return retry("I couldn't read that time. Please use HH:MM.")
		}
		candidate.Time = hhmm
	case StepModifyDate:
		date, err := c.validator.ParseDate(body)
		if err != nil {
			return retry(c.prompts.badDate())
		}
		candidate.Date = date.Format(schedule.ISODate)
	case StepModifyName, StepModifySurname:
		name, ok := schedule.NormalizeName(body)
		if !ok {
			return retry(msgBadName)
		}
		if state.Step == StepModifyName {
			candidate.Name = name
		} else {
			candidate.Surname = name
		}
	case StepModifyPhone:
		phone, ok := schedule.NormalizePhone(body)
		if !ok {
			return retry(msgBadPhone)
		}
		candidate.Phone = phone
	}

	date, err := time.ParseInLocation(schedule.ISODate, candidate.Date, c.validator.Location())
	if err != nil {
		return retry(c.prompts.badDate())
	}
	res := c.validator.ValidateBooking(date, candidate.Weekday, candidate.Discipline, candidate.Time)
	if !res.OK {
		return retry(res.Message)
	}
	candidate.Date = res.Date
	candidate.Weekday = res.Weekday.String()

	state.Fields = candidate
	state.Step = StepConfirm
	return reply(true, "Updated. "+c.prompts.confirm(state.Fields))
}

func (c *Controller) send(ctx context.Context, msg InboundMessage, body string) error {
	err := c.messenger.SendReply(ctx, OutboundReply{
		ConversationID: normalizeIdentity(msg.From),
		To:             msg.From,
		From:           msg.To,
		Body:           body,
	})
	if err != nil {
		c.logger.Error("failed to send reply", "error", err, "identity", msg.From)
		return fmt.Errorf("%w: %v", ErrReplyFailed, err)
	}
	return nil
}

func (c *Controller) observe(step Step) {
	if c.recorder != nil {
		c.recorder.ObserveMessage(string(step))
	}
}

func (c *Controller) lock(identity string) func() {
	c.locksMu.Lock()
	l, ok := c.locks[identity]
	if !ok {
		l = &identityLock{}
		c.locks[identity] = l
	}
	l.refs++
	c.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, identity)
		}
		c.locksMu.Unlock()
	}
}

func normalizeIdentity(identity string) string {
	return strings.TrimSpace(identity)
}

func firstWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
