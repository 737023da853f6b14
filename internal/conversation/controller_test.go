package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lesson-booking-agent/internal/booking"
	"github.com/wolfman30/lesson-booking-agent/internal/inventory"
	"github.com/wolfman30/lesson-booking-agent/internal/schedule"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

// 2026-10-14 is a Wednesday.
var fixedNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

type recordingMessenger struct {
	mu      sync.Mutex
	replies map[string][]string
	fail    error
}

func (m *recordingMessenger) SendReply(_ context.Context, reply OutboundReply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if m.replies == nil {
		m.replies = make(map[string][]string)
	}
	m.replies[reply.To] = append(m.replies[reply.To], reply.Body)
	return nil
}

func (m *recordingMessenger) count(to string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replies[to])
}

func (m *recordingMessenger) since(to string, n int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.replies[to][n:]...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	bookings []booking.Booking
	err      error
}

func (n *recordingNotifier) NotifyBooking(_ context.Context, b booking.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bookings = append(n.bookings, b)
	return n.err
}

func (n *recordingNotifier) all() []booking.Booking {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]booking.Booking(nil), n.bookings...)
}

type stubReserver struct {
	err error
}

func (s stubReserver) Reserve(context.Context, string, string, string) (inventory.Slot, error) {
	return inventory.Slot{}, s.err
}

type harness struct {
	t          *testing.T
	controller *Controller
	messenger  *recordingMessenger
	notifier   *recordingNotifier
	sessions   *MemorySessionStore
	inventory  *inventory.Coordinator
	clock      *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newHarness(t *testing.T, reserver Reserver) *harness {
	t.Helper()
	clock := &fakeClock{now: fixedNow}
	tmpl := schedule.DefaultTemplate()
	validator := schedule.NewValidator(tmpl, nil,
		schedule.WithLocation(time.UTC), schedule.WithClock(clock.Now))
	coordinator := inventory.NewCoordinator(inventory.NewMemoryStore(1000), tmpl,
		inventory.WithLocation(time.UTC), inventory.WithLogger(logging.Discard()))
	if reserver == nil {
		reserver = coordinator
	}
	sessions := NewMemorySessionStore(DefaultIdleTimeout, WithSessionClock(clock.Now))
	t.Cleanup(sessions.Close)

	h := &harness{
		t:         t,
		messenger: &recordingMessenger{},
		notifier:  &recordingNotifier{},
		sessions:  sessions,
		inventory: coordinator,
		clock:     clock,
	}
	h.controller = NewController(ControllerConfig{
		Validator:       validator,
		Inventory:       reserver,
		Sessions:        sessions,
		Messenger:       h.messenger,
		Notifier:        h.notifier,
		Logger:          logging.Discard(),
		OwnerIdentity:   "+390000000000",
		StudioName:      "Studio Test",
		ReengageKeyword: "prenotazione",
		Now:             clock.Now,
	})
	return h
}

// say delivers body from identity and returns the replies it produced.
func (h *harness) say(from, body string) []string {
	h.t.Helper()
	before := h.messenger.count(from)
	err := h.controller.HandleMessage(context.Background(), InboundMessage{From: from, To: "+391111111111", Body: body})
	require.NoError(h.t, err)
	return h.messenger.since(from, before)
}

func (h *harness) step(identity string) Step {
	state, ok := h.sessions.Get(identity)
	if !ok {
		return ""
	}
	return state.Step
}

// toConfirm walks identity through the dialogue up to the confirmation step
// for the Monday 19/10/2026 18:30 reformer lesson.
func (h *harness) toConfirm(identity string) {
	h.t.Helper()
	for _, body := range []string{"hi", "yes", "reformer", "monday 18:30", "19/10/2026", "Anna", "Rossi", "333 123 4567"} {
		h.say(identity, body)
	}
	require.Equal(h.t, StepConfirm, h.step(identity))
}

func TestControllerHappyPath(t *testing.T) {
	h := newHarness(t, nil)
	const id = "+393330000001"

	replies := h.say(id, "hi")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Welcome to Studio Test")
	assert.Equal(t, StepNew, h.step(id))

	replies = h.say(id, "yes")
	assert.Contains(t, replies[0], "Which lesson")
	assert.Equal(t, StepAskDiscipline, h.step(id))

	replies = h.say(id, "reformer please")
	assert.Contains(t, replies[0], "PILATES REFORMER is held on")
	assert.Equal(t, StepAskDayTime, h.step(id))

	replies = h.say(id, "Monday 18:30")
	assert.Contains(t, replies[0], "The next Monday is 19/10/2026")
	assert.Equal(t, StepAskDate, h.step(id))

	replies = h.say(id, "19/10/2026")
	assert.Equal(t, []string{msgAskName}, replies)

	assert.Equal(t, []string{msgAskSurname}, h.say(id, "Anna"))
	assert.Equal(t, []string{msgAskPhone}, h.say(id, "Rossi"))

	replies = h.say(id, "+39 333 123 4567")
	assert.Contains(t, replies[0], "Phone: 393331234567")
	assert.Contains(t, replies[0], "Date: Monday 19/10/2026")
	assert.Equal(t, StepConfirm, h.step(id))

	replies = h.say(id, "no")
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0], "Your booking is confirmed!")
	assert.Contains(t, replies[1], "Reminder: PILATES REFORMER")

	bookings := h.notifier.all()
	require.Len(t, bookings, 1)
	b := bookings[0]
	assert.Equal(t, id, b.Identity)
	assert.Equal(t, booking.Details{
		Discipline: "PILATES REFORMER",
		Weekday:    "Monday",
		Time:       "18:30",
		Date:       "2026-10-19",
		Name:       "Anna",
		Surname:    "Rossi",
		Phone:      "393331234567",
	}, b.Details)
	assert.Equal(t, 5, b.RemainingSeats)
	assert.Contains(t, replies[0], b.Reference)

	_, ok := h.sessions.Get(id)
	assert.False(t, ok, "session should be cleared after booking")

	slots, err := h.inventory.AvailableSlots(context.Background(), "2026-10-19")
	require.NoError(t, err)
	for _, s := range slots {
		if s.Discipline == "PILATES REFORMER" {
			assert.Equal(t, 5, s.RemainingSeats)
		}
	}
}

func TestControllerRejectsInvalidAnswers(t *testing.T) {
	h := newHarness(t, nil)
	const id = "+393330000002"
	h.say(id, "hi")
	h.say(id, "yes")

	replies := h.say(id, "zumba")
	assert.Contains(t, replies[0], `we don't offer "zumba"`)
	assert.Contains(t, replies[0], `PILATES REFORMER (or "reformer")`)
	assert.Equal(t, StepAskDiscipline, h.step(id))

	h.say(id, "reformer")

	replies = h.say(id, "saturday 10:00")
	assert.Contains(t, replies[0], "There are no lessons on Saturday")
	assert.Equal(t, StepAskDayTime, h.step(id))

	replies = h.say(id, "tuesday 18:00")
	assert.Contains(t, replies[0], "PILATES REFORMER is not held on Tuesday")

	replies = h.say(id, "monday 10:00")
	assert.Contains(t, replies[0], "There is no PILATES REFORMER lesson at 10:00 on Monday")

	replies = h.say(id, "monday")
	assert.Contains(t, replies[0], "Available: 18:30")

	h.say(id, "monday 18:30")

	replies = h.say(id, "20/10/2026")
	assert.Contains(t, replies[0], "20/10/2026 is a Tuesday, not a Monday.")
	assert.Equal(t, StepAskDate, h.step(id))

	replies = h.say(id, "12/10/2026")
	assert.Contains(t, replies[0], "in the past")

	replies = h.say(id, "next week")
	assert.Contains(t, replies[0], "I couldn't read that date")

	h.say(id, "19 ottobre")
	assert.Equal(t, StepAskName, h.step(id))

	replies = h.say(id, "R2D2")
	assert.Contains(t, replies[0], msgBadName)
	assert.Equal(t, StepAskName, h.step(id))

	h.say(id, "Anna Maria")
	h.say(id, "Rossi")

	replies = h.say(id, "12345")
	assert.Equal(t, []string{msgBadPhone}, replies)
	assert.Equal(t, StepAskPhone, h.step(id))

	state, ok := h.sessions.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Anna Maria", state.Fields.Name)
	assert.Equal(t, "2026-10-19", state.Fields.Date)
}

func TestControllerGreetingNeedsYesOrNo(t *testing.T) {
	h := newHarness(t, nil)
	const id = "+393330000003"
	h.say(id, "hello")

	replies := h.say(id, "maybe")
	assert.True(t, strings.HasPrefix(replies[0], msgYesNo))
	assert.Equal(t, StepNew, h.step(id))
}

func TestControllerDisengageAndReengage(t *testing.T) {
	h := newHarness(t, nil)
	const id = "+393330000004"
	h.say(id, "hello")

	replies := h.say(id, "no thanks")
	assert.Contains(t, replies[0], `Write "prenotazione"`)
	assert.Equal(t, Step(""), h.step(id))

	replies = h.say(id, "hello again")
	assert.Contains(t, replies[0], `Write "prenotazione"`)
	assert.Equal(t, Step(""), h.step(id))

	replies = h.say(id, "vorrei fare una prenotazione")
	assert.Contains(t, replies[0], "Which lesson")
	assert.Equal(t, StepAskDiscipline, h.step(id))
}

func TestControllerCancelMidDialogueDisengages(t *testing.T) {
	h := newHarness(t, nil)
	const id = "+393330000005"
	h.say(id, "hi")
	h.say(id, "yes")
	h.say(id, "yoga")

	replies := h.say(id, "stop")
	assert.Contains(t, replies[0], "No problem")
	assert.Equal(t, Step(""), h.step(id))
	assert.Empty(t, h.notifier.all())
}

func TestControllerNameStepsAcceptStopAsAnswer(t *testing.T) {
	h := newHarness(t, nil)
	const id = "+393330000015"
	for _, body := range []string{"hi", "yes", "reformer", "monday 18:30", "19/10/2026", "Anna"} {
		h.say(id, body)
	}
	require.Equal(t, StepAskSurname, h.step(id))

	assert.Equal(t, []string{msgAskPhone}, h.say(id, "Stop"))
	state, ok := h.sessions.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Stop", state.Fields.Surname)
	assert.Equal(t, StepAskPhone, state.Step)

	replies := h.say(id, "stop")
	assert.Contains(t, replies[0], "No problem")
	assert.Equal(t, Step(""), h.step(id))
}

func TestControllerIncompleteConfirmationIsNotReserved(t *testing.T) {
	h := newHarness(t, nil)
	const id = "+393330000016"
	h.sessions.Set(id, State{Step: StepConfirm, Fields: booking.Details{
		Discipline: "PILATES REFORMER",
		Weekday:    "Monday",
		Time:       "18:30",
		Date:       "2026-10-19",
	}})

	assert.Equal(t, []string{msgGenericError}, h.say(id, "no"))
	assert.Equal(t, Step(""), h.step(id))
	assert.Empty(t, h.notifier.all())

	slots, err := h.inventory.AvailableSlots(context.Background(), "2026-10-19")
	require.NoError(t, err)
	assert.Empty(t, slots, "no reservation should touch the day")
}

func TestControllerKeywordInFirstMessageSkipsGreeting(t *testing.T) {
	h := newHarness(t, nil)
	const id = "+393330000006"

	replies := h.say(id, "Prenotazione")
	assert.Contains(t, replies[0], "Which lesson")
	assert.Equal(t, StepAskDiscipline, h.step(id))
}

func TestControllerResetStartsOver(t *testing.T) {
	h := newHarness(t, nil)
	const id = "+393330000007"
	h.say(id, "hi")
	h.say(id, "yes")
	h.say(id, "yoga")

	replies := h.say(id, "reset")
	assert.Contains(t, replies[0], "Welcome to Studio Test")
	assert.Equal(t, StepNew, h.step(id))
}

func TestControllerIgnoresOwner(t *testing.T) {
	h := newHarness(t, nil)

	replies := h.say("+390000000000", "hi")
	assert.Empty(t, replies)
	assert.Equal(t, Step(""), h.step("+390000000000"))
}

func TestControllerIdleEvictionRestartsDialogue(t *testing.T) {
	h := newHarness(t, nil)
	const id = "+393330000008"
	h.say(id, "hi")
	h.say(id, "yes")
	h.say(id, "yoga")

	h.clock.Advance(DefaultIdleTimeout + time.Second)

	replies := h.say(id, "monday 19:30")
	assert.Contains(t, replies[0], "Welcome to Studio Test")
	assert.Equal(t, StepNew, h.step(id))
}

func TestControllerModifyFields(t *testing.T) {
	h := newHarness(t, nil)
	const id = "+393330000009"
	h.toConfirm(id)

	replies := h.say(id, "yes")
	assert.Contains(t, replies[0], "What would you like to change?")
	assert.Equal(t, StepModify, h.step(id))

	h.say(id, "3")
	assert.Equal(t, StepModifyTime, h.step(id))

	replies = h.say(id, "19:30")
	assert.Contains(t, replies[0], "There is no PILATES REFORMER lesson at 19:30 on Monday")
	assert.Contains(t, replies[0], `"back"`)
	assert.Equal(t, StepModifyTime, h.step(id))

	replies = h.say(id, "back")
	assert.Contains(t, replies[0], "Here is your booking")
	assert.Equal(t, StepConfirm, h.step(id))

	h.say(id, "yes")
	h.say(id, "change the day")
	assert.Equal(t, StepModifyDay, h.step(id))

	replies = h.say(id, "friday")
	assert.Contains(t, replies[0], "There is no PILATES REFORMER lesson at 18:30 on Friday")

	replies = h.say(id, "wednesday")
	assert.Contains(t, replies[0], "Updated.")
	assert.Equal(t, StepConfirm, h.step(id))

	h.say(id, "yes")
	h.say(id, "last name")
	assert.Equal(t, StepModifySurname, h.step(id))
	h.say(id, "Bianchi")

	h.say(id, "yes")
	h.say(id, "lesson")
	replies = h.say(id, "yoga")
	assert.Contains(t, replies[0], "YOGA is not held on Wednesday")

	h.say(id, "back")
	state, ok := h.sessions.Get(id)
	require.True(t, ok)
	assert.Equal(t, booking.Details{
		Discipline: "PILATES REFORMER",
		Weekday:    "Wednesday",
		Time:       "18:30",
		Date:       "2026-10-14",
		Name:       "Anna",
		Surname:    "Bianchi",
		Phone:      "3331234567",
	}, state.Fields)

	replies = h.say(id, "no")
	assert.Contains(t, replies[0], "Your booking is confirmed!")
	require.Len(t, h.notifier.all(), 1)
	assert.Equal(t, "2026-10-14", h.notifier.all()[0].Details.Date)
}

func TestControllerNoCapacityReturnsToDayTime(t *testing.T) {
	h := newHarness(t, stubReserver{err: inventory.ErrNoCapacity})
	const id = "+393330000010"
	h.toConfirm(id)

	replies := h.say(id, "no")
	assert.Contains(t, replies[0], "fully booked")
	assert.Equal(t, StepAskDayTime, h.step(id))

	state, _ := h.sessions.Get(id)
	assert.Equal(t, "PILATES REFORMER", state.Fields.Discipline)
	assert.Empty(t, state.Fields.Date)
	assert.Empty(t, state.Fields.Time)
	assert.Equal(t, "Anna", state.Fields.Name)
	assert.Empty(t, h.notifier.all())
}

func TestControllerStoreFailureEndsDialogue(t *testing.T) {
	h := newHarness(t, stubReserver{err: inventory.ErrTxExhausted})
	const id = "+393330000011"
	h.toConfirm(id)

	replies := h.say(id, "no")
	assert.Equal(t, []string{msgRetryLater}, replies)
	assert.Equal(t, Step(""), h.step(id))
	assert.Empty(t, h.notifier.all())
}

func TestControllerNotifierFailureDoesNotBreakBooking(t *testing.T) {
	h := newHarness(t, nil)
	h.notifier.err = errors.New("smtp down")
	const id = "+393330000012"
	h.toConfirm(id)

	replies := h.say(id, "no")
	assert.Contains(t, replies[0], "Your booking is confirmed!")
}

func TestControllerReplyFailureIsReturned(t *testing.T) {
	h := newHarness(t, nil)
	h.messenger.fail = errors.New("twilio down")

	err := h.controller.HandleMessage(context.Background(), InboundMessage{From: "+393330000013", Body: "hi"})
	require.ErrorIs(t, err, ErrReplyFailed)
}

func TestControllerConcurrentConfirmationsNeverOversell(t *testing.T) {
	h := newHarness(t, nil)
	const contenders = 9 // reformer capacity is 6

	ids := make([]string, contenders)
	for i := range ids {
		ids[i] = fmt.Sprintf("+39333100%04d", i)
		h.toConfirm(ids[i])
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = h.controller.HandleMessage(context.Background(), InboundMessage{From: id, Body: "no"})
		}(id)
	}
	wg.Wait()

	booked, full := 0, 0
	for _, id := range ids {
		for _, r := range h.messenger.since(id, 0) {
			switch {
			case strings.Contains(r, "Your booking is confirmed!"):
				booked++
			case strings.Contains(r, "fully booked"):
				full++
			}
		}
	}
	assert.Equal(t, 6, booked)
	assert.Equal(t, contenders-6, full)
	assert.Len(t, h.notifier.all(), 6)
}

func TestControllerSerializesSameIdentity(t *testing.T) {
	h := newHarness(t, nil)
	const id = "+393330000014"

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.controller.HandleMessage(context.Background(), InboundMessage{From: id, Body: "hi"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, h.messenger.count(id))
	assert.Equal(t, StepNew, h.step(id))
	h.controller.locksMu.Lock()
	defer h.controller.locksMu.Unlock()
	assert.Empty(t, h.controller.locks)
}
