package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/lesson-booking-agent/internal/booking"
	"github.com/wolfman30/lesson-booking-agent/internal/schedule"
)

const (
	msgRetryLater   = "Sorry, we could not complete your booking right now. Please try again in a few minutes."
	msgGenericError = "Sorry, something went wrong. Let's start again: send any message to begin a new booking."
	msgAskName      = "What is your first name?"
	msgAskSurname   = "What is your surname?"
	msgAskPhone     = "What is your phone number? (10 to 15 digits)"
	msgBadName      = "Please use letters and spaces only."
	msgBadPhone     = "That does not look like a phone number. Please send 10 to 15 digits, e.g. 3331234567."
	msgConfirmAsk   = "Do you want to change anything? Reply yes to edit or no to confirm the booking."
	msgYesNo        = "Please reply yes or no."
)

// prompts renders every reply of the dialogue.
type prompts struct {
	studio    string
	keyword   string
	validator *schedule.Validator
}

func (p prompts) greeting() string {
	return fmt.Sprintf("Hi! Welcome to %s. Would you like to book a lesson? (yes/no)", p.studio)
}

func (p prompts) disengaged() string {
	return fmt.Sprintf("No problem. Write \"%s\" whenever you want to book a lesson.", p.keyword)
}

func (p prompts) askDiscipline() string {
	return fmt.Sprintf("Which lesson would you like to book? We offer: %s.",
		strings.Join(p.validator.Catalog().Names(), ", "))
}

// unknownDiscipline lists each lesson with one shorter name it can be booked by.
func (p prompts) unknownDiscipline(text string) string {
	catalog := p.validator.Catalog()
	options := make([]string, 0, len(catalog.Names()))
	for _, name := range catalog.Names() {
		option := name
		for _, alias := range catalog.Aliases(name) {
			if alias != strings.ToLower(name) {
				option = fmt.Sprintf("%s (or \"%s\")", name, alias)
				break
			}
		}
		options = append(options, option)
	}
	return fmt.Sprintf("Sorry, we don't offer \"%s\". Which lesson would you like to book? You can write: %s.",
		strings.TrimSpace(text), strings.Join(options, ", "))
}

func (p prompts) timetable(discipline string) string {
	days := p.validator.WeekdaysFor(discipline)
	parts := make([]string, 0, len(days))
	for _, wd := range days {
		parts = append(parts, fmt.Sprintf("%s %s", wd, strings.Join(p.validator.TimesFor(wd, discipline), ", ")))
	}
	return fmt.Sprintf("%s is held on: %s.", discipline, strings.Join(parts, "; "))
}

func (p prompts) askDayTime(discipline string) string {
	return p.timetable(discipline) + " Which day and time would you like? (e.g. Monday 09:30)"
}

func (p prompts) badDayTime(discipline string) string {
	return "I couldn't read a day and a time. " + p.askDayTime(discipline)
}

func (p prompts) askDate(wd time.Weekday) string {
	next := schedule.NextOccurrence(wd, p.validator.Today())
	return fmt.Sprintf("On which date? The next %s is %s. (dd/mm/yyyy or e.g. 19 October)", wd, next.Format("02/01/2006"))
}

func (p prompts) badDate() string {
	return "I couldn't read that date. " + schedule.DateFormatHint
}

func (p prompts) confirm(d booking.Details) string {
	return "Here is your booking:\n" + booking.Summary(d) + "\n\n" + msgConfirmAsk
}

func (p prompts) modifyMenu() string {
	lines := make([]string, 0, len(modifySteps))
	for i, option := range modifySteps {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, option.label))
	}
	return "What would you like to change? Reply with a number or a field name (or \"back\"):\n" + strings.Join(lines, "\n")
}

func (p prompts) modifyPrompt(step Step, d booking.Details) string {
	switch step {
	case StepModifyDiscipline:
		return p.askDiscipline()
	case StepModifyDay:
		return fmt.Sprintf("Which day would you like instead? %s", p.timetable(d.Discipline))
	case StepModifyTime:
		return fmt.Sprintf("Which time would you like instead? %s", p.timetable(d.Discipline))
	case StepModifyDate:
		return "Which date would you like instead? (dd/mm/yyyy or e.g. 19 October)"
	case StepModifyName:
		return msgAskName
	case StepModifySurname:
		return msgAskSurname
	case StepModifyPhone:
		return msgAskPhone
	}
	return p.modifyMenu()
}

func (p prompts) full(d booking.Details) string {
	return fmt.Sprintf("Sorry, the %s lesson on %s at %s is fully booked. %s",
		d.Discipline, booking.DisplayDate(d.Date), d.Time, p.askDayTime(d.Discipline))
}

func (p prompts) slotMissing(d booking.Details) string {
	return fmt.Sprintf("Sorry, there is no %s lesson on %s at %s any more. %s",
		d.Discipline, booking.DisplayDate(d.Date), d.Time, p.askDayTime(d.Discipline))
}

func (p prompts) booked(b booking.Booking) string {
	return fmt.Sprintf("Your booking is confirmed! %s on %s at %s. Reference: %s.",
		b.Details.Discipline, b.DisplayDate(), b.Details.Time, b.Reference)
}
