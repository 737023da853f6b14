package conversation

import (
	"time"

	"github.com/wolfman30/lesson-booking-agent/internal/booking"
)

// Step is the position of a conversation in the booking dialogue.
type Step string

const (
	StepNew              Step = "new"
	StepAskDiscipline    Step = "ask_discipline"
	StepAskDayTime       Step = "ask_day_time"
	StepAskDate          Step = "ask_date"
	StepAskName          Step = "ask_name"
	StepAskSurname       Step = "ask_surname"
	StepAskPhone         Step = "ask_phone"
	StepConfirm          Step = "confirm"
	StepModify           Step = "modify"
	StepModifyDiscipline Step = "modify_discipline"
	StepModifyDay        Step = "modify_day"
	StepModifyTime       Step = "modify_time"
	StepModifyDate       Step = "modify_date"
	StepModifyName       Step = "modify_name"
	StepModifySurname    Step = "modify_surname"
	StepModifyPhone      Step = "modify_phone"
	StepDone             Step = "done"
	StepFailed           Step = "failed"

	// StepDisengaged is reported for identities in the DisengagedSet; it is never stored.
	StepDisengaged Step = "disengaged"
)

// Terminal reports whether no further input is expected.
func (s Step) Terminal() bool {
	return s == StepDone || s == StepFailed
}

// expectsName reports whether the step reads a first name or surname, where a
// bare "stop" or "cancel" is taken as the answer.
func (s Step) expectsName() bool {
	switch s {
	case StepAskName, StepAskSurname, StepModifyName, StepModifySurname:
		return true
	}
	return false
}

// State is the dialogue progress of one identity.
type State struct {
	Identity    string          `json:"identity"`
	Step        Step            `json:"step"`
	Fields      booking.Details `json:"fields"`
	LastUpdated time.Time       `json:"last_updated"`
}

// modifiable fields, in the order they are offered.
var modifySteps = []struct {
	step     Step
	label    string
	keywords []string
}{
	{StepModifyDiscipline, "lesson", []string{"lesson", "discipline", "class", "corso", "disciplina", "lezione"}},
	{StepModifyDay, "day", []string{"day", "weekday", "giorno"}},
	{StepModifyTime, "time", []string{"time", "hour", "ora", "orario"}},
	{StepModifyDate, "date", []string{"date", "data"}},
	{StepModifyName, "name", []string{"name", "first name", "nome"}},
	{StepModifySurname, "surname", []string{"surname", "last name", "cognome"}},
	{StepModifyPhone, "phone", []string{"phone", "number", "telefono", "cellulare"}},
}
