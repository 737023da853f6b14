package booking

import (
	"github.com/wolfman30/lesson-booking-agent/internal/messaging/templates"
)

// Template names understood by Render.
const (
	TemplateSummary  = "summary"
	TemplateReminder = "reminder"
	TemplateOwnerSMS = "owner_sms"
	TemplateEmail    = "email"
	TemplateSubject  = "email_subject"
)

var library = templates.MustLibrary(map[string]string{
	TemplateSummary: "Lesson: {{.Details.Discipline}}\n" +
		"Date: {{.Date}}\n" +
		"Time: {{.Details.Time}}\n" +
		"Name: {{.Details.Name}}\n" +
		"Surname: {{.Details.Surname}}\n" +
		"Phone: {{.Details.Phone}}",
	TemplateReminder: "Reminder: {{.Details.Discipline}} on {{.Date}} at {{.Details.Time}}. " +
		"Booking reference {{.Reference}}. See you at {{.Studio}}!",
	TemplateOwnerSMS: "New booking {{.Reference}}: {{.FullName}} ({{.Details.Phone}}) " +
		"{{.Details.Discipline}} {{.Date}} {{.Details.Time}}. Seats left: {{.RemainingSeats}}.",
	TemplateSubject: "New booking: {{.Details.Discipline}} {{.Date}} {{.Details.Time}}",
	TemplateEmail: "A new lesson has been booked at {{.Studio}}.\n\n" +
		"Reference: {{.Reference}}\n" +
		"Lesson: {{.Details.Discipline}}\n" +
		"Date: {{.Date}}\n" +
		"Time: {{.Details.Time}}\n" +
		"Name: {{.FullName}}\n" +
		"Phone: {{.Details.Phone}}\n" +
		"Contact: {{.Identity}}\n" +
		"Seats left: {{.RemainingSeats}}\n",
})

type view struct {
	Booking
	Date     string
	FullName string
	Studio   string
}

// Render renders one of the booking templates for b.
func Render(name string, b Booking, studio string) (string, error) {
	if studio == "" {
		studio = "the studio"
	}
	return library.Render(name, view{Booking: b, Date: b.DisplayDate(), FullName: b.FullName(), Studio: studio})
}

// Summary renders the collected details for the confirmation step.
func Summary(d Details) string {
	out, err := Render(TemplateSummary, Booking{Details: d}, "")
	if err != nil {
		return ""
	}
	return out
}
