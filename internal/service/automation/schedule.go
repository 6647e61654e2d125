package automation

import (
	"time"

	"github.com/mact/ops-server/internal/domain"
)

type scheduleStep struct {
	Day      int
	Template string
}

// The fixed cadence of each automation type, in days after the anchor date.
// Quote sequences switch to a weekly recurring reminder once the fixed steps
// are exhausted; COD sequences stop after the last step.
var (
	quoteSchedule = []scheduleStep{
		{Day: 2, Template: "quote-followup-day2"},
		{Day: 4, Template: "quote-followup-day4"},
		{Day: 7, Template: "quote-followup-day7"},
	}
	quoteRecurringTemplate = "quote-followup-weekly"
	quoteRecurringInterval = 7 * 24 * time.Hour

	codSchedule = []scheduleStep{
		{Day: 1, Template: "cod-followup-day1"},
		{Day: 3, Template: "cod-followup-day3"},
		{Day: 7, Template: "cod-followup-day7"},
		{Day: 14, Template: "cod-followup-day14"},
	}
)

func scheduleFor(t domain.AutomationType) []scheduleStep {
	if t == domain.AutomationCODFollowup {
		return codSchedule
	}
	return quoteSchedule
}

// FirstActionAt returns the date of the first reminder for a newly created
// automation anchored at anchor.
func FirstActionAt(t domain.AutomationType, anchor time.Time) time.Time {
	steps := scheduleFor(t)
	return anchor.AddDate(0, 0, steps[0].Day)
}

// TemplateNameFor resolves the template for the reminder about to be sent,
// given how many reminders went out already. An empty string means the
// sequence is exhausted and the automation should be retired instead of
// sending.
func TemplateNameFor(t domain.AutomationType, reminderCount, quoteMax int) string {
	steps := scheduleFor(t)
	if reminderCount < len(steps) {
		return steps[reminderCount].Template
	}
	if t == domain.AutomationQuoteFollowup && reminderCount < quoteMax {
		return quoteRecurringTemplate
	}
	return ""
}

// NextActionAt computes the next reminder date after a send. reminderCount is
// the count including the reminder that just went out. A nil return means no
// further reminders are scheduled.
func NextActionAt(t domain.AutomationType, anchor time.Time, reminderCount, quoteMax int, sentAt time.Time) *time.Time {
	steps := scheduleFor(t)
	if reminderCount < len(steps) {
		next := anchor.AddDate(0, 0, steps[reminderCount].Day)
		return &next
	}
	if t == domain.AutomationQuoteFollowup && reminderCount < quoteMax {
		next := sentAt.Add(quoteRecurringInterval)
		return &next
	}
	return nil
}
