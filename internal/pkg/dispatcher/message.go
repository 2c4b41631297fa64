package dispatcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/subalert/subalert/app/models"
)

// RenderMessage builds the subject and body for a reminder. Template config
// overrides the defaults; {service}, {date} and {price} placeholders are
// substituted in either case.
func RenderMessage(reminder *models.Reminder) (subject, content string) {
	service := "your subscription"
	date := ""
	price := ""
	if sub := reminder.Subscription; sub != nil {
		service = sub.ServiceName
		price = fmt.Sprintf("%s %.2f", sub.Currency, sub.Price)
		if d := targetDateFor(reminder, sub); d != nil {
			date = d.Format("2006-01-02")
		}
	}

	subject = defaultSubject(reminder.Type, service)
	content = defaultBody(reminder.Type, service, date, price)
	if tc := reminder.TemplateConfig; tc != nil {
		if tc.Subject != "" {
			subject = tc.Subject
		}
		if tc.Body != "" {
			content = tc.Body
		}
	}

	replacer := strings.NewReplacer("{service}", service, "{date}", date, "{price}", price)
	return replacer.Replace(subject), replacer.Replace(content)
}

func targetDateFor(reminder *models.Reminder, sub *models.Subscription) *time.Time {
	switch reminder.Type {
	case models.ReminderTypeBilling:
		return sub.NextBillingDate
	case models.ReminderTypeExpiry:
		return sub.EndDate
	default:
		return nil
	}
}

func defaultSubject(reminderType, service string) string {
	switch reminderType {
	case models.ReminderTypeBilling:
		return fmt.Sprintf("Upcoming payment for %s", service)
	case models.ReminderTypeExpiry:
		return fmt.Sprintf("%s is about to expire", service)
	default:
		return fmt.Sprintf("Reminder for %s", service)
	}
}

func defaultBody(reminderType, service, date, price string) string {
	switch reminderType {
	case models.ReminderTypeBilling:
		return fmt.Sprintf("%s renews on %s for %s.", service, date, price)
	case models.ReminderTypeExpiry:
		return fmt.Sprintf("%s expires on %s.", service, date)
	default:
		return fmt.Sprintf("This is your scheduled reminder for %s.", service)
	}
}
