// Package notify mails the outcome of an extraction run.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/sinsfetch/sinsfetch/internal/extract"
)

const (
	SubjectFailed   = "[Task Failed] Some zip files failed"
	SubjectComplete = "[Task Complete] All zip files extracted"
	SubjectDryRun   = "[Dry Run] Email test succeeded"
)

const timeLayout = "2006-01-02 15:04:05"

// Message is a plain-text mail.
type Message struct {
	Subject string
	Body    string
}

// Compose builds the notification for res.
func Compose(res extract.Result, now time.Time) Message {
	if len(res.Failed) > 0 {
		return Message{
			Subject: SubjectFailed,
			Body: fmt.Sprintf("The following %d zip files failed to unzip (checked %s):\n%s\n",
				len(res.Failed), now.Format(timeLayout), strings.Join(res.Failed, "\n")),
		}
	}
	return Message{
		Subject: SubjectComplete,
		Body: fmt.Sprintf("All %d zip files were successfully unzipped (checked %s).\n",
			len(res.Extracted), now.Format(timeLayout)),
	}
}

// DryRun is the test message sent instead of extracting.
func DryRun(now time.Time) Message {
	return Message{
		Subject: SubjectDryRun,
		Body:    fmt.Sprintf("This is a dry-run email sent at %s. No unzipping was performed.\n", now.Format(timeLayout)),
	}
}

// Mailer delivers messages.
type Mailer interface {
	Send(m Message) error
}
