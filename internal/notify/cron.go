package notify

import (
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns fallback on parse error or a past time.
func nextCronDuration(expr string, fallback time.Duration) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return fallback
	}
	d := time.Until(sched.Next(time.Now()))
	if d <= 0 {
		return fallback
	}
	return d
}
