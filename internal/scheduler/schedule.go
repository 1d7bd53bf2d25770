package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts five or six fields plus descriptors (@daily, @every 6h).
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule is a parsed schedule; exactly one of Cron and Every is set.
type Schedule struct {
	Cron  string
	Every time.Duration
}

// Spec renders the schedule in the form cron.Cron accepts.
func (s Schedule) Spec() string {
	if s.Every > 0 {
		return "@every " + s.Every.String()
	}
	return s.Cron
}

// ParseSchedule accepts cron ("0 3 * * *", "@daily"), a Go duration
// ("6h", "90m") or an HH:MM interval ("24:00" is a day). Cron expressions
// are checked here so config validation rejects them early.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return Schedule{}, fmt.Errorf("schedule required")
	case strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t"):
		if _, err := cronParser.Parse(s); err != nil {
			return Schedule{}, fmt.Errorf("cron %q: %w", s, err)
		}
		return Schedule{Cron: s}, nil
	}

	every, err := parseInterval(s)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid schedule %q (use cron like '0 3 * * *', HH:MM like '24:00', or a duration like '6h')", raw)
	}
	if every <= 0 {
		return Schedule{}, fmt.Errorf("schedule %q: interval must be > 0", raw)
	}
	return Schedule{Every: every}, nil
}

func parseInterval(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return time.ParseDuration(s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || len(hh) > 3 {
		return 0, fmt.Errorf("bad hours %q", hh)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || m > 59 {
		return 0, fmt.Errorf("bad minutes %q", mm)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}
