// Package dates resolves due-date phrases such as "Friday", "tomorrow",
// "next Monday", "in 3 days" or "2025-10-17" to calendar days. Bare
// weekdays and month-day phrases resolve to today or later; explicitly past
// phrases such as "yesterday" or "last friday" keep their past date.
package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/ShayCichocki/taskflow/pkg/models"
)

// ErrUnrecognized is returned when a phrase cannot be read as a date.
var ErrUnrecognized = errors.New("unrecognized date")

var (
	weekdayPattern     = regexp.MustCompile(`^(?:(?:on|by|before|due|until)\s+)?(?:(this|next|coming)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)$`)
	lastWeekdayPattern = regexp.MustCompile(`^(?:last|previous)\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)$`)
	monthPattern       = regexp.MustCompile(`\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b`)
	yearPattern        = regexp.MustCompile(`\b\d{4}\b`)
	relativePattern    = regexp.MustCompile(`^(?:in|within)\s+(\d+|a|an|one|two|three|four|five|six|seven)\s+(day|days|week|weeks)$`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var smallNumbers = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
}

// Parser resolves date phrases relative to a clock.
type Parser struct {
	w   *when.Parser
	now func() time.Time
}

// New creates a Parser using the wall clock.
func New() *Parser {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Parser whose notion of "today" comes from now.
func NewWithClock(now func() time.Time) *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w, now: now}
}

// Today returns the current calendar day.
func (p *Parser) Today() models.Date {
	return models.DateOf(p.now())
}

// Parse resolves text to a calendar day.
func (p *Parser) Parse(text string) (models.Date, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return models.Date{}, fmt.Errorf("%w: empty", ErrUnrecognized)
	}

	if d, err := models.ParseDate(s); err == nil {
		return d, nil
	}

	today := p.Today()
	switch s {
	case "today", "tonight", "end of day", "eod":
		return today, nil
	case "yesterday":
		return today.AddDays(-1), nil
	case "tomorrow", "tmrw":
		return today.AddDays(1), nil
	case "next week":
		return today.AddDays(7), nil
	}

	if m := weekdayPattern.FindStringSubmatch(s); m != nil {
		return nextWeekday(today, weekdays[m[2]], m[1] == "next"), nil
	}

	if m := lastWeekdayPattern.FindStringSubmatch(s); m != nil {
		return previousWeekday(today, weekdays[m[1]]), nil
	}

	if m := relativePattern.FindStringSubmatch(s); m != nil {
		n, ok := smallNumbers[m[1]]
		if !ok {
			n, _ = strconv.Atoi(m[1])
		}
		if strings.HasPrefix(m[2], "week") {
			n *= 7
		}
		return today.AddDays(n), nil
	}

	r, err := p.w.Parse(s, p.now())
	if err != nil {
		return models.Date{}, fmt.Errorf("%w: %q: %v", ErrUnrecognized, text, err)
	}
	if r == nil {
		return models.Date{}, fmt.Errorf("%w: %q", ErrUnrecognized, text)
	}

	return rollForward(s, models.DateOf(r.Time), today), nil
}

// rollForward moves a passed month-day phrase without a year ("march 3") to
// next year. Any other past date is returned as written.
func rollForward(phrase string, d, today models.Date) models.Date {
	if !d.Before(today) || !monthPattern.MatchString(phrase) || yearPattern.MatchString(phrase) {
		return d
	}
	return models.DateOf(d.Time().AddDate(1, 0, 0))
}

// nextWeekday returns the next day falling on wd. Today counts unless
// skipWeek is set, in which case the occurrence in the following week is used.
func nextWeekday(today models.Date, wd time.Weekday, skipWeek bool) models.Date {
	delta := (int(wd) - int(today.Weekday()) + 7) % 7
	if skipWeek && delta == 0 {
		delta = 7
	}
	return today.AddDays(delta)
}

// previousWeekday returns the most recent day before today falling on wd.
func previousWeekday(today models.Date, wd time.Weekday) models.Date {
	delta := (int(today.Weekday()) - int(wd) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDays(-delta)
}
