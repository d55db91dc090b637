package macro

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"TrendScanner/internal/domain/models"
	"TrendScanner/pkg/logger"
	"TrendScanner/pkg/util"
)

// DefaultGuidance is the trading advice attached to alerts, keyed by event name.
var DefaultGuidance = map[string]string{
	models.EventPayroll:      "Jobs report can gap the open; avoid new short-dated outright positions.",
	models.EventCPI:          "Inflation print moves rates and growth names; prefer spreads over naked premium.",
	models.EventPCE:          "Fed's preferred inflation gauge; expect a volatility bump into the release.",
	models.EventRateDecision: "Policy decision; implied volatility is rich before and collapses after.",
}

// Calendar estimates macro release dates from weekday rules. Dates are
// approximations of the official schedules and depend only on the clock.
type Calendar struct {
	windowDays  int
	monthsAhead int
	now         func() time.Time
	guidance    map[string]string
	log         *logger.Logger
}

type Option func(*Calendar)

// WithClock overrides the clock used to pick the first generated month.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) { c.now = now }
}

// WithGuidance replaces the guidance texts.
func WithGuidance(g map[string]string) Option {
	return func(c *Calendar) { c.guidance = g }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Calendar) { c.log = l }
}

// NewCalendar builds a calendar using the alert window and horizon of params.
func NewCalendar(params models.EngineParams, opts ...Option) *Calendar {
	c := &Calendar{
		windowDays:  params.NewsWindowDays,
		monthsAhead: params.MonthsAhead,
		now:         time.Now,
		guidance:    DefaultGuidance,
		log:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rule struct {
	name   string
	weight int
	date   func(year int, month time.Month, index int) (time.Time, bool)
}

var rules = []rule{
	{models.EventPayroll, -2, func(y int, m time.Month, _ int) (time.Time, bool) {
		return NthWeekday(y, m, time.Friday, 1)
	}},
	{models.EventCPI, -2, func(y int, m time.Month, _ int) (time.Time, bool) {
		first, ok := NthWeekday(y, m, time.Wednesday, 1)
		return first.AddDate(0, 0, 7), ok
	}},
	{models.EventPCE, -2, func(y int, m time.Month, _ int) (time.Time, bool) {
		return LastWeekday(y, m, time.Friday), true
	}},
	// roughly every eight weeks
	{models.EventRateDecision, -3, func(y int, m time.Month, i int) (time.Time, bool) {
		if i%2 != 0 {
			return time.Time{}, false
		}
		return NthWeekday(y, m, time.Wednesday, 3)
	}},
}

// GenerateEvents returns the estimated events for monthsAhead months starting
// with the current month, in generation order. A rule that cannot produce a
// date for a month is skipped for that month.
func (c *Calendar) GenerateEvents(monthsAhead int) []models.MacroEvent {
	if monthsAhead <= 0 {
		return nil
	}
	start := c.now()
	events := make([]models.MacroEvent, 0, monthsAhead*len(rules))
	for i := 0; i < monthsAhead; i++ {
		month := time.Date(start.Year(), start.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		y, m := month.Year(), month.Month()
		for _, r := range rules {
			d, ok := r.date(y, m, i)
			if !ok {
				continue
			}
			if d.Year() != y || d.Month() != m {
				c.log.Warn("macro event outside its month, omitted",
					logger.String("event", r.name),
					logger.String("month", month.Format("2006-01")),
				)
				continue
			}
			events = append(events, models.MacroEvent{Name: r.name, Date: d, ImpactWeight: r.weight})
		}
	}
	return events
}

// Events returns the events for the configured horizon.
func (c *Calendar) Events() []models.MacroEvent {
	return c.GenerateEvents(c.monthsAhead)
}

// Alerts returns events between reference and reference+window days,
// both inclusive, in generation order.
func (c *Calendar) Alerts(reference time.Time) []models.Alert {
	ref := util.DateOnly(reference)
	var alerts []models.Alert
	for _, ev := range c.Events() {
		days := util.DaysBetween(ref, ev.Date)
		if days < 0 || days > c.windowDays {
			continue
		}
		alerts = append(alerts, models.Alert{
			Event:     ev,
			DaysUntil: days,
			Guidance:  c.guidance[ev.Name],
			Message:   alertMessage(ev, ref, days),
		})
	}
	return alerts
}

func alertMessage(ev models.MacroEvent, ref time.Time, days int) string {
	when := "today"
	if days > 0 {
		when = humanize.RelTime(ev.Date, ref, "ago", "from now")
	}
	return fmt.Sprintf("%s on %s %s (%s), impact %d",
		ev.Name, ev.Date.Format("Mon Jan"), humanize.Ordinal(ev.Date.Day()), when, ev.ImpactWeight)
}
