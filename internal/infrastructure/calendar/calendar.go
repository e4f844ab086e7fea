package calendar

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NewsEvent is one scheduled high-impact release.
type NewsEvent struct {
	Time  time.Time `yaml:"time"`
	Title string    `yaml:"title"`
}

type eventsFile struct {
	Events []NewsEvent `yaml:"events"`
}

// Calendar answers restriction queries from a static news schedule and a
// fixed daily market close time. Weekends count as closed.
type Calendar struct {
	events      []NewsEvent
	newsWindow  time.Duration
	closeWindow time.Duration
	closeHour   int
	closeMinute int
}

// New builds a calendar. closeTime is "HH:MM" in the times' own location;
// newsWindow applies both before and after each event.
func New(events []NewsEvent, newsWindow, closeWindow time.Duration, closeTime string) (*Calendar, error) {
	var h, m int
	if _, err := fmt.Sscanf(closeTime, "%d:%d", &h, &m); err != nil {
		return nil, fmt.Errorf("invalid close time %q: %w", closeTime, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return nil, fmt.Errorf("invalid close time %q", closeTime)
	}
	return &Calendar{
		events:      events,
		newsWindow:  newsWindow,
		closeWindow: closeWindow,
		closeHour:   h,
		closeMinute: m,
	}, nil
}

// LoadEvents reads a yaml news schedule.
func LoadEvents(path string) ([]NewsEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read news schedule: %w", err)
	}
	var f eventsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse news schedule: %w", err)
	}
	return f.Events, nil
}

func (c *Calendar) NewsBlockActive(ctx context.Context, now time.Time) (bool, error) {
	for _, ev := range c.events {
		if now.After(ev.Time.Add(-c.newsWindow)) && now.Before(ev.Time.Add(c.newsWindow)) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Calendar) MarketClosingSoon(ctx context.Context, symbol string, now time.Time) (bool, error) {
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return true, nil
	}
	closeAt := time.Date(now.Year(), now.Month(), now.Day(), c.closeHour, c.closeMinute, 0, 0, now.Location())
	return !now.Before(closeAt.Add(-c.closeWindow)) && now.Before(closeAt), nil
}
