package queue

import (
	"fmt"
	"time"
)

// Schedule determines when a periodic task runs next.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule time.Duration

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(time.Duration(s))
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", time.Duration(s))
}

type hourlySchedule struct {
	minute int
}

func (s hourlySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s hourlySchedule) String() string {
	return fmt.Sprintf("hourly at :%02d", s.minute)
}

type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

// EveryInterval runs d after the previous run.
func EveryInterval(d time.Duration) Schedule {
	return intervalSchedule(d)
}

// HourlyAt runs at the given minute of every hour.
func HourlyAt(minute int) Schedule {
	return hourlySchedule{minute: clamp(minute, 0, 59)}
}

// Hourly runs at the top of every hour.
func Hourly() Schedule {
	return HourlyAt(0)
}

// DailyAt runs once a day at hour:minute in the location of the scheduler clock.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: clamp(hour, 0, 23), minute: clamp(minute, 0, 59)}
}

// Daily runs at midnight.
func Daily() Schedule {
	return DailyAt(0, 0)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
