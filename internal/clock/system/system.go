// Package system provides the wall clock used outside tests.
package system

import (
	"time"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// Clock implements crawler.Clock with UTC wall time and crawler.Sleeper with
// real timers.
type Clock struct {
	crawler.TimerSleeper
}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
