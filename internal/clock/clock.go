// Package clock owns the reporting-window arithmetic. Collectors take a Now
// func instead of calling time.Now directly so tests can pin the cycle to a
// fixed instant. All windows are computed in UTC.
package clock

import (
	"time"

	"github.com/gctaylor/techsubs/model"
)

// Now returns the current instant. time.Now satisfies it.
type Now func() time.Time

// HourFloor truncates t to the top of its clock hour in UTC.
func HourFloor(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
}

// BasicWindow is the reporting window for snapshot-style stats: the point is
// written at the floor of the current hour, so repeated runs within one hour
// collide on the same instant.
func BasicWindow(now time.Time) model.CollectionWindow {
	floor := HourFloor(now)
	return model.CollectionWindow{Report: floor, Start: floor, End: floor}
}

// PostWindow is the reporting window for post counts: always the previous
// full clock hour, so the window is complete before it is counted. The end
// bound is inclusive, one microsecond short of the next hour.
func PostWindow(now time.Time) model.CollectionWindow {
	start := HourFloor(now.UTC().Add(-time.Hour))
	return model.CollectionWindow{
		Report: start,
		Start:  start,
		End:    start.Add(time.Hour - time.Microsecond),
	}
}
