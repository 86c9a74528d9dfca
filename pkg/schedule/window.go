// Package schedule decides whether a workflow's schedule window is open.
package schedule

import (
	"fmt"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // schedules name IANA zones; do not depend on the host database

	"github.com/dukex/cadence/pkg/models"
)

// Allowed reports whether executions governed by sched may advance at now.
// now is converted once into the schedule timezone; the window check is a
// lexicographic comparison of zero padded HH:MM values, start inclusive and
// end exclusive. An unknown timezone is an error.
func Allowed(sched models.Schedule, now time.Time) (bool, error) {
	sched = sched.WithDefaults()

	location, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		return false, fmt.Errorf("failed to load timezone %q: %w", sched.Timezone, err)
	}

	local := now.In(location)

	weekday := strings.ToLower(local.Weekday().String()[:3])
	if !slices.Contains(sched.Weekdays, weekday) {
		return false, nil
	}

	clock := local.Format("15:04")

	return sched.Start <= clock && clock < sched.End, nil
}

// AllowedForWorkflow evaluates the workflow's effective schedule.
func AllowedForWorkflow(workflow *models.Workflow, now time.Time) (bool, error) {
	return Allowed(workflow.EffectiveSchedule(), now)
}
