package models

import "slices"

const (
	DefaultTimezone    = "America/Sao_Paulo"
	DefaultWindowStart = "08:00"
	DefaultWindowEnd   = "18:00"
)

// DefaultWeekdays are the days a workflow runs on when none are configured.
var DefaultWeekdays = []string{"mon", "tue", "wed", "thu", "fri"}

// Schedule restricts when executions of a workflow may advance.
// Weekdays are lowercase three-letter names, times are zero padded HH:MM and
// the window is half-open: [Start, End).
type Schedule struct {
	Weekdays []string `json:"weekdays"   validate:"dive,oneof=mon tue wed thu fri sat sun"`
	Start    string   `json:"start_time" validate:"omitempty,len=5"`
	End      string   `json:"end_time"   validate:"omitempty,len=5"`
	Timezone string   `json:"timezone"`
}

// DefaultSchedule returns Mon-Fri, 08:00-18:00 in the default business timezone.
func DefaultSchedule() Schedule {
	return Schedule{
		Weekdays: slices.Clone(DefaultWeekdays),
		Start:    DefaultWindowStart,
		End:      DefaultWindowEnd,
		Timezone: DefaultTimezone,
	}
}

// WithDefaults fills every unset field with its default.
func (s Schedule) WithDefaults() Schedule {
	if len(s.Weekdays) == 0 {
		s.Weekdays = slices.Clone(DefaultWeekdays)
	}

	if s.Start == "" {
		s.Start = DefaultWindowStart
	}

	if s.End == "" {
		s.End = DefaultWindowEnd
	}

	if s.Timezone == "" {
		s.Timezone = DefaultTimezone
	}

	return s
}
