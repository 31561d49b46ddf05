// Package domain holds the identity context: users, their sleep schedules
// and chronotypes.
package domain

import (
	"errors"
	"time"

	sharedDomain "github.com/voltahq/volta/internal/shared/domain"
)

var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidHour       = errors.New("hour must be between 0 and 23")
	ErrInvalidTimezone   = errors.New("unknown timezone")
	ErrInvalidChronotype = errors.New("chronotype must be morning, evening or neutral")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrWrongCredentials  = errors.New("invalid email or password")
)

// Chronotype shifts the generated energy curve earlier or later in the wake
// window.
type Chronotype string

const (
	ChronotypeMorning Chronotype = "morning"
	ChronotypeEvening Chronotype = "evening"
	ChronotypeNeutral Chronotype = "neutral"
)

// ParseChronotype validates a chronotype string, defaulting to neutral.
func ParseChronotype(s string) (Chronotype, error) {
	switch Chronotype(s) {
	case ChronotypeMorning, ChronotypeEvening, ChronotypeNeutral:
		return Chronotype(s), nil
	case "":
		return ChronotypeNeutral, nil
	default:
		return "", ErrInvalidChronotype
	}
}

// SleepSchedule describes when a user sleeps. The sleep window is the
// closed-open hour interval [Bedtime, WakeHour), wrapping midnight when
// bedtime is later in the day than the wake hour.
type SleepSchedule struct {
	Bedtime    int
	WakeHour   int
	Chronotype Chronotype
}

// DefaultSleepSchedule is applied to new users until they configure one.
func DefaultSleepSchedule() SleepSchedule {
	return SleepSchedule{Bedtime: 23, WakeHour: 7, Chronotype: ChronotypeNeutral}
}

// NewSleepSchedule validates and creates a sleep schedule.
func NewSleepSchedule(bedtime, wakeHour int, chronotype Chronotype) (SleepSchedule, error) {
	if bedtime < 0 || bedtime > 23 || wakeHour < 0 || wakeHour > 23 {
		return SleepSchedule{}, ErrInvalidHour
	}
	if chronotype == "" {
		chronotype = ChronotypeNeutral
	}
	return SleepSchedule{Bedtime: bedtime, WakeHour: wakeHour, Chronotype: chronotype}, nil
}

// IsSleepHour reports whether the given local hour falls in the sleep window.
// A schedule with bedtime equal to wake hour has an empty sleep window.
func (s SleepSchedule) IsSleepHour(hour int) bool {
	if s.Bedtime == s.WakeHour {
		return false
	}
	if s.Bedtime < s.WakeHour {
		return hour >= s.Bedtime && hour < s.WakeHour
	}
	return hour >= s.Bedtime || hour < s.WakeHour
}

// IsLateWindDown reports whether the given local hour is within the two hours
// preceding bedtime.
func (s SleepSchedule) IsLateWindDown(hour int) bool {
	for offset := 1; offset <= 2; offset++ {
		if hour == ((s.Bedtime-offset)%24+24)%24 {
			return true
		}
	}
	return false
}

// WakeHours returns the user's waking hours in order, starting at the wake
// hour.
func (s SleepSchedule) WakeHours() []int {
	hours := make([]int, 0, 24)
	for h := s.WakeHour; ; h = (h + 1) % 24 {
		if s.IsSleepHour(h) {
			break
		}
		hours = append(hours, h)
		if len(hours) == 24 {
			break
		}
	}
	return hours
}

// RelativeWakePosition maps an hour to its position in the wake window as a
// fraction in [0, 1). Hours inside the sleep window return -1.
func (s SleepSchedule) RelativeWakePosition(hour int) float64 {
	hours := s.WakeHours()
	for i, h := range hours {
		if h == hour {
			return float64(i) / float64(len(hours))
		}
	}
	return -1
}

// User is the identity aggregate.
type User struct {
	sharedDomain.BaseAggregateRoot
	email         string
	passwordHash  string
	timezone      string
	sleepSchedule SleepSchedule
}

// NewUser creates a user with the default sleep schedule.
func NewUser(email, passwordHash, timezone string) (*User, error) {
	if email == "" {
		return nil, ErrInvalidEmail
	}
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, ErrInvalidTimezone
	}
	return &User{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		email:             email,
		passwordHash:      passwordHash,
		timezone:          timezone,
		sleepSchedule:     DefaultSleepSchedule(),
	}, nil
}

func (u *User) Email() string                { return u.email }
func (u *User) PasswordHash() string         { return u.passwordHash }
func (u *User) Timezone() string             { return u.timezone }
func (u *User) SleepSchedule() SleepSchedule { return u.sleepSchedule }

// Location resolves the user's timezone. Falls back to UTC if the stored
// value no longer resolves.
func (u *User) Location() *time.Location {
	loc, err := time.LoadLocation(u.timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// UpdateSleepSchedule replaces the user's sleep schedule.
func (u *User) UpdateSleepSchedule(s SleepSchedule) {
	u.sleepSchedule = s
	u.Touch()
}

// RehydrateUser recreates a user from persisted state.
func RehydrateUser(
	base sharedDomain.BaseEntity,
	email, passwordHash, timezone string,
	sleepSchedule SleepSchedule,
) *User {
	return &User{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(base),
		email:             email,
		passwordHash:      passwordHash,
		timezone:          timezone,
		sleepSchedule:     sleepSchedule,
	}
}
