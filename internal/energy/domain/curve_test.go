package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/voltahq/volta/internal/identity/domain"
)

func defaultSchedule() identity.SleepSchedule {
	return identity.SleepSchedule{Bedtime: 23, WakeHour: 7, Chronotype: identity.ChronotypeNeutral}
}

func TestGenerateCurve_SleepHoursNearFloor(t *testing.T) {
	curve := GenerateCurve(defaultSchedule())

	for _, hour := range []int{23, 0, 1, 2, 3, 4, 5, 6} {
		pt := curve[hour]
		assert.Equal(t, StageSleepPhase, pt.Stage, "hour %d", hour)
		assert.GreaterOrEqual(t, pt.Level, 0.04, "hour %d", hour)
		assert.LessOrEqual(t, pt.Level, 0.09, "hour %d", hour)
	}
}

func TestGenerateCurve_WakeRegions(t *testing.T) {
	curve := GenerateCurve(defaultSchedule())

	// 16 wake hours starting at 07:00 split into the five regions.
	tests := []struct {
		hour  int
		stage Stage
	}{
		{7, StageMorningRise},
		{9, StageMorningRise},
		{10, StageMorningPeak},
		{12, StageMorningPeak},
		{13, StageMiddayDip},
		{15, StageMiddayDip},
		{16, StageAfternoonRebound},
		{18, StageAfternoonRebound},
		{19, StageWindDown},
		{22, StageWindDown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.stage, curve[tt.hour].Stage, "hour %d", tt.hour)
	}

	// The rise starts low and the peak dominates the day.
	assert.InDelta(t, 0.32, curve[7].Level, 0.001)
	assert.InDelta(t, 0.97, curve[11].Level, 0.001)
	assert.Greater(t, curve[11].Level, curve[14].Level, "peak above dip")
	assert.Greater(t, curve[17].Level, curve[14].Level, "rebound above dip")
	assert.Greater(t, curve[17].Level, curve[20].Level, "rebound above wind-down")
}

func TestGenerateCurve_LateWindDownLower(t *testing.T) {
	curve := GenerateCurve(defaultSchedule())

	// Hours 21 and 22 are within two hours of bedtime.
	for _, hour := range []int{21, 22} {
		assert.LessOrEqual(t, curve[hour].Level, 0.21, "hour %d", hour)
		assert.GreaterOrEqual(t, curve[hour].Level, 0.13-0.001, "hour %d", hour)
	}
	assert.Greater(t, curve[19].Level, curve[21].Level)
}

func TestGenerateCurve_ChronotypeTilt(t *testing.T) {
	neutral := GenerateCurve(defaultSchedule())

	morningSchedule := defaultSchedule()
	morningSchedule.Chronotype = identity.ChronotypeMorning
	morning := GenerateCurve(morningSchedule)

	eveningSchedule := defaultSchedule()
	eveningSchedule.Chronotype = identity.ChronotypeEvening
	evening := GenerateCurve(eveningSchedule)

	// Early wake hours: morning type boosted, evening type damped.
	assert.Greater(t, morning[8].Level, neutral[8].Level)
	assert.Less(t, evening[8].Level, neutral[8].Level)

	// Late wake hours: mirrored.
	assert.Less(t, morning[20].Level, neutral[20].Level)
	assert.Greater(t, evening[20].Level, neutral[20].Level)
}

func TestGenerateCurve_BoundsAndDeterminism(t *testing.T) {
	schedules := []identity.SleepSchedule{
		defaultSchedule(),
		{Bedtime: 2, WakeHour: 10, Chronotype: identity.ChronotypeEvening},
		{Bedtime: 21, WakeHour: 5, Chronotype: identity.ChronotypeMorning},
		{Bedtime: 8, WakeHour: 8, Chronotype: identity.ChronotypeNeutral}, // empty sleep window
	}
	for _, schedule := range schedules {
		first := GenerateCurve(schedule)
		second := GenerateCurve(schedule)
		require.Equal(t, first, second)

		for hour := 0; hour < 24; hour++ {
			assert.GreaterOrEqual(t, first[hour].Level, 0.04)
			assert.LessOrEqual(t, first[hour].Level, 0.97)
		}
	}
}

func TestGenerateCurve_EmptySleepWindowHasNoSleepStage(t *testing.T) {
	curve := GenerateCurve(identity.SleepSchedule{Bedtime: 8, WakeHour: 8, Chronotype: identity.ChronotypeNeutral})
	for hour := 0; hour < 24; hour++ {
		assert.NotEqual(t, StageSleepPhase, curve[hour].Stage, "hour %d", hour)
	}
}

func TestJitter_StaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		level := Jitter(rng, 0.05, 0.04)
		assert.GreaterOrEqual(t, level, 0.04)
		assert.LessOrEqual(t, level, 0.97)
	}
}
