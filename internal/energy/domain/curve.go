package domain

import (
	"math"
	"math/rand"

	identity "github.com/voltahq/volta/internal/identity/domain"
)

// CurvePoint is one hour of a generated daily energy curve.
type CurvePoint struct {
	Hour  int
	Level float64
	Stage Stage
}

const (
	curveFloor = 0.04
	curveCeil  = 0.97
)

// GenerateCurve produces a deterministic 24-hour energy curve from a sleep
// schedule. The wake window is divided into regions by relative position:
// a morning rise, a morning peak, a midday dip, an afternoon rebound and a
// wind-down, with sleep hours flat near the floor. The chronotype tilts
// the curve toward its preferred end of the day.
func GenerateCurve(schedule identity.SleepSchedule) [24]CurvePoint {
	var curve [24]CurvePoint

	sleepHours := make([]int, 0, 24)
	for h := 0; h < 24; h++ {
		if schedule.IsSleepHour(h) {
			sleepHours = append(sleepHours, h)
		}
	}

	for hour := 0; hour < 24; hour++ {
		rel := schedule.RelativeWakePosition(hour)
		if rel < 0 {
			curve[hour] = CurvePoint{Hour: hour, Level: clampLevel(sleepLevel(hour, sleepHours)), Stage: StageSleepPhase}
			continue
		}
		level, stage := wakeLevel(schedule, hour, rel)
		level *= chronotypeFactor(schedule.Chronotype, rel)
		curve[hour] = CurvePoint{Hour: hour, Level: clampLevel(level), Stage: stage}
	}
	return curve
}

// sleepLevel dips toward the floor mid-sleep and sits slightly higher at
// the edges of the window.
func sleepLevel(hour int, sleepHours []int) float64 {
	if len(sleepHours) == 0 {
		return curveFloor
	}
	pos := 0.0
	for i, h := range sleepHours {
		if h == hour {
			pos = float64(i) / float64(len(sleepHours))
			break
		}
	}
	return 0.09 - 0.05*math.Sin(math.Pi*pos)
}

func wakeLevel(schedule identity.SleepSchedule, hour int, rel float64) (float64, Stage) {
	switch {
	case rel < 0.15:
		t := rel / 0.15
		return 0.32 + t*(0.50-0.32), StageMorningRise
	case rel < 0.35:
		t := (rel - 0.15) / 0.20
		return 0.85 + 0.12*math.Sin(math.Pi*t), StageMorningPeak
	case rel < 0.55:
		t := (rel - 0.35) / 0.20
		return 0.28 + 0.02*t, StageMiddayDip
	case rel < 0.70:
		t := (rel - 0.55) / 0.15
		return 0.62 + t*(0.70-0.62), StageAfternoonRebound
	default:
		t := (rel - 0.70) / 0.30
		if schedule.IsLateWindDown(hour) {
			return 0.21 - 0.08*t, StageWindDown
		}
		return 0.26 - 0.06*t, StageWindDown
	}
}

// chronotypeFactor boosts a morning type early in the wake window and
// damps it late, with the evening type mirrored. The neutral type leaves
// the curve untouched.
func chronotypeFactor(c identity.Chronotype, rel float64) float64 {
	switch c {
	case identity.ChronotypeMorning:
		if rel < 0.30 {
			return 1.15 - (rel/0.30)*0.05
		}
		if rel >= 0.70 {
			return 0.85
		}
	case identity.ChronotypeEvening:
		if rel < 0.30 {
			return 0.85
		}
		if rel >= 0.70 {
			return 1.10 + ((rel-0.70)/0.30)*0.05
		}
	}
	return 1.0
}

func clampLevel(level float64) float64 {
	if level < curveFloor {
		return curveFloor
	}
	if level > curveCeil {
		return curveCeil
	}
	return level
}

// Jitter perturbs a level by a bounded amount, keeping the result inside
// the curve's valid range. Used when seeding generated samples so stored
// data does not look machine-flat.
func Jitter(rng *rand.Rand, level, amplitude float64) float64 {
	return clampLevel(level + (rng.Float64()*2-1)*amplitude)
}
