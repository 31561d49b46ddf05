package domain

import (
	"time"

	energyDomain "github.com/voltahq/volta/internal/energy/domain"
)

// CandidateSlot is a transient placement candidate produced by the slot
// pipeline. HasConflict marks a slot that overlaps auto-scheduled tasks
// the incoming task is allowed to displace; such slots survive filtering
// and trigger the cascade when chosen.
// InLateWindDown marks a slot inside the two hours before bedtime,
// reachable only through the deadline concession.
type CandidateSlot struct {
	Start          time.Time
	End            time.Time
	EnergyLevel    float64
	Stage          energyDomain.Stage
	IsHistorical   bool
	IsToday        bool
	HasConflict    bool
	InLateWindDown bool
}
