package asset

// LifecycleStage represents where an asset sits in its physical lifecycle
type LifecycleStage string

const (
	StageRegistered     LifecycleStage = "registered"
	StageReceived       LifecycleStage = "received"
	StageRacked         LifecycleStage = "racked"
	StagePoweredOn      LifecycleStage = "powered_on"
	StageRunning        LifecycleStage = "running"
	StageMaintenance    LifecycleStage = "maintenance"
	StageDecommissioned LifecycleStage = "decommissioned"
)

// IsValid checks if the lifecycle stage is a known stage
func (s LifecycleStage) IsValid() bool {
	switch s {
	case StageRegistered, StageReceived, StageRacked, StagePoweredOn,
		StageRunning, StageMaintenance, StageDecommissioned:
		return true
	}
	return false
}

// IsTerminal returns true for stages no operation may leave
func (s LifecycleStage) IsTerminal() bool {
	return s == StageDecommissioned
}

// availabilityByStage is the fixed stage/availability compatibility table.
// A stage maps to the set of availability values an asset in that stage may
// hold; a stage absent from the table allows both.
var availabilityByStage = map[LifecycleStage][]bool{
	StageRegistered:     {true, false},
	StageReceived:       {true, false},
	StageRacked:         {true, false},
	StagePoweredOn:      {true},
	StageRunning:        {true, false},
	StageMaintenance:    {false},
	StageDecommissioned: {false},
}

// AllowsAvailability reports whether an asset in this stage may hold the
// given availability value.
func (s LifecycleStage) AllowsAvailability(available bool) bool {
	allowed, ok := availabilityByStage[s]
	if !ok {
		return true
	}
	for _, v := range allowed {
		if v == available {
			return true
		}
	}
	return false
}

// DefaultAvailability returns the availability an asset entering this stage
// is forced into when its current value is incompatible.
func (s LifecycleStage) DefaultAvailability() bool {
	switch s {
	case StageMaintenance, StageDecommissioned:
		return false
	default:
		return true
	}
}
