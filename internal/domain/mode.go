package domain

// Mode selects the price source driving the grid.
type Mode int

const (
	ModeSimulation Mode = iota
	ModeLive
)

func (m Mode) String() string {
	if m == ModeLive {
		return "LIVE"
	}
	return "SIMULATION"
}

// ParseMode maps a config/API string to a Mode. Unknown strings fall
// back to simulation.
func ParseMode(s string) Mode {
	if s == "live" || s == "LIVE" {
		return ModeLive
	}
	return ModeSimulation
}

// Scenario is a forced market-wide shock applied to every tile.
type Scenario int

const (
	ScenarioReset Scenario = iota
	ScenarioCrash
	ScenarioBullRun
)

func (s Scenario) String() string {
	switch s {
	case ScenarioCrash:
		return "CRASH"
	case ScenarioBullRun:
		return "BULL_RUN"
	default:
		return "RESET"
	}
}
