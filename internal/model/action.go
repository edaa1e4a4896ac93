package model

// Action is a human-friendly operating mode of a storage unit for a stage.
// Keep these values stable; they are written to the dispatch CSV.
type Action string

const (
	ActionCharging    Action = "CHARGING"
	ActionIdle        Action = "IDLE"
	ActionDischarging Action = "DISCHARGING"
)

// StorageAction classifies a stage by its net grid exchange.
// Simultaneous charge and discharge is reported by the dominant direction.
func StorageAction(chargeMW, dischargeMW float64) Action {
	net := dischargeMW - chargeMW
	switch {
	case net < -actionEpsilon:
		return ActionCharging
	case net > actionEpsilon:
		return ActionDischarging
	default:
		return ActionIdle
	}
}

// solver output carries round-off; anything below this is idle.
const actionEpsilon = 1e-9
