package usage

import "time"

// defaultThresholds are the base aging windows before agingMultiplier is
// applied: ACTIVE -> RECENT at 7d, RECENT -> ARCHIVED at 30d,
// ARCHIVED -> STALE at 180d.
const (
	defaultActiveThreshold   = 7 * 24 * time.Hour
	defaultRecentThreshold   = 30 * 24 * time.Hour
	defaultArchivedThreshold = 180 * 24 * time.Hour
	sessionPurgeThreshold    = 48 * time.Hour
)

// TransitionReport summarizes one sweep's effect.
type TransitionReport struct {
	Transitioned map[State]int // count of units moved into each new state
	Purged       int           // session-state units deleted for inactivity
}

// nextState computes the state a unit should be in given how long it has
// gone without access, scaled by its category/context aging multiplier.
// It only ever moves a unit forward (never reactivates it here — access
// reactivation is handled by Store.ApplyUsage setting state back to ACTIVE).
func nextState(current State, idle time.Duration, category Category, level ContextLevel) State {
	mult := agingMultiplier(category, level)

	active := time.Duration(float64(defaultActiveThreshold) * mult)
	recent := time.Duration(float64(defaultRecentThreshold) * mult)
	archived := time.Duration(float64(defaultArchivedThreshold) * mult)

	switch current {
	case StateActive:
		if idle >= archived {
			return StateStale
		}
		if idle >= recent {
			return StateArchived
		}
		if idle >= active {
			return StateRecent
		}
		return StateActive
	case StateRecent:
		if idle >= archived {
			return StateStale
		}
		if idle >= recent {
			return StateArchived
		}
		return StateRecent
	case StateArchived:
		if idle >= archived {
			return StateStale
		}
		return StateArchived
	default:
		return current
	}
}

// RunTransitions ages every tracked unit for a project against now,
// applying per-category/context-level aging rates, and purges session-state
// units idle past the session purge window regardless of lifecycle state.
func RunTransitions(store *Store, projectID string, now time.Time) (*TransitionReport, error) {
	units, err := store.ListByProject(projectID)
	if err != nil {
		return nil, err
	}

	report := &TransitionReport{Transitioned: make(map[State]int)}

	for _, u := range units {
		idle := now.Sub(u.LastAccessed)

		if u.ContextLevel == ContextSession && idle >= sessionPurgeThreshold {
			if err := store.DeleteUnit(u.UnitID); err != nil {
				return report, err
			}
			report.Purged++
			continue
		}

		newState := nextState(u.State, idle, u.Category, u.ContextLevel)
		if newState != u.State {
			if err := store.SetState(u.UnitID, newState); err != nil {
				return report, err
			}
			report.Transitioned[newState]++
		}
	}

	return report, nil
}
