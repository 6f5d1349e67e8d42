// internal/game/evaluator.go
package game

import "github.com/jason-s-yu/manhunt/internal/geo"

// EvaluateProximity checks whether any hunter is within radiusMeters of the hunted
// player. Players are checked in join order and the first match wins. Players without a
// reported location are skipped.
func EvaluateProximity(st *State, radiusMeters float64) (Verdict, bool) {
	if st.Status != StatusActive {
		return Verdict{}, false
	}
	hunted := st.Hunted()
	if hunted == nil || !hunted.HasLocation() {
		return Verdict{}, false
	}
	for _, p := range st.Players {
		if p.ID == hunted.ID || !p.HasLocation() {
			continue
		}
		if geo.DistanceMeters(*hunted.Location, *p.Location) <= radiusMeters {
			return Verdict{
				Reason:     ReasonProximityCaught,
				Winner:     TeamWinner(p.Team),
				WinnerTeam: p.Team,
				CaughtBy:   p.ID,
			}, true
		}
	}
	return Verdict{}, false
}

// EvaluateKitty ends an active session once the hunted player has spent the whole kitty.
func EvaluateKitty(st *State) (Verdict, bool) {
	if st.Status != StatusActive || st.TotalKitty.IsPositive() {
		return Verdict{}, false
	}
	return Verdict{Reason: ReasonKittyDepleted, Winner: WinnerHuntedOpponents}, true
}
