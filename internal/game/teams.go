// internal/game/teams.go
package game

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/models"
)

// MinRoster is the smallest roster teams can be assigned to: one hunted player and at
// least two hunters.
const MinRoster = 3

// HunterTeamCount returns how many hunter teams hunters players are split into.
func HunterTeamCount(hunters int) int {
	if hunters <= 4 {
		return 2
	}
	return models.MaxHunterTeams
}

// TeamSizes splits n players over k teams. Sizes differ by at most one and the larger
// teams come first.
func TeamSizes(n, k int) []int {
	sizes := make([]int, k)
	base, rem := n/k, n%k
	for i := range sizes {
		sizes[i] = base
		if i < rem {
			sizes[i]++
		}
	}
	return sizes
}

// AssignTeams picks one player uniformly at random as HUNTED and spreads the rest over
// the hunter teams in random order. It writes each player's Team and returns the hunted
// player's id. The players slice keeps its order.
func AssignTeams(players []*models.Player, rng *rand.Rand) (uuid.UUID, error) {
	n := len(players)
	if n < MinRoster {
		return uuid.Nil, fmt.Errorf("%w: need at least %d players to assign teams, have %d", ErrPrecondition, MinRoster, n)
	}

	hunted := players[rng.Intn(n)]
	rest := make([]*models.Player, 0, n-1)
	for _, p := range players {
		if p != hunted {
			rest = append(rest, p)
		}
	}
	rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })

	i := 0
	for t, size := range TeamSizes(len(rest), HunterTeamCount(len(rest))) {
		for k := 0; k < size; k++ {
			rest[i].Team = models.HunterTeam(t + 1)
			i++
		}
	}
	hunted.Team = models.TeamHunted
	return hunted.ID, nil
}
