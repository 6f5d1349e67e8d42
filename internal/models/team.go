// internal/models/team.go
package models

import (
	"encoding/json"
	"fmt"
)

// Team is the role of a player in a session.
//
// The zero value is TeamNone, the hunter placeholder every player holds before teams are
// assigned. TeamHunted is not the zero value. The numeric wire and storage
// codes (see Code) keep HUNTED=0 and TEAM_1..TEAM_3=1..3 for client compatibility.
type Team uint8

const (
	TeamNone Team = iota
	TeamHunted
	Team1
	Team2
	Team3
)

// MaxHunterTeams is the largest number of hunter teams a session can have.
const MaxHunterTeams = 3

// HunterTeam returns the n-th hunter team (1-based).
func HunterTeam(n int) Team {
	switch n {
	case 1:
		return Team1
	case 2:
		return Team2
	case 3:
		return Team3
	}
	panic(fmt.Sprintf("models: no hunter team %d", n))
}

// IsHunter reports whether t is one of the assigned hunter teams.
func (t Team) IsHunter() bool {
	return t == Team1 || t == Team2 || t == Team3
}

func (t Team) String() string {
	switch t {
	case TeamNone:
		return "NONE"
	case TeamHunted:
		return "HUNTED"
	case Team1:
		return "TEAM_1"
	case Team2:
		return "TEAM_2"
	case Team3:
		return "TEAM_3"
	}
	return fmt.Sprintf("Team(%d)", uint8(t))
}

// Code returns the numeric team code, or false for TeamNone.
func (t Team) Code() (int, bool) {
	switch t {
	case TeamHunted:
		return 0, true
	case Team1:
		return 1, true
	case Team2:
		return 2, true
	case Team3:
		return 3, true
	}
	return 0, false
}

// TeamFromCode is the inverse of Code.
func TeamFromCode(code int) (Team, error) {
	switch code {
	case 0:
		return TeamHunted, nil
	case 1:
		return Team1, nil
	case 2:
		return Team2, nil
	case 3:
		return Team3, nil
	}
	return TeamNone, fmt.Errorf("unknown team code %d", code)
}

// MarshalJSON encodes the numeric code, or null for TeamNone.
func (t Team) MarshalJSON() ([]byte, error) {
	code, ok := t.Code()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(code)
}

// UnmarshalJSON accepts a numeric code or null.
func (t *Team) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = TeamNone
		return nil
	}
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	team, err := TeamFromCode(code)
	if err != nil {
		return err
	}
	*t = team
	return nil
}
