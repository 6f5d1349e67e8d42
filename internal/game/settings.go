// internal/game/settings.go
package game

import (
	"time"

	"github.com/jason-s-yu/manhunt/internal/geo"
)

// Settings are the tunables shared by every session of a store.
type Settings struct {
	MinPlayers        int
	CatchRadiusMeters float64
	ShrinkFactor      float64
	ShrinkInterval    time.Duration
}

// DefaultSettings returns the stock game rules.
func DefaultSettings() Settings {
	return Settings{
		MinPlayers:        MinRoster,
		CatchRadiusMeters: 10,
		ShrinkFactor:      geo.DefaultShrinkFactor,
		ShrinkInterval:    25 * time.Minute,
	}
}

// normalized fills zero values with defaults. MinPlayers never drops below MinRoster.
func (s Settings) normalized() Settings {
	d := DefaultSettings()
	if s.MinPlayers < MinRoster {
		s.MinPlayers = d.MinPlayers
	}
	if s.CatchRadiusMeters <= 0 {
		s.CatchRadiusMeters = d.CatchRadiusMeters
	}
	if s.ShrinkFactor <= 0 || s.ShrinkFactor >= 1 {
		s.ShrinkFactor = d.ShrinkFactor
	}
	if s.ShrinkInterval <= 0 {
		s.ShrinkInterval = d.ShrinkInterval
	}
	return s
}
