// internal/game/snapshot.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/geo"
	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/paulmach/orb/geojson"
	"github.com/shopspring/decimal"
)

// SnapshotPlayer is the public view of a roster entry. Locations are never included.
type SnapshotPlayer struct {
	ID       uuid.UUID   `json:"id"`
	Team     models.Team `json:"team"`
	Username string      `json:"username"`
}

// Snapshot is the public view of a session sent with game_update and by GET /games/{id}.
type Snapshot struct {
	ID             uuid.UUID         `json:"id"`
	Status         Status            `json:"status"`
	Host           models.User       `json:"host"`
	Players        []SnapshotPlayer  `json:"players"`
	Center         *geojson.Geometry `json:"center"`
	Radius         *float64          `json:"radius"`
	TotalKitty     decimal.Decimal   `json:"totalKitty"`
	KittyPerPlayer decimal.Decimal   `json:"kittyPerPlayer"`
	AreaSet        bool              `json:"areaSet"`
	Area           *geojson.Geometry `json:"area,omitempty"`
	FinishReason   FinishReason      `json:"finishReason,omitempty"`
	Winner         Winner            `json:"winner,omitempty"`
}

func snapshotOf(st *State) Snapshot {
	snap := Snapshot{
		ID:             st.ID,
		Status:         st.Status,
		Host:           st.Host,
		Players:        make([]SnapshotPlayer, 0, len(st.Players)),
		TotalKitty:     st.TotalKitty,
		KittyPerPlayer: st.KittyPerPlayer,
		AreaSet:        st.AreaSet,
		Area:           areaGeometry(st.Area),
		FinishReason:   st.FinishReason,
		Winner:         st.Winner,
	}
	for _, p := range st.Players {
		snap.Players = append(snap.Players, SnapshotPlayer{ID: p.ID, Team: p.Team, Username: p.Username})
	}
	if st.Area != nil {
		snap.Center = geojson.NewGeometry(st.Area.Center)
		radius := st.Area.Radius
		snap.Radius = &radius
	}
	return snap
}

func areaGeometry(a *geo.Area) *geojson.Geometry {
	if a == nil {
		return nil
	}
	return geojson.NewGeometry(a.Polygon)
}
