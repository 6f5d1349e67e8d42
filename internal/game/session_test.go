// internal/game/session_test.go
package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestCreateAddsHostAsFirstPlayer(t *testing.T) {
	f := newFixture(t)
	g, _ := f.newGame(t, 0)

	snap := g.Snapshot()
	assert.Equal(t, StatusWaiting, snap.Status)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, f.host.ID, snap.Players[0].ID)
	assert.Equal(t, models.TeamNone, snap.Players[0].Team)
	assert.True(t, snap.TotalKitty.Equal(decimal.NewFromInt(10)))
	assert.False(t, snap.AreaSet)
}

func TestCreateRejectsNegativeKitty(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Create(ctx, f.host, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestJoin(t *testing.T) {
	f := newFixture(t)
	g, users := f.newGame(t, 2)

	snap := g.Snapshot()
	require.Len(t, snap.Players, 3)
	for i, u := range users {
		assert.Equal(t, u.ID, snap.Players[i].ID, "roster keeps join order")
	}
	assert.True(t, snap.TotalKitty.Equal(decimal.NewFromInt(30)))

	err := g.Join(ctx, users[1])
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	last := f.mb.events()[len(f.mb.events())-1]
	assert.Equal(t, EventGameUpdate, last.Type)
	require.NotNil(t, last.Data)
	assert.Len(t, last.Data.Players, 3)
}

func TestJoinRejectedOnceStarted(t *testing.T) {
	f := newFixture(t)
	g, users := f.activeGame(t, 3)

	err := g.Join(ctx, models.User{ID: uuid.New(), Username: "late"})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, g.Join(ctx, users[2]), ErrAlreadyJoined)

	require.NoError(t, g.End(ctx, f.host.ID))
	err = g.Join(ctx, models.User{ID: uuid.New(), Username: "later"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCanStart(t *testing.T) {
	f := newFixture(t)
	g, _ := f.newGame(t, 1)
	assert.False(t, g.CanStart(), "two players")

	require.NoError(t, g.Join(ctx, models.User{ID: uuid.New(), Username: "third"}))
	assert.False(t, g.CanStart(), "no area")

	require.NoError(t, g.SetArea(ctx, f.host.ID, orb.Point{13.4, 52.5}, 300))
	assert.True(t, g.CanStart())

	require.NoError(t, g.Start(ctx, f.host.ID))
	assert.False(t, g.CanStart(), "already active")
}

func TestStartPreconditions(t *testing.T) {
	f := newFixture(t)
	g, users := f.newGame(t, 1)
	require.NoError(t, g.SetArea(ctx, f.host.ID, orb.Point{13.4, 52.5}, 300))

	assert.ErrorIs(t, g.Start(ctx, f.host.ID), ErrPrecondition)
	assert.Equal(t, StatusWaiting, g.CurrentStatus())

	require.NoError(t, g.Join(ctx, models.User{ID: uuid.New(), Username: "third"}))
	assert.ErrorIs(t, g.Start(ctx, users[1].ID), ErrNotAuthorized)
	assert.Equal(t, StatusWaiting, g.CurrentStatus())
}

func TestStartAssignsTeams(t *testing.T) {
	f := newFixture(t)
	g, _ := f.activeGame(t, 6)

	g.Mu.Lock()
	defer g.Mu.Unlock()
	assert.Equal(t, StatusActive, g.Status)
	assert.Equal(t, f.clock.Now(), g.StartedAt)
	assert.Equal(t, f.clock.Now().Add(25*time.Minute), g.NextAreaReduction)

	hunted := 0
	for _, p := range g.Players {
		if p.Team == models.TeamHunted {
			hunted++
			assert.Equal(t, g.HuntedID, p.ID)
		} else {
			assert.True(t, p.Team.IsHunter())
		}
	}
	assert.Equal(t, 1, hunted)
}

func TestSetArea(t *testing.T) {
	f := newFixture(t)
	g, users := f.newGame(t, 2)

	assert.ErrorIs(t, g.SetArea(ctx, users[1].ID, orb.Point{1, 1}, 100), ErrNotAuthorized)
	assert.ErrorIs(t, g.SetArea(ctx, f.host.ID, orb.Point{1, 1}, 0), ErrValidation)
	assert.ErrorIs(t, g.SetArea(ctx, f.host.ID, orb.Point{1, 95}, 100), ErrValidation)

	f.mb.clear()
	require.NoError(t, g.SetArea(ctx, f.host.ID, orb.Point{1, 1}, 100))
	assert.Equal(t, []GameEventType{EventGameUpdate, EventAreaUpdate}, f.mb.types())

	require.NoError(t, g.SetArea(ctx, f.host.ID, orb.Point{2, 2}, 200))
	g.Mu.Lock()
	assert.Equal(t, orb.Point{1, 1}, g.StartArea.Center, "start area keeps the first configuration")
	assert.Equal(t, orb.Point{2, 2}, g.Area.Center)
	assert.True(t, g.AreaSet)
	g.Mu.Unlock()
}

func TestSetPolygonArea(t *testing.T) {
	f := newFixture(t)
	g, users := f.newGame(t, 2)
	square := orb.Polygon{{{13.40, 52.50}, {13.41, 52.50}, {13.41, 52.51}, {13.40, 52.51}}}

	assert.ErrorIs(t, g.SetPolygonArea(ctx, users[1].ID, square), ErrNotAuthorized)
	assert.ErrorIs(t, g.SetPolygonArea(ctx, f.host.ID, orb.Polygon{{{0, 0}, {1, 1}}}), ErrValidation)
	assert.False(t, g.CanStart())

	f.mb.clear()
	require.NoError(t, g.SetPolygonArea(ctx, f.host.ID, square))
	assert.Equal(t, []GameEventType{EventGameUpdate, EventAreaUpdate}, f.mb.types())
	assert.True(t, g.CanStart())

	g.Mu.Lock()
	assert.Len(t, g.Area.Polygon[0], 5)
	assert.InDelta(t, 13.405, g.Area.Center.X(), 1e-9)
	assert.InDelta(t, 52.505, g.StartArea.Center.Y(), 1e-9)
	g.Mu.Unlock()

	// a later circle replaces the outline but not the start area
	require.NoError(t, g.SetArea(ctx, f.host.ID, orb.Point{2, 2}, 200))
	g.Mu.Lock()
	assert.InDelta(t, 13.405, g.StartArea.Center.X(), 1e-9)
	g.Mu.Unlock()

	st, err := f.repo.LoadSession(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, st.StartArea.Polygon[0], 5)
}

func TestSetAreaRejectedAfterFinish(t *testing.T) {
	f := newFixture(t)
	g, _ := f.activeGame(t, 3)
	require.NoError(t, g.End(ctx, f.host.ID))
	assert.ErrorIs(t, g.SetArea(ctx, f.host.ID, orb.Point{1, 1}, 100), ErrInvalidState)
	assert.ErrorIs(t, g.SetPolygonArea(ctx, f.host.ID, orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}), ErrInvalidState)
}

func TestSetKittyPerPlayer(t *testing.T) {
	f := newFixture(t)
	g, users := f.newGame(t, 2)

	assert.ErrorIs(t, g.SetKittyPerPlayer(ctx, users[1].ID, decimal.NewFromInt(5)), ErrNotAuthorized)
	assert.ErrorIs(t, g.SetKittyPerPlayer(ctx, f.host.ID, decimal.NewFromInt(-5)), ErrValidation)

	require.NoError(t, g.SetKittyPerPlayer(ctx, f.host.ID, decimal.RequireFromString("2.50")))
	assert.True(t, g.Snapshot().TotalKitty.Equal(decimal.RequireFromString("7.50")))

	require.NoError(t, g.SetArea(ctx, f.host.ID, orb.Point{1, 1}, 100))
	require.NoError(t, g.Start(ctx, f.host.ID))
	assert.ErrorIs(t, g.SetKittyPerPlayer(ctx, f.host.ID, decimal.NewFromInt(1)), ErrInvalidState)
}

func TestUpdateLocationCatchFinishesGame(t *testing.T) {
	f := newFixture(t)
	g, _ := f.activeGame(t, 3)
	hunted, hunters := huntedAndHunters(g)

	require.NoError(t, g.UpdateLocation(ctx, hunted, orb.Point{0, 0}))
	require.NoError(t, g.UpdateLocation(ctx, hunters[0], orb.Point{0.0003, 0.0004}))
	assert.Equal(t, StatusActive, g.CurrentStatus(), "50 m is not a catch")

	f.mb.clear()
	require.NoError(t, g.UpdateLocation(ctx, hunters[1], orb.Point{0, 0.00009}))
	assert.Equal(t, StatusFinished, g.CurrentStatus())
	assert.Equal(t, []GameEventType{EventGameFinished, EventGameUpdate}, f.mb.types())

	g.Mu.Lock()
	team := g.State.Player(hunters[1]).Team
	assert.Equal(t, ReasonProximityCaught, g.FinishReason)
	assert.Equal(t, TeamWinner(team), g.Winner)
	g.Mu.Unlock()

	finished := f.mb.events()[0]
	require.NotNil(t, finished.WinnerTeam)
	assert.Equal(t, team, *finished.WinnerTeam)

	assert.ErrorIs(t, g.UpdateLocation(ctx, hunted, orb.Point{1, 1}), ErrInvalidState)
}

func TestUpdateLocationBeforeStart(t *testing.T) {
	f := newFixture(t)
	g, users := f.newGame(t, 2)

	require.NoError(t, g.UpdateLocation(ctx, users[1].ID, orb.Point{0, 0}))
	require.NoError(t, g.UpdateLocation(ctx, users[2].ID, orb.Point{0, 0}))
	assert.Equal(t, StatusWaiting, g.CurrentStatus())

	assert.ErrorIs(t, g.UpdateLocation(ctx, uuid.New(), orb.Point{0, 0}), ErrNotInGame)
	assert.ErrorIs(t, g.UpdateLocation(ctx, users[1].ID, orb.Point{200, 0}), ErrValidation)
}

func TestFailedSaveLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	g, _ := f.activeGame(t, 3)
	hunted, _ := huntedAndHunters(g)

	f.repo.fail(errStorage)
	err := g.UpdateLocation(ctx, hunted, orb.Point{0, 0})
	assert.ErrorIs(t, err, errStorage)
	assert.Empty(t, f.mb.events())

	g.Mu.Lock()
	assert.False(t, g.State.Player(hunted).HasLocation())
	g.Mu.Unlock()

	assert.Error(t, g.End(ctx, f.host.ID))
	assert.Equal(t, StatusActive, g.CurrentStatus())

	f.repo.fail(nil)
	require.NoError(t, g.End(ctx, f.host.ID))
	assert.Equal(t, StatusFinished, g.CurrentStatus())
}

func TestSubtractKitty(t *testing.T) {
	f := newFixture(t)
	g, _ := f.activeGame(t, 3)
	hunted, hunters := huntedAndHunters(g)

	assert.ErrorIs(t, g.SubtractKitty(ctx, hunters[0], decimal.NewFromInt(1)), ErrNotAuthorized)
	assert.ErrorIs(t, g.SubtractKitty(ctx, uuid.New(), decimal.NewFromInt(1)), ErrNotInGame)
	assert.ErrorIs(t, g.SubtractKitty(ctx, hunted, decimal.Zero), ErrValidation)
	assert.ErrorIs(t, g.SubtractKitty(ctx, hunted, decimal.NewFromInt(31)), ErrValidation)

	require.NoError(t, g.SubtractKitty(ctx, hunted, decimal.RequireFromString("12.50")))
	assert.True(t, g.Snapshot().TotalKitty.Equal(decimal.RequireFromString("17.50")))
	assert.Equal(t, StatusActive, g.CurrentStatus())

	f.mb.clear()
	require.NoError(t, g.SubtractKitty(ctx, hunted, decimal.RequireFromString("17.50")))
	assert.Equal(t, StatusFinished, g.CurrentStatus())
	assert.Equal(t, []GameEventType{EventGameFinished, EventGameUpdate}, f.mb.types())

	ev := f.mb.events()[0]
	assert.Equal(t, ReasonKittyDepleted, ev.Reason)
	assert.Equal(t, WinnerHuntedOpponents, ev.Winner)
	assert.Nil(t, ev.WinnerTeam)

	assert.ErrorIs(t, g.SubtractKitty(ctx, hunted, decimal.NewFromInt(1)), ErrInvalidState)
}

func TestEnd(t *testing.T) {
	f := newFixture(t)
	g, users := f.newGame(t, 2)
	assert.ErrorIs(t, g.End(ctx, f.host.ID), ErrInvalidState, "cannot skip ACTIVE")

	require.NoError(t, g.SetArea(ctx, f.host.ID, orb.Point{1, 1}, 100))
	require.NoError(t, g.Start(ctx, f.host.ID))
	assert.ErrorIs(t, g.End(ctx, users[1].ID), ErrNotAuthorized)

	f.mb.clear()
	require.NoError(t, g.End(ctx, f.host.ID))
	assert.Equal(t, StatusFinished, g.CurrentStatus())
	require.Len(t, f.mb.events(), 2)
	assert.Equal(t, ReasonHostEnded, f.mb.events()[0].Reason)

	require.NoError(t, g.End(ctx, f.host.ID), "ending twice is a no-op")
	require.NoError(t, g.Finish(ctx, Verdict{Reason: ReasonKittyDepleted}))
	assert.Len(t, f.mb.events(), 2)

	g.Mu.Lock()
	assert.Equal(t, ReasonHostEnded, g.FinishReason)
	assert.Equal(t, f.clock.Now(), g.FinishedAt)
	g.Mu.Unlock()
}

func TestAddHint(t *testing.T) {
	f := newFixture(t)
	g, users := f.newGame(t, 2)

	_, err := g.AddHint(ctx, users[1].ID, "near the fountain")
	assert.ErrorIs(t, err, ErrNotAuthorized, "nobody is hunted yet")

	require.NoError(t, g.SetArea(ctx, f.host.ID, orb.Point{1, 1}, 100))
	require.NoError(t, g.Start(ctx, f.host.ID))
	hunted, hunters := huntedAndHunters(g)
	f.mb.clear()

	_, err = g.AddHint(ctx, hunters[0], "fake hint")
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = g.AddHint(ctx, hunted, "   ")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = g.AddHint(ctx, uuid.New(), "hi")
	assert.ErrorIs(t, err, ErrNotInGame)
	assert.Empty(t, f.mb.events())

	hint, err := g.AddHint(ctx, hunted, "  near the fountain ")
	require.NoError(t, err)
	assert.Equal(t, "near the fountain", hint.Content)

	stored, err := f.repo.ListHints(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, hint.ID, stored[0].ID)

	require.Len(t, f.mb.events(), 1)
	assert.Equal(t, EventHintAdded, f.mb.events()[0].Type)
	assert.Equal(t, hint.ID, f.mb.events()[0].Hint.ID)

	require.NoError(t, g.End(ctx, f.host.ID))
	_, err = g.AddHint(ctx, hunted, "too late")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPostChat(t *testing.T) {
	f := newFixture(t)
	g, users := f.newGame(t, 2)

	_, err := g.PostChat(ctx, users[1].ID, "team?", true)
	assert.ErrorIs(t, err, ErrPrecondition)
	_, err = g.PostChat(ctx, uuid.New(), "hello", false)
	assert.ErrorIs(t, err, ErrNotInGame)

	msg, err := g.PostChat(ctx, users[1].ID, "hello", false)
	require.NoError(t, err)
	assert.False(t, msg.TeamOnly)
	assert.Equal(t, EventChatMessage, f.mb.events()[len(f.mb.events())-1].Type)
}

func TestPostChatTeamOnly(t *testing.T) {
	f := newFixture(t)
	g, _ := f.activeGame(t, 7)
	_, hunters := huntedAndHunters(g)

	g.Mu.Lock()
	team := g.State.Player(hunters[0]).Team
	mates := g.State.TeamMembers(team)
	g.Mu.Unlock()

	msg, err := g.PostChat(ctx, hunters[0], "flank left", true)
	require.NoError(t, err)
	assert.True(t, msg.TeamOnly)
	assert.Equal(t, team, msg.Team)
	assert.Empty(t, f.mb.events(), "team chat is not broadcast")

	for _, id := range hunters {
		got := f.mb.playerEventsFor(id)
		if containsID(mates, id) {
			require.Len(t, got, 1)
			assert.Equal(t, msg.ID, got[0].Message.ID)
		} else {
			assert.Empty(t, got)
		}
	}

	history, err := f.repo.ListChat(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func TestSnapshotJSON(t *testing.T) {
	f := newFixture(t)
	g, _ := f.newGame(t, 0)

	raw, err := json.Marshal(g.Snapshot())
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Nil(t, doc["center"])
	assert.Nil(t, doc["radius"])
	assert.Equal(t, "10", doc["totalKitty"])
	assert.NotContains(t, doc, "area")
	players := doc["players"].([]interface{})
	assert.Nil(t, players[0].(map[string]interface{})["team"])
	assert.NotContains(t, players[0], "location")

	require.NoError(t, g.SetArea(ctx, f.host.ID, orb.Point{13.4, 52.5}, 250))
	raw, err = json.Marshal(g.Snapshot())
	require.NoError(t, err)
	doc = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	center := doc["center"].(map[string]interface{})
	assert.Equal(t, "Point", center["type"])
	assert.Equal(t, []interface{}{13.4, 52.5}, center["coordinates"])
	assert.Equal(t, 250.0, doc["radius"])
	assert.Equal(t, "Polygon", doc["area"].(map[string]interface{})["type"])
}

func TestActionsArePublishedInOrder(t *testing.T) {
	f := newFixture(t)
	actions := new(mockActionLog)
	records := make(chan models.ActionRecord, 16)
	actions.On("Publish", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		records <- args.Get(1).(models.ActionRecord)
	})
	f.store.Actions = actions

	g, _ := f.newGame(t, 2)
	require.NoError(t, g.SetArea(ctx, f.host.ID, orb.Point{1, 1}, 100))
	require.NoError(t, g.Start(ctx, f.host.ID))

	seen := map[string]int{}
	for i := 0; i < 5; i++ {
		select {
		case rec := <-records:
			assert.Equal(t, g.ID, rec.GameID)
			seen[rec.ActionType] = rec.ActionIndex
		case <-time.After(time.Second):
			t.Fatalf("only %d actions published", i)
		}
	}
	assert.Equal(t, 1, seen["game_create"])
	assert.Equal(t, 4, seen["set_area"])
	assert.Equal(t, 5, seen["game_start"])
	actions.AssertNumberOfCalls(t, "Publish", 5)
}

func TestActionIndexSurvivesReload(t *testing.T) {
	f := newFixture(t)
	g, _ := f.activeGame(t, 3)
	hunted, hunters := huntedAndHunters(g)

	actions := new(mockActionLog)
	records := make(chan models.ActionRecord, 4)
	actions.On("Publish", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		records <- args.Get(1).(models.ActionRecord)
	})
	logger, _ := test.NewNullLogger()
	fresh := NewGameStore(f.repo, f.mb, DefaultSettings(), logger)
	fresh.Actions = actions

	reloaded, err := fresh.Get(ctx, g.ID)
	require.NoError(t, err)
	_, err = reloaded.AddHint(ctx, hunted, "by the river")
	require.NoError(t, err)
	require.NoError(t, reloaded.UpdateLocation(ctx, hunters[0], orb.Point{13.4, 52.5}))

	// create, two joins, set_area and game_start used 1 through 5 before the reload
	var got []int
	for i := 0; i < 2; i++ {
		select {
		case rec := <-records:
			got = append(got, rec.ActionIndex)
		case <-time.After(time.Second):
			t.Fatalf("only %d actions published", i)
		}
	}
	assert.ElementsMatch(t, []int{6, 7}, got)

	st, err := f.repo.LoadSession(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, st.ActionIndex)
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	f := newFixture(t)
	g, users := f.newGame(t, 5)

	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			for k := 0; k < 20; k++ {
				assert.NoError(t, g.UpdateLocation(ctx, id, orb.Point{float64(i), float64(k)}))
			}
		}(i, u.ID)
	}
	wg.Wait()

	g.Mu.Lock()
	defer g.Mu.Unlock()
	for i, p := range g.Players {
		require.True(t, p.HasLocation())
		assert.Equal(t, orb.Point{float64(i), 19}, *p.Location)
	}
	assert.Len(t, f.mb.events(), len(users)-1+len(users)*20, "joins plus one update per location")
}
