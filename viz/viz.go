// Package viz implements a minimal playback window that animates a finished
// simulation's recorded per-agent trajectories. It does not drive the
// simulation — it only replays already-computed agent.Agent.Path/
// Orientations logs tick by tick, exactly as the original's draw() routine
// animates a finished run rather than rendering one live. Grounded on
// original_source/library/src/Main.cpp's post-hoc draw() and on
// pthm-soup/game/game.go's ecs.NewMap/ecs.NewFilter idiom, repurposed to a
// tiny 3-component world instead of the teacher's 7-component organism one.
package viz

import (
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/crowdsim/agent"
	"github.com/pthm-cable/crowdsim/config"
)

// Position is an entity's current playback-frame world position.
type Position struct {
	X, Y float64
}

// Radius is an entity's body radius, for drawing its disc.
type Radius struct {
	R float64
}

// GroupColor is the draw color derived from an agent's GroupID, precomputed
// once at entity creation rather than hashed every frame.
type GroupColor struct {
	Color rl.Color
}

var palette = []rl.Color{rl.SkyBlue, rl.Orange, rl.Lime, rl.Pink, rl.Gold, rl.Purple, rl.Red, rl.Green}

func colorForGroup(groupID int) rl.Color {
	if groupID < 0 {
		groupID = -groupID
	}
	return palette[groupID%len(palette)]
}

// playbackEntity mirrors one agent's recorded trajectory plus the ecs
// entity handle that renders its current frame.
type playbackEntity struct {
	entity ecs.Entity
	path   []struct{ X, Y float64 }
	orient []struct{ X, Y float64 }
	radius float64
}

// Play opens a window and replays every agent's recorded path/orientation
// log in lockstep, looping once the longest log is exhausted. It blocks
// until the window is closed.
func Play(agents []*agent.Agent, cfg config.ViewerConfig) error {
	if len(agents) == 0 {
		return nil
	}

	rl.InitWindow(int32(cfg.Width), int32(cfg.Height), "crowdsim playback")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.TargetFPS))

	world := ecs.NewWorld()
	mapper := ecs.NewMap3[Position, Radius, GroupColor](world)
	filter := ecs.NewFilter3[Position, Radius, GroupColor](world)

	entities := make([]playbackEntity, len(agents))
	maxLen := 0
	for i, a := range agents {
		pos := Position{X: a.Path[0].X, Y: a.Path[0].Y}
		rad := Radius{R: a.Radius}
		col := GroupColor{Color: colorForGroup(a.GroupID)}
		ent := mapper.NewEntity(&pos, &rad, &col)

		path := make([]struct{ X, Y float64 }, len(a.Path))
		for j, p := range a.Path {
			path[j] = struct{ X, Y float64 }{p.X, p.Y}
		}
		orient := make([]struct{ X, Y float64 }, len(a.Orientations))
		for j, o := range a.Orientations {
			orient[j] = struct{ X, Y float64 }{o.X, o.Y}
		}

		entities[i] = playbackEntity{entity: ent, path: path, orient: orient, radius: a.Radius}
		if len(path) > maxLen {
			maxLen = len(path)
		}
	}

	posMap := ecs.NewMap1[Position](world)

	frame := 0
	lastAdvance := time.Now()
	const frameInterval = 33 * time.Millisecond // ~30 recorded steps/sec playback rate

	for !rl.WindowShouldClose() {
		if time.Since(lastAdvance) >= frameInterval {
			frame = (frame + 1) % maxLen
			lastAdvance = time.Now()

			for _, pe := range entities {
				if frame >= len(pe.path) {
					continue
				}
				p := pe.path[frame]
				posMap.Set(pe.entity, &Position{X: p.X, Y: p.Y})
			}
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		query := filter.Query()
		for query.Next() {
			pos, rad, col := query.Get()
			sx := float32(pos.X * cfg.Scale)
			sy := float32(pos.Y * cfg.Scale)
			sr := float32(rad.R * cfg.Scale)
			rl.DrawCircle(int32(sx), int32(sy), sr, col.Color)
		}
		query.Close()

		rl.EndDrawing()
	}

	return nil
}
