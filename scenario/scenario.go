// Package scenario reads the whitespace-delimited scenario file describing
// a simulation's super-region extents and initial agent parameters.
// Grounded on original_source/library/src/Main.cpp's setupScenario: a
// four-scalar header, an agent count, then fixed-width per-agent records.
package scenario

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pthm-cable/crowdsim/vecmath"
)

// AgentSpec is one parsed agent record. Velocity is always zero, GoalRadius
// is always 1, and MaxSpeed is always 2 — all three are scenario-file
// constants the source hardcodes rather than reads (see Main.cpp's
// AgentInitialParameters), not per-record fields.
type AgentSpec struct {
	ID             int
	GroupID        int
	Position       vecmath.Vec2
	Goal           vecmath.Vec2
	PreferredSpeed float64
	Radius         float64
	GoalRadius     float64
	MaxSpeed       float64
}

// Scenario is a fully parsed scenario file.
type Scenario struct {
	// Origin and Size describe the super-region: Origin = (xMin, yMin),
	// Size = (xMax-xMin, yMax-yMin).
	Origin vecmath.Vec2
	Size   vecmath.Vec2
	Agents []AgentSpec
}

const (
	defaultGoalRadius = 1
	defaultMaxSpeed   = 2
)

// Load opens and parses path.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a scenario from r: header "xMin xMax yMin yMax", then "N",
// then N records of "gid x y goalX goalY preferredSpeed radius".
func Parse(r io.Reader) (*Scenario, error) {
	sc := newTokenScanner(r)

	xMin, err := sc.float64("xMin")
	if err != nil {
		return nil, err
	}
	xMax, err := sc.float64("xMax")
	if err != nil {
		return nil, err
	}
	yMin, err := sc.float64("yMin")
	if err != nil {
		return nil, err
	}
	yMax, err := sc.float64("yMax")
	if err != nil {
		return nil, err
	}

	n, err := sc.int("agent count")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("scenario: negative agent count %d", n)
	}

	s := &Scenario{
		Origin: vecmath.Vec2{X: xMin, Y: yMin},
		Size:   vecmath.Vec2{X: xMax - xMin, Y: yMax - yMin},
		Agents: make([]AgentSpec, 0, n),
	}

	for i := 0; i < n; i++ {
		gid, err := sc.int("gid")
		if err != nil {
			return nil, err
		}
		x, err := sc.float64("x")
		if err != nil {
			return nil, err
		}
		y, err := sc.float64("y")
		if err != nil {
			return nil, err
		}
		goalX, err := sc.float64("goal_x")
		if err != nil {
			return nil, err
		}
		goalY, err := sc.float64("goal_y")
		if err != nil {
			return nil, err
		}
		speed, err := sc.float64("preferred_speed")
		if err != nil {
			return nil, err
		}
		radius, err := sc.float64("radius")
		if err != nil {
			return nil, err
		}
		s.Agents = append(s.Agents, AgentSpec{
			ID:             i,
			GroupID:        gid,
			Position:       vecmath.Vec2{X: x, Y: y},
			Goal:           vecmath.Vec2{X: goalX, Y: goalY},
			PreferredSpeed: speed,
			Radius:         radius,
			GoalRadius:     defaultGoalRadius,
			MaxSpeed:       defaultMaxSpeed,
		})
	}
	return s, nil
}

// tokenScanner reads whitespace-delimited numeric tokens, wrapping parse
// failures and EOF with enough context to diagnose a malformed scenario
// file (InvalidScenario, per the error-handling design).
type tokenScanner struct {
	sc *bufio.Scanner
}

func newTokenScanner(r io.Reader) *tokenScanner {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	return &tokenScanner{sc: sc}
}

func (t *tokenScanner) next(field string) (string, error) {
	if !t.sc.Scan() {
		if err := t.sc.Err(); err != nil {
			return "", fmt.Errorf("scenario: reading %s: %w", field, err)
		}
		return "", fmt.Errorf("scenario: unexpected end of file reading %s", field)
	}
	return t.sc.Text(), nil
}

func (t *tokenScanner) float64(field string) (float64, error) {
	tok, err := t.next(field)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("scenario: %s: %q is not a number: %w", field, tok, err)
	}
	return v, nil
}

func (t *tokenScanner) int(field string) (int, error) {
	tok, err := t.next(field)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("scenario: %s: %q is not an integer: %w", field, tok, err)
	}
	return v, nil
}
