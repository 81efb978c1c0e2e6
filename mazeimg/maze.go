// Package mazeimg generates the maze puzzle and renders it to the bitmap
// the tracker samples.
package mazeimg

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

type Direction struct {
	X, Y int
}

var (
	UP    = Direction{0, -1}
	DOWN  = Direction{0, 1}
	LEFT  = Direction{-1, 0}
	RIGHT = Direction{1, 0}
)

type CellType int

const (
	WALL CellType = iota
	PATH
	START
	GOAL
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) Add(d Direction) Position {
	return Position{p.X + d.X, p.Y + d.Y}
}

// MinSize is the smallest maze edge Generate accepts.
const MinSize = 5

var ErrInvalidMaze = errors.New("invalid maze")

type Options struct {
	Width  int   `yaml:"width" json:"width"`
	Height int   `yaml:"height" json:"height"`
	Seed   int64 `yaml:"seed" json:"seed"`
}

// Maze is a grid of cells indexed [y][x]. It is the persisted form of a
// puzzle; the bitmap is always re-rendered from it.
type Maze struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Seed   int64        `json:"seed"`
	Start  Position     `json:"start"`
	Goal   Position     `json:"goal"`
	Grid   [][]CellType `json:"maze"`
}

// Generate carves a maze with a recursive backtracker, knocks out a few
// extra walls to add loops, places START at (1,1) and GOAL on the path
// cell farthest from it. Even dimensions are bumped to the next odd size.
func Generate(opts Options) (*Maze, error) {
	if opts.Width < MinSize || opts.Height < MinSize {
		return nil, fmt.Errorf("%w: size %dx%d below minimum %d", ErrInvalidMaze, opts.Width, opts.Height, MinSize)
	}

	m := &Maze{Width: opts.Width, Height: opts.Height, Seed: opts.Seed}
	if m.Width%2 == 0 {
		m.Width++
	}
	if m.Height%2 == 0 {
		m.Height++
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	m.Grid = make([][]CellType, m.Height)
	for y := 0; y < m.Height; y++ {
		m.Grid[y] = make([]CellType, m.Width)
		for x := 0; x < m.Width; x++ {
			m.Grid[y][x] = WALL
		}
	}

	for y := 1; y < m.Height-1; y += 2 {
		for x := 1; x < m.Width-1; x += 2 {
			m.Grid[y][x] = PATH
		}
	}

	stack := []Position{{1, 1}}
	visited := map[Position]bool{{1, 1}: true}
	directions := []Direction{{0, -2}, {2, 0}, {0, 2}, {-2, 0}}

	for len(stack) > 0 {
		current := stack[len(stack)-1]

		var neighbors []Position
		for _, dir := range directions {
			next := current.Add(dir)
			if next.X >= 1 && next.X < m.Width-1 &&
				next.Y >= 1 && next.Y < m.Height-1 &&
				!visited[next] {
				neighbors = append(neighbors, next)
			}
		}

		if len(neighbors) > 0 {
			next := neighbors[rng.Intn(len(neighbors))]
			visited[next] = true

			wallX := current.X + (next.X-current.X)/2
			wallY := current.Y + (next.Y-current.Y)/2
			m.Grid[wallY][wallX] = PATH

			stack = append(stack, next)
		} else {
			stack = stack[:len(stack)-1]
		}
	}

	for i := 0; i < m.Width*m.Height/30; i++ {
		x := 2 + rng.Intn((m.Width-3)/2)*2
		y := 2 + rng.Intn((m.Height-3)/2)*2
		if x >= m.Width-1 || y >= m.Height-1 {
			continue
		}

		for _, dir := range []Direction{DOWN, RIGHT, UP, LEFT} {
			n := Position{x, y}.Add(dir)
			if m.inside(n) && m.Grid[n.Y][n.X] == PATH {
				m.Grid[y][x] = PATH
				break
			}
		}
	}

	m.Start = Position{1, 1}
	m.Grid[1][1] = START

	maxDist := 0
	bestGoal := Position{m.Width - 2, m.Height - 2}
	for y := 1; y < m.Height-1; y += 2 {
		for x := 1; x < m.Width-1; x += 2 {
			if m.Grid[y][x] == PATH {
				dist := abs(x-1) + abs(y-1)
				if dist > maxDist {
					maxDist = dist
					bestGoal = Position{x, y}
				}
			}
		}
	}

	m.Goal = bestGoal
	m.Grid[bestGoal.Y][bestGoal.X] = GOAL
	return m, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func (m *Maze) inside(p Position) bool {
	return p.X >= 0 && p.X < m.Width && p.Y >= 0 && p.Y < m.Height
}

func (m *Maze) IsWalkable(p Position) bool {
	return m.inside(p) && m.Grid[p.Y][p.X] != WALL
}

// Solve returns the shortest START to GOAL route, both ends included, or
// nil when GOAL is unreachable.
func (m *Maze) Solve() []Position {
	prev := map[Position]Position{m.Start: m.Start}
	queue := []Position{m.Start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == m.Goal {
			var route []Position
			for p := current; p != m.Start; p = prev[p] {
				route = append(route, p)
			}
			route = append(route, m.Start)
			for i, j := 0, len(route)-1; i < j; i, j = i+1, j-1 {
				route[i], route[j] = route[j], route[i]
			}
			return route
		}

		for _, dir := range []Direction{UP, DOWN, LEFT, RIGHT} {
			next := current.Add(dir)
			if _, seen := prev[next]; seen || !m.IsWalkable(next) {
				continue
			}
			prev[next] = current
			queue = append(queue, next)
		}
	}
	return nil
}

// Validate checks the grid shape and that START and GOAL are on it.
func (m *Maze) Validate() error {
	if m.Width < MinSize || m.Height < MinSize {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidMaze, m.Width, m.Height)
	}
	if len(m.Grid) != m.Height {
		return fmt.Errorf("%w: %d rows, want %d", ErrInvalidMaze, len(m.Grid), m.Height)
	}
	for y, row := range m.Grid {
		if len(row) != m.Width {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidMaze, y, len(row), m.Width)
		}
	}
	if !m.inside(m.Start) || m.Grid[m.Start.Y][m.Start.X] != START {
		return fmt.Errorf("%w: start (%d, %d) is not a START cell", ErrInvalidMaze, m.Start.X, m.Start.Y)
	}
	if !m.inside(m.Goal) || m.Grid[m.Goal.Y][m.Goal.X] != GOAL {
		return fmt.Errorf("%w: goal (%d, %d) is not a GOAL cell", ErrInvalidMaze, m.Goal.X, m.Goal.Y)
	}
	return nil
}

// Load reads a maze saved by Save.
func Load(path string) (*Maze, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read maze file: %w", err)
	}

	var m Maze
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse maze file: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Maze) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create maze directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal maze: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write maze file: %w", err)
	}
	return nil
}
