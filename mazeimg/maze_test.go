package mazeimg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Deterministic(t *testing.T) {
	a, err := Generate(Options{Width: 21, Height: 15, Seed: 42})
	require.NoError(t, err)
	b, err := Generate(Options{Width: 21, Height: 15, Seed: 42})
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different mazes (-a +b):\n%s", diff)
	}

	c, err := Generate(Options{Width: 21, Height: 15, Seed: 7})
	require.NoError(t, err)
	assert.NotEqual(t, a.Grid, c.Grid)
}

func TestGenerate_Shape(t *testing.T) {
	m, err := Generate(Options{Width: 20, Height: 10, Seed: 1})
	require.NoError(t, err)

	assert.Equal(t, 21, m.Width)
	assert.Equal(t, 11, m.Height)
	require.NoError(t, m.Validate())

	assert.Equal(t, Position{1, 1}, m.Start)
	assert.Equal(t, START, m.Grid[1][1])
	assert.Equal(t, GOAL, m.Grid[m.Goal.Y][m.Goal.X])

	for x := 0; x < m.Width; x++ {
		assert.Equal(t, WALL, m.Grid[0][x], "top border at %d", x)
		assert.Equal(t, WALL, m.Grid[m.Height-1][x], "bottom border at %d", x)
	}
	for y := 0; y < m.Height; y++ {
		assert.Equal(t, WALL, m.Grid[y][0], "left border at %d", y)
		assert.Equal(t, WALL, m.Grid[y][m.Width-1], "right border at %d", y)
	}
}

func TestGenerate_TooSmall(t *testing.T) {
	_, err := Generate(Options{Width: 3, Height: 31})
	assert.ErrorIs(t, err, ErrInvalidMaze)
}

func TestGenerate_SmallestMazeIsSolvable(t *testing.T) {
	m, err := Generate(Options{Width: MinSize, Height: MinSize, Seed: 3})
	require.NoError(t, err)
	assert.NotNil(t, m.Solve())
}

func TestSolve_RouteIsConnected(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		m, err := Generate(Options{Width: 31, Height: 31, Seed: seed})
		require.NoError(t, err)

		route := m.Solve()
		require.NotEmpty(t, route, "seed %d", seed)
		assert.Equal(t, m.Start, route[0])
		assert.Equal(t, m.Goal, route[len(route)-1])

		for i := 1; i < len(route); i++ {
			step := abs(route[i].X-route[i-1].X) + abs(route[i].Y-route[i-1].Y)
			assert.Equal(t, 1, step, "seed %d step %d", seed, i)
			assert.True(t, m.IsWalkable(route[i]))
		}
	}
}

func TestSolve_Unreachable(t *testing.T) {
	m, err := Generate(Options{Width: 7, Height: 7, Seed: 1})
	require.NoError(t, err)
	for _, dir := range []Direction{UP, DOWN, LEFT, RIGHT} {
		n := m.Goal.Add(dir)
		if m.inside(n) {
			m.Grid[n.Y][n.X] = WALL
		}
	}
	assert.Nil(t, m.Solve())
}

func TestMaze_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "maze.json")
	m, err := Generate(Options{Width: 11, Height: 9, Seed: 99})
	require.NoError(t, err)

	require.NoError(t, m.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	if diff := cmp.Diff(m, loaded); diff != "" {
		t.Errorf("loaded maze differs (-saved +loaded):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{not json"), 0644))
	_, err = Load(garbage)
	assert.ErrorContains(t, err, "failed to parse maze file")

	ragged := filepath.Join(dir, "ragged.json")
	require.NoError(t, os.WriteFile(ragged, []byte(`{"width":5,"height":5,"maze":[[0,0,0,0,0]]}`), 0644))
	_, err = Load(ragged)
	assert.ErrorIs(t, err, ErrInvalidMaze)
}
