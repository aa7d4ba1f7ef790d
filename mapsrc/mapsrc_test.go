package mapsrc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/bandits/game"
)

const puzzlePage = `<!DOCTYPE html>
<html><body><main><article class="day-desc">
<h2>--- Beverage Bandits ---</h2>
<p>Units take their turns in this order:</p>
<pre><code>#######           #######
#.G.E.#           #.1.2.#
#######           #######
</code></pre>
<p>Here is a larger example:</p>
<pre><code>#######
#.G...#
#...EG#
#.#.#G#
#..G#E#
#.....#
#######
</code></pre>
<p>Some <code>inline code</code> and a list of scores:</p>
<pre><code>Outcome: 47 * 590 = 27730</code></pre>
<pre><code>#######
#G..#E#
#E#E.E#
#G.##.#
#...#E#
#...E.#
#######
</code></pre>
</article></main></body></html>`

func TestExtractMaps_SkipsNonMapBlocks(t *testing.T) {
	maps, err := ExtractMaps(strings.NewReader(puzzlePage))
	require.NoError(t, err)
	require.Len(t, maps, 2)

	assert.Equal(t, "#.G...#", maps[0].Rows()[1])
	assert.Equal(t, 4, maps[0].Count(game.Goblin))
	assert.Equal(t, "#G..#E#", maps[1].Rows()[1])
}

func TestExtractMaps_NoMaps(t *testing.T) {
	_, err := ExtractMaps(strings.NewReader("<html><body><p>nothing here</p></body></html>"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(txt, []byte("#####\n#G.E#\n#####\n"), 0o644))
	b, err := Load(txt, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"#####", "#G.E#", "#####"}, b.Rows())

	page := filepath.Join(dir, "day15.html")
	require.NoError(t, os.WriteFile(page, []byte(puzzlePage), 0o644))
	b, err = Load(page, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, b.Count(game.Elf))

	_, err = Load(page, 2)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("#?#"), 0o644))
	_, err = Load(bad, 0)
	var pe *game.ParseError
	assert.True(t, errors.As(err, &pe), "got %v", err)

	_, err = Load(filepath.Join(dir, "missing.txt"), 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
