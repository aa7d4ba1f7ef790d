// Package mapsrc loads battle maps from disk. Besides plain map files it can
// pull example maps out of a saved puzzle page, where they sit in
// <pre><code> blocks.
package mapsrc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brensch/bandits/game"
)

// Load reads a map from path. For .html and .htm files the block-th map found
// in the page (0-based) is returned; block is ignored for other files.
func Load(path string, block int) (*game.Battlefield, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		maps, err := ExtractMaps(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if block < 0 || block >= len(maps) {
			return nil, fmt.Errorf("%s: map block %d requested, page has %d", path, block, len(maps))
		}
		return maps[block], nil
	default:
		b, err := Read(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return b, nil
	}
}

// Read parses a plain-text map.
func Read(r io.Reader) (*game.Battlefield, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	return game.Parse(string(raw))
}

// ExtractMaps returns every <pre><code> block in an HTML document that parses
// as a battle map with at least one unit, in document order. Blocks holding
// prose, annotated boards or other puzzles' data are skipped.
func ExtractMaps(r io.Reader) ([]*game.Battlefield, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var maps []*game.Battlefield
	doc.Find("pre > code").Each(func(_ int, s *goquery.Selection) {
		b, err := game.Parse(s.Text())
		if err != nil || len(b.Units()) == 0 {
			return
		}
		maps = append(maps, b)
	})
	if len(maps) == 0 {
		return nil, fmt.Errorf("no battle maps found in page")
	}
	return maps, nil
}
