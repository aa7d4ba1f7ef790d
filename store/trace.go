// Package store exports battles and calibration runs as Parquet files so they
// can be replayed or analysed offline.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/bandits/game"
	"github.com/brensch/bandits/rules"
)

// RoundRow is the battlefield after one completed round.
//
// Round 0 is the initial map. The last row of a trace has Final set and shows
// the board when the battle ended, which may be partway through a round that
// did not count.
type RoundRow struct {
	BattleID    string    `parquet:"battle_id,dict" json:"battle_id"`
	Round       int32     `parquet:"round" json:"round"`
	Final       bool      `parquet:"final" json:"final"`
	Width       int32     `parquet:"width" json:"width"`
	Height      int32     `parquet:"height" json:"height"`
	ElfPower    int32     `parquet:"elf_power" json:"elf_power"`
	GoblinPower int32     `parquet:"goblin_power" json:"goblin_power"`
	Rows        []string  `parquet:"rows" json:"rows"`
	Units       []UnitRow `parquet:"units" json:"units"`

	// Counters for the events since the previous row.
	Moves   int32 `parquet:"moves" json:"moves"`
	Attacks int32 `parquet:"attacks" json:"attacks"`
	Kills   int32 `parquet:"kills" json:"kills"`
}

type UnitRow struct {
	Faction string `parquet:"faction,dict" json:"faction"`
	X       int32  `parquet:"x" json:"x"`
	Y       int32  `parquet:"y" json:"y"`
	HP      int32  `parquet:"hp" json:"hp"`
}

// TraceRecorder snapshots a battlefield every time a round completes. Hook
// Observe into the battle with rules.WithObserver.
type TraceRecorder struct {
	battleID    string
	field       *game.Battlefield
	elfPower    int32
	goblinPower int32

	rows    []RoundRow
	pending RoundRow
}

// NewTraceRecorder records the initial state of field straight away.
func NewTraceRecorder(battleID string, field *game.Battlefield, elfPower, goblinPower int) *TraceRecorder {
	r := &TraceRecorder{
		battleID:    battleID,
		field:       field,
		elfPower:    int32(elfPower),
		goblinPower: int32(goblinPower),
	}
	r.snapshot(0, false)
	return r
}

// Observe consumes battle events.
func (r *TraceRecorder) Observe(ev rules.Event) {
	switch ev.Kind {
	case rules.Moved:
		r.pending.Moves++
	case rules.Attacked:
		r.pending.Attacks++
	case rules.Killed:
		r.pending.Attacks++
		r.pending.Kills++
	case rules.RoundCompleted:
		r.snapshot(ev.Round, false)
	case rules.BattleEnded:
		r.snapshot(ev.Round, true)
	}
}

func (r *TraceRecorder) snapshot(round int, final bool) {
	row := r.pending
	row.BattleID = r.battleID
	row.Round = int32(round)
	row.Final = final
	row.Width = int32(r.field.Width())
	row.Height = int32(r.field.Height())
	row.ElfPower = r.elfPower
	row.GoblinPower = r.goblinPower
	row.Rows = r.field.Rows()
	row.Units = unitRows(r.field)
	r.rows = append(r.rows, row)
	r.pending = RoundRow{}
}

// Rows returns the rows recorded so far.
func (r *TraceRecorder) Rows() []RoundRow { return r.rows }

func unitRows(b *game.Battlefield) []UnitRow {
	units := b.Units()
	out := make([]UnitRow, 0, len(units))
	for _, p := range units {
		t := b.At(p)
		out = append(out, UnitRow{
			Faction: t.Faction.String(),
			X:       int32(p.X),
			Y:       int32(p.Y),
			HP:      int32(t.HP),
		})
	}
	return out
}

// WriteTraceParquet writes rows to outPath through a temp file and rename, so
// readers never see a partial trace.
func WriteTraceParquet(outPath string, rows []RoundRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("write trace: no rows")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "battle_trace_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// ReadTrace loads a trace written by WriteTraceParquet.
func ReadTrace(path string) ([]RoundRow, error) {
	rows, err := parquet.ReadFile[RoundRow](path)
	if err != nil {
		return nil, fmt.Errorf("read trace %s: %w", path, err)
	}
	return rows, nil
}
