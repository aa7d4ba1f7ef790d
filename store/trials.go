package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/bandits/rules"
)

// TrialRow is one calibration trial: a full battle at a fixed elf power.
type TrialRow struct {
	MapID       string `parquet:"map_id,dict"`
	ElfPower    int32  `parquet:"elf_power"`
	GoblinPower int32  `parquet:"goblin_power"`
	Rounds      int32  `parquet:"rounds"`
	HitPoints   int32  `parquet:"hit_points"`
	Score       int64  `parquet:"score"`
	Winner      string `parquet:"winner,dict"`
	ElfLosses   int32  `parquet:"elf_losses"`
	Lossless    bool   `parquet:"lossless"`
}

// NewTrialRow flattens a calibration trial.
func NewTrialRow(mapID string, goblinPower int, t rules.Trial) TrialRow {
	return TrialRow{
		MapID:       mapID,
		ElfPower:    int32(t.ElfPower),
		GoblinPower: int32(goblinPower),
		Rounds:      int32(t.Outcome.Rounds),
		HitPoints:   int32(t.Outcome.HitPoints),
		Score:       int64(t.Outcome.Score),
		Winner:      t.Outcome.Winner.String(),
		ElfLosses:   int32(t.ElfLosses),
		Lossless:    t.Lossless,
	}
}

// TrialWriter streams trials into a Parquet file as a calibration runs. The
// file is written next to its destination with a .tmp suffix and renamed into
// place by Finalize.
type TrialWriter struct {
	tmpPath string
	outPath string

	file   *os.File
	writer *parquet.GenericWriter[TrialRow]
	rows   int
}

func NewTrialWriter(outPath string) (*TrialWriter, error) {
	if outPath == "" {
		return nil, fmt.Errorf("outPath is required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tmp parquet: %w", err)
	}

	w := parquet.NewGenericWriter[TrialRow](f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	w.SetKeyValueMetadata("schema", "calibration_trial_v1")

	return &TrialWriter{tmpPath: tmpPath, outPath: outPath, file: f, writer: w}, nil
}

func (w *TrialWriter) OutPath() string { return w.outPath }
func (w *TrialWriter) Rows() int       { return w.rows }

func (w *TrialWriter) Write(rows ...TrialRow) error {
	if w.writer == nil {
		return fmt.Errorf("trial writer is closed")
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := w.writer.Write(rows); err != nil {
		return fmt.Errorf("write trials: %w", err)
	}
	w.rows += len(rows)
	return nil
}

// Finalize closes the file and moves it into place. With no rows written the
// temp file is removed and outPath is returned empty.
func (w *TrialWriter) Finalize() (outPath string, rows int, err error) {
	if w.writer == nil {
		return "", 0, nil
	}

	closeErr := w.writer.Close()
	w.writer = nil
	_ = w.file.Sync()
	fileErr := w.file.Close()
	w.file = nil

	if closeErr != nil {
		_ = os.Remove(w.tmpPath)
		return "", 0, fmt.Errorf("close parquet writer: %w", closeErr)
	}
	if fileErr != nil {
		_ = os.Remove(w.tmpPath)
		return "", 0, fmt.Errorf("close parquet file: %w", fileErr)
	}
	if w.rows == 0 {
		_ = os.Remove(w.tmpPath)
		return "", 0, nil
	}
	if err := os.Rename(w.tmpPath, w.outPath); err != nil {
		return "", 0, fmt.Errorf("rename parquet: %w", err)
	}
	return w.outPath, w.rows, nil
}

// ReadTrials loads a file written by TrialWriter.
func ReadTrials(path string) ([]TrialRow, error) {
	rows, err := parquet.ReadFile[TrialRow](path)
	if err != nil {
		return nil, fmt.Errorf("read trials %s: %w", path, err)
	}
	return rows, nil
}
