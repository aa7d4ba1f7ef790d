package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// TrialSummary aggregates the calibration trials recorded for one map.
type TrialSummary struct {
	MapID    string `json:"map_id"`
	Trials   int64  `json:"trials"`
	MaxPower int64  `json:"max_power"`
	// Power and Score describe the weakest lossless trial; both are zero if
	// no trial was lossless.
	Power int64 `json:"power"`
	Score int64 `json:"score"`
}

// SummarizeTrials queries trial files written by TrialWriter with DuckDB.
func SummarizeTrials(ctx context.Context, files []string) ([]TrialSummary, error) {
	if len(files) == 0 {
		return nil, nil
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()
	_, _ = db.ExecContext(ctx, "PRAGMA threads=4")

	quoted := make([]string, 0, len(files))
	for _, f := range files {
		quoted = append(quoted, "'"+strings.ReplaceAll(f, "'", "''")+"'")
	}

	q := `SELECT
			map_id,
			count(*) AS trials,
			max(elf_power) AS max_power,
			min(elf_power) FILTER (WHERE lossless) AS power,
			arg_min(score, elf_power) FILTER (WHERE lossless) AS score
		FROM read_parquet([` + strings.Join(quoted, ",") + `])
		GROUP BY map_id
		ORDER BY map_id`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var out []TrialSummary
	for rows.Next() {
		var (
			s            TrialSummary
			power, score sql.NullInt64
		)
		if err := rows.Scan(&s.MapID, &s.Trials, &s.MaxPower, &power, &score); err != nil {
			return nil, fmt.Errorf("scan trial summary: %w", err)
		}
		s.Power = power.Int64
		s.Score = score.Int64
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read trial summaries: %w", err)
	}
	return out, nil
}
