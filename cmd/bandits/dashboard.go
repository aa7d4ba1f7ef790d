package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/bandits/game"
	"github.com/brensch/bandits/rules"
)

const recentTrials = 12

type trialMsg rules.Trial

type calibrationDone struct {
	cal rules.Calibration
	err error
}

// calibrationRun is a search running in the background. cal and err are set
// before finished is closed, and trials is closed after that.
type calibrationRun struct {
	trials   chan rules.Trial
	finished chan struct{}
	cal      rules.Calibration
	err      error
}

func newCalibrationRun() *calibrationRun {
	return &calibrationRun{
		trials:   make(chan rules.Trial, 64),
		finished: make(chan struct{}),
	}
}

func (r *calibrationRun) finish(cal rules.Calibration, err error) {
	r.cal, r.err = cal, err
	close(r.finished)
	close(r.trials)
}

func (r *calibrationRun) wait() (rules.Calibration, error) {
	<-r.finished
	return r.cal, r.err
}

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// waitForTrial yields the next trial, or the final result once the run has
// finished.
func waitForTrial(run *calibrationRun) tea.Cmd {
	return func() tea.Msg {
		t, ok := <-run.trials
		if !ok {
			cal, err := run.wait()
			return calibrationDone{cal: cal, err: err}
		}
		return trialMsg(t)
	}
}

type dashboard struct {
	mapID    string
	strategy rules.Strategy
	units    [2]int

	trials []rules.Trial
	best   int
	result *calibrationDone

	startTime time.Time
	now       time.Time

	run    *calibrationRun
	cancel context.CancelFunc
}

func newDashboard(mapID string, field *game.Battlefield, strategy rules.Strategy, run *calibrationRun, cancel context.CancelFunc) dashboard {
	now := time.Now()
	return dashboard{
		mapID:     mapID,
		strategy:  strategy,
		units:     [2]int{game.Goblin: field.Count(game.Goblin), game.Elf: field.Count(game.Elf)},
		startTime: now,
		now:       now,
		run:       run,
		cancel:    cancel,
	}
}

func (m dashboard) Init() tea.Cmd {
	return tea.Batch(waitForTrial(m.run), tickCmd())
}

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.cancel()
			return m, tea.Quit
		}
	case TickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	case trialMsg:
		t := rules.Trial(msg)
		m.trials = append(m.trials, t)
		if t.Lossless && (m.best == 0 || t.ElfPower < m.best) {
			m.best = t.ElfPower
		}
		return m, waitForTrial(m.run)
	case calibrationDone:
		m.result = &msg
		return m, tea.Quit
	}
	return m, nil
}

func (m dashboard) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Map:        %s (%d goblins, %d elves)\n", m.mapID, m.units[game.Goblin], m.units[game.Elf])
	fmt.Fprintf(&b, "Strategy:   %s\n", m.strategy)
	fmt.Fprintf(&b, "Trials:     %d\n", len(m.trials))
	fmt.Fprintf(&b, "Elapsed:    %s\n", m.now.Sub(m.startTime).Round(100*time.Millisecond))
	if m.best > 0 {
		fmt.Fprintf(&b, "Best power: %d\n", m.best)
	} else {
		b.WriteString("Best power: -\n")
	}

	b.WriteString("\npower  rounds    hp   score  elves lost\n")
	start := max(0, len(m.trials)-recentTrials)
	for _, t := range m.trials[start:] {
		mark := ""
		if t.Lossless {
			mark = "  lossless"
		}
		fmt.Fprintf(&b, "%5d  %6d  %4d  %6d  %10d%s\n",
			t.ElfPower, t.Outcome.Rounds, t.Outcome.HitPoints, t.Outcome.Score, t.ElfLosses, mark)
	}

	if m.result != nil {
		if m.result.err != nil {
			fmt.Fprintf(&b, "\nFailed: %v\n", m.result.err)
		} else {
			fmt.Fprintf(&b, "\nDone: power %d, score %d\n", m.result.cal.Power, m.result.cal.Outcome.Score)
		}
	}
	b.WriteString("\nPress q to quit.\n")
	return b.String()
}

// runDashboard calibrates in the background while the dashboard follows the
// trials. Quitting the dashboard cancels the search.
func runDashboard(ctx context.Context, mapID string, field *game.Battlefield, opts rules.CalibrateOptions) (rules.Calibration, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := newCalibrationRun()
	next := opts.OnTrial
	opts.OnTrial = func(t rules.Trial) {
		if next != nil {
			next(t)
		}
		select {
		case run.trials <- t:
		case <-ctx.Done():
		}
	}

	go func() {
		run.finish(rules.Calibrate(ctx, field, opts))
	}()

	if _, err := tea.NewProgram(newDashboard(mapID, field, opts.Strategy, run, cancel)).Run(); err != nil {
		cancel()
		_, _ = run.wait()
		return rules.Calibration{}, fmt.Errorf("dashboard: %w", err)
	}

	// A no-op if the search already finished; otherwise the user quit early.
	cancel()
	return run.wait()
}
