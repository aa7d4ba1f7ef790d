package main

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/bandits/game"
	"github.com/brensch/bandits/rules"
)

func trial(power, rounds, hp, losses int) rules.Trial {
	return rules.Trial{
		ElfPower:  power,
		Outcome:   rules.Outcome{Rounds: rounds, HitPoints: hp, Score: rounds * hp},
		ElfLosses: losses,
		Lossless:  losses == 0,
	}
}

func TestDashboard_Update(t *testing.T) {
	cancelled := false
	m := newDashboard("canonical", game.MustParse(canonicalMap), rules.Bisect, newCalibrationRun(), func() { cancelled = true })

	view := m.View()
	assert.Contains(t, view, "canonical (4 goblins, 2 elves)")
	assert.Contains(t, view, "Strategy:   bisect")
	assert.Contains(t, view, "Best power: -")

	next, cmd := m.Update(trialMsg(trial(4, 46, 859, 1)))
	require.NotNil(t, cmd)
	m = next.(dashboard)
	next, _ = m.Update(trialMsg(trial(19, 26, 200, 0)))
	m = next.(dashboard)
	next, _ = m.Update(trialMsg(trial(15, 29, 172, 0)))
	m = next.(dashboard)

	view = m.View()
	assert.Contains(t, view, "Trials:     3")
	assert.Contains(t, view, "Best power: 15")
	assert.Contains(t, view, "   15      29   172    4988           0  lossless")
	assert.Contains(t, view, "    4      46   859   39514           1\n")

	next, cmd = m.Update(calibrationDone{cal: rules.Calibration{Power: 15, Outcome: rules.Outcome{Score: 4988}}})
	m = next.(dashboard)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, m.View(), "Done: power 15, score 4988")
	assert.False(t, cancelled)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.True(t, cancelled)
}

func TestDashboard_ShowsFailure(t *testing.T) {
	m := newDashboard("x", game.MustParse("#GE#"), rules.Linear, newCalibrationRun(), func() {})
	next, _ := m.Update(calibrationDone{err: rules.ErrNoLosslessPower})
	assert.Contains(t, next.View(), "Failed: "+rules.ErrNoLosslessPower.Error())
}

func TestDashboard_KeepsRecentTrials(t *testing.T) {
	m := newDashboard("x", game.MustParse("#GE#"), rules.Linear, newCalibrationRun(), func() {})
	for p := 4; p < 4+recentTrials+3; p++ {
		next, _ := m.Update(trialMsg(trial(p, 10, 10, 1)))
		m = next.(dashboard)
	}
	view := m.View()
	assert.NotContains(t, view, "\n    6  ")
	assert.Contains(t, view, "\n    7  ")
	assert.Contains(t, view, "Trials:     15")
}

func TestDashboard_Tick(t *testing.T) {
	m := newDashboard("x", game.MustParse("#GE#"), rules.Linear, newCalibrationRun(), func() {})
	next, cmd := m.Update(TickMsg(m.startTime.Add(2500 * time.Millisecond)))
	require.NotNil(t, cmd)
	assert.Contains(t, next.View(), "Elapsed:    2.5s")
}

func TestWaitForTrial(t *testing.T) {
	run := newCalibrationRun()
	run.trials <- trial(4, 1, 1, 1)
	boom := errors.New("boom")
	run.finish(rules.Calibration{}, boom)

	msg := waitForTrial(run)()
	assert.Equal(t, trialMsg(trial(4, 1, 1, 1)), msg)

	msg = waitForTrial(run)()
	done, ok := msg.(calibrationDone)
	require.True(t, ok)
	assert.ErrorIs(t, done.err, boom)
}
