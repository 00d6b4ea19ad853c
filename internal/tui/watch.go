// Package tui renders live queue progress: one line per running job,
// a glyph per batch, and an overall frame progress bar.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vleroux/upscale-pipeline/internal/model"
)

// Messages sent by the observer bridge.
type (
	jobStartedMsg struct {
		job          *model.Job
		totalBatches int
		totalFrames  int
	}
	batchStateMsg struct {
		index int
		state model.BatchState
	}
	framesMsg struct {
		delta int
	}
	jobFinishedMsg struct {
		job *model.Job
	}
	// queueDoneMsg ends the program once the driver returns.
	queueDoneMsg struct{}
)

// App is the watch-mode bubbletea model.
type App struct {
	state   RunState
	spinner spinner.Model
	done    bool
}

// NewApp creates the watch model.
func NewApp() *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = jobStyle
	return &App{spinner: sp}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case jobStartedMsg:
		a.state.ApplyJobStarted(msg.job, msg.totalBatches, msg.totalFrames)
		return a, nil

	case batchStateMsg:
		a.state.ApplyBatchState(msg.index, msg.state)
		return a, nil

	case framesMsg:
		a.state.ApplyFrames(msg.delta)
		return a, nil

	case jobFinishedMsg:
		a.state.ApplyJobFinished(msg.job)
		return a, nil

	case queueDoneMsg:
		a.done = true
		return a, tea.Quit
	}

	return a, nil
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Upscale Pipeline"))
	b.WriteString("\n")

	if a.state.Active() {
		b.WriteString(fmt.Sprintf("%s %s  (%d/%d batches)\n",
			a.spinner.View(),
			jobStyle.Render(a.state.CurrentJob),
			a.state.CompletedBatches(),
			a.state.TotalBatches,
		))

		glyphs := make([]string, len(a.state.BatchStates))
		for i, st := range a.state.BatchStates {
			glyphs[i] = BatchGlyph(st)
		}
		b.WriteString("  " + strings.Join(glyphs, "") + "\n")

		if a.state.TotalFrames > 0 {
			b.WriteString(fmt.Sprintf("  %s %d/%d frames\n",
				RenderBar(a.state.FramesDone, a.state.TotalFrames, 30),
				a.state.FramesDone,
				a.state.TotalFrames,
			))
		}
	} else if !a.done {
		b.WriteString(mutedStyle.Render("Waiting for next job...") + "\n")
	}

	for _, outcome := range a.state.Done {
		if outcome.Completed {
			b.WriteString(completedStyle.Render(fmt.Sprintf("✓ %s → %s", outcome.Name, outcome.OutputPath)))
		} else {
			b.WriteString(failedStyle.Render(fmt.Sprintf("✗ %s: %s", outcome.Name, outcome.Error)))
		}
		b.WriteString("\n")
	}

	if !a.done {
		b.WriteString(helpStyle.Render("[q] Quit"))
	}
	return b.String()
}

// Observer bridges pipeline events into a running bubbletea program.
// Safe to call from any goroutine.
type Observer struct {
	program *tea.Program
}

// NewObserver creates an observer feeding the given program.
func NewObserver(p *tea.Program) *Observer {
	return &Observer{program: p}
}

func (o *Observer) JobStarted(job *model.Job, totalBatches, totalFrames int) {
	o.program.Send(jobStartedMsg{job: job, totalBatches: totalBatches, totalFrames: totalFrames})
}

func (o *Observer) BatchStateChanged(b *model.Batch) {
	o.program.Send(batchStateMsg{index: b.Index, state: b.State})
}

func (o *Observer) FramesProcessed(batchIndex, delta int) {
	o.program.Send(framesMsg{delta: delta})
}

func (o *Observer) JobFinished(job *model.Job) {
	o.program.Send(jobFinishedMsg{job: job})
}

// QueueDone tells the program the whole run is over.
func (o *Observer) QueueDone() {
	o.program.Send(queueDoneMsg{})
}
