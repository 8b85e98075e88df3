package cli

import (
	"context"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/teamcutter/ipfilter/internal/domain"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

func withSpinner(ctx context.Context, desc string) (stop func()) {
	spinner := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				spinner.Finish()
				return
			default:
				spinner.Add(1)
				time.Sleep(100 * time.Millisecond)
			}
		}
	}()
	return func() {
		close(done)
		spinner.Finish()
	}
}

// progressView draws run events: a percentage bar when the total is known,
// a spinner otherwise.
type progressView struct {
	out         io.Writer
	bar         *progressbar.ProgressBar
	determinate bool
}

func newProgressView(out io.Writer) *progressView {
	return &progressView{out: out}
}

func (v *progressView) render(ev domain.ProgressEvent) {
	determinate := ev.Percent != domain.Indeterminate

	if v.bar == nil || v.determinate != determinate {
		v.reset(determinate)
	}

	v.bar.Describe(ev.Caption)
	if determinate {
		v.bar.Set(ev.Percent)
	} else {
		v.bar.Add(1)
	}
}

func (v *progressView) reset(determinate bool) {
	v.finish()

	total := -1
	if determinate {
		total = 100
	}
	v.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(v.out),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)
	v.determinate = determinate
}

func (v *progressView) finish() {
	if v.bar != nil {
		v.bar.Finish()
		v.bar = nil
	}
}
