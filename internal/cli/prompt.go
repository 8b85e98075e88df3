package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/teamcutter/ipfilter/internal/domain"
)

// promptConflicts asks on the terminal whether to retry a failed write.
// Without a terminal every conflict is skipped.
type promptConflicts struct {
	mu          sync.Mutex
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func newPromptConflicts(in io.Reader, out io.Writer) *promptConflicts {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &promptConflicts{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: interactive,
	}
}

func (p *promptConflicts) Resolve(app, path string, err error) domain.ConflictDecision {
	if !p.interactive {
		return domain.ConflictSkip
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s Couldn't write the filter for %s\n", yellow("!"), bold(app))
	fmt.Fprintf(p.out, "  %s %s\n", cyan("path:"), path)
	fmt.Fprintf(p.out, "  %s %v\n", cyan("error:"), err)
	fmt.Fprintf(p.out, "Close the application and %s, or %s? [r/S] ", bold("retry"), bold("skip"))

	line, _ := p.in.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "r" || answer == "retry" {
		return domain.ConflictRetry
	}
	return domain.ConflictSkip
}
