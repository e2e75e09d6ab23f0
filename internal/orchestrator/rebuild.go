package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// rebuildTimeout is the hard ceiling on /rebuild's git pull + build.
const rebuildTimeout = 120 * time.Second

// rebuildTailChars bounds how much combined output /rebuild reports back.
const rebuildTailChars = 3500

// cmdRestart exits so the service manager relaunches the process, per the
// exit-code contract: 0 is a normal shutdown, not a crash.
func (o *Orchestrator) cmdRestart(ctx context.Context, chatID int64) {
	o.deliverText(ctx, chatID, "Restarting.")
	exitFunc(0)
}

// cmdRebuild runs a git pull and a build under rebuildTimeout, reports the
// tail of combined output, then exits 0 so the service manager relaunches
// the freshly built binary. A failing step reports the output and returns
// without exiting, leaving the running binary untouched.
func (o *Orchestrator) cmdRebuild(ctx context.Context, chatID int64) {
	buildCtx, cancel := context.WithTimeout(ctx, rebuildTimeout)
	defer cancel()

	steps := [][]string{
		{"git", "pull", "--ff-only"},
		{"go", "build", "./..."},
	}
	var out bytes.Buffer
	for _, step := range steps {
		fmt.Fprintf(&out, "$ %s\n", strings.Join(step, " "))
		cmd := exec.CommandContext(buildCtx, step[0], step[1:]...)
		cmd.Dir = o.repoDir
		cmd.Stdout = &out
		cmd.Stderr = &out
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(&out, "\n%s failed: %v\n", strings.Join(step, " "), err)
			o.deliverText(ctx, chatID, "Rebuild failed.\n"+tailOutput(out.String()))
			return
		}
	}
	o.deliverText(ctx, chatID, "Rebuild succeeded.\n"+tailOutput(out.String()))
	exitFunc(0)
}

func tailOutput(s string) string {
	if len(s) <= rebuildTailChars {
		return s
	}
	return "...\n" + s[len(s)-rebuildTailChars:]
}
