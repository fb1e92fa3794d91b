// Package cli holds the interactive pieces of the waypoint command.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/waypoint/pkg/adapters/console"
	"github.com/aretw0/waypoint/pkg/domain"
)

// Player is the part of the SDK a play session drives.
type Player interface {
	State() domain.State
	ShowStep(ctx context.Context, ref domain.StepReference) error
	End(ctx context.Context, markComplete bool) error
}

// Help lists the play commands.
const Help = `commands:
  n, next        next step (completes the experience on the last one)
  p, prev        previous step
  c, complete    end and mark complete
  q, quit        dismiss
  x, close       close the container as the user would
  <ref>          jump to a step: index, +N/-N, first, last or a step id
  h, help        this text`

// Play reads commands from in until the experience ends or in is exhausted.
// A closed input dismisses whatever is still on screen.
func Play(ctx context.Context, p Player, factory *console.Factory, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for p.State().IsActive() {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read command: %w", err)
			}
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := execute(ctx, p, factory, strings.TrimSpace(scanner.Text()), out)
		if errors.Is(err, errHelp) {
			fmt.Fprintln(out, Help)
			continue
		}
		if err != nil {
			printSystemMessage(out, "%v", err)
		}
	}

	if p.State().IsActive() {
		return p.End(ctx, false)
	}
	return nil
}

var errHelp = errors.New("help")

func execute(ctx context.Context, p Player, factory *console.Factory, cmd string, out io.Writer) error {
	switch strings.ToLower(cmd) {
	case "":
		return nil
	case "h", "help", "?":
		return errHelp
	case "n", "next":
		if onLastStep(p.State()) {
			printSystemMessage(out, "completed")
			return p.End(ctx, true)
		}
		return p.ShowStep(ctx, domain.OffsetRef(1))
	case "p", "prev":
		return p.ShowStep(ctx, domain.OffsetRef(-1))
	case "c", "complete":
		return p.End(ctx, true)
	case "q", "quit":
		printSystemMessage(out, "dismissed")
		return p.End(ctx, false)
	case "x", "close":
		active := factory.Active()
		if active == nil {
			return console.ErrNotShown
		}
		if !active.Skippable() {
			return errors.New("this experience is not skippable")
		}
		if err := active.Close(); err != nil {
			return err
		}
		waitWhileEnding(p)
		printSystemMessage(out, "closed")
		return nil
	}

	ref, err := domain.ParseStepReference(cmd)
	if err != nil {
		return fmt.Errorf("unknown command %q (h for help)", cmd)
	}
	return p.ShowStep(ctx, ref)
}

// waitWhileEnding gives the asynchronous teardown after a user close a moment
// to reach idling so the prompt is not shown again.
func waitWhileEnding(p Player) {
	for i := 0; i < 50; i++ {
		if !p.State().IsActive() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func onLastStep(s domain.State) bool {
	if s.Experience == nil {
		return false
	}
	return s.Experience.FlatOffset(s.StepIndex) == s.Experience.StepCount()-1
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, ">>> %s\n", fmt.Sprintf(format, args...))
}
