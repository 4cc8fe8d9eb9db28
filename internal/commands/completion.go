package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/colonyops/refine/internal/core/session"
	"github.com/colonyops/refine/internal/engine"
	"github.com/urfave/cli/v3"
)

// SessionIDCompleter completes "<session-id> [version]" positionals: active
// session ids first, then the chosen session's versions. Typing a flag falls
// back to flag completion.
func SessionIDCompleter(app *engine.App) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		args := cmd.Args().Slice()
		if n := len(args); n > 0 && strings.HasPrefix(args[n-1], "-") {
			cli.DefaultCompleteWithFlags(ctx, cmd)
			return
		}

		w := cmd.Root().Writer
		switch len(args) {
		case 0:
			completeSessions(ctx, w, app)
		case 1:
			completeVersions(ctx, w, app, args[0])
		}
	}
}

func completeSessions(ctx context.Context, w io.Writer, app *engine.App) {
	sessions, err := app.Sessions.ListSessions(ctx)
	if err != nil {
		return
	}
	for _, s := range sessions {
		if s.State == session.StateActive {
			_, _ = fmt.Fprintf(w, "%s:%s\n", s.ID, s.Name)
		}
	}
}

func completeVersions(ctx context.Context, w io.Writer, app *engine.App, id string) {
	history, err := app.Sessions.ExportHistory(ctx, id)
	if err != nil {
		return
	}
	for _, e := range history {
		// zsh treats ':' as the value/description separator
		_, _ = fmt.Fprintf(w, "%d:%s\n", e.ID, strings.ReplaceAll(e.Summary, ":", " "))
	}
}
