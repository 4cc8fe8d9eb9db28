package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/session"
	"github.com/colonyops/refine/internal/core/version"
	"github.com/colonyops/refine/pkg/iojson"
	"github.com/urfave/cli/v3"
)

// errorReason maps an operation error to the reason reported in JSON output.
func errorReason(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "session_not_found"
	case errors.Is(err, version.ErrNotFound):
		return "version_not_found"
	case errors.Is(err, session.ErrRoundInProgress):
		return "round_in_progress"
	case errors.Is(err, session.ErrClosed):
		return "session_closed"
	case errors.Is(err, session.ErrStorage):
		return "storage_failed"
	default:
		return ""
	}
}

// fail reports err. In JSON mode the error is written to stderr as an
// iojson.Error and the command exits 1 without repeating the message.
func fail(jsonOutput bool, err error) error {
	if !jsonOutput {
		return err
	}
	_ = iojson.WriteError(iojson.Error{Reason: errorReason(err), Message: err.Error()})
	return cli.Exit("", 1)
}

func writeJSON(c *cli.Command, v any) error {
	return iojson.WriteWith(c.Root().Writer, os.Stderr, v)
}

// sessionArg returns the first positional argument.
func sessionArg(c *cli.Command) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", errors.New("session id is required")
	}
	return id, nil
}

// versionArg parses the positional argument at i as a version id.
func versionArg(c *cli.Command, i int) (int, error) {
	return parseVersion(c.Args().Get(i))
}

// parseVersion accepts "3" or "v3".
func parseVersion(raw string) (int, error) {
	if raw == "" {
		return 0, errors.New("version id is required")
	}
	id, err := strconv.Atoi(strings.TrimPrefix(raw, "v"))
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid version id %q", raw)
	}
	return id, nil
}

func printFindings(w io.Writer, findings []analysis.Finding) {
	if len(findings) == 0 {
		_, _ = fmt.Fprintln(w, "No findings")
		return
	}
	for _, f := range findings {
		_, _ = fmt.Fprintf(w, "  %s\n", f)
	}
}
