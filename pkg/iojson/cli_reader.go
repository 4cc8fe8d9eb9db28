package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// FileReader decodes a JSON document from the --file flag or stdin.
type FileReader[T any] struct {
	fileFlagValue string
}

func (fr *FileReader[T]) Flag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "path to JSON file (reads from stdin if not provided)",
		Destination: &fr.fileFlagValue,
	}
}

func (fr *FileReader[T]) Read() (T, error) {
	var input T

	reader, closer, err := open(fr.fileFlagValue, "use -f flag or pipe JSON input")
	if err != nil {
		return input, err
	}
	defer closer()

	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return input, fmt.Errorf("decode JSON: %w", err)
	}

	return input, nil
}

// TextReader reads raw text from the --file flag or stdin.
type TextReader struct {
	// Limit rejects input longer than this many bytes. Zero means unlimited.
	Limit int64

	fileFlagValue string
}

func (tr *TextReader) Flag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "path to source file (reads from stdin if not provided)",
		Destination: &tr.fileFlagValue,
	}
}

// Path returns the --file value, empty when reading stdin.
func (tr *TextReader) Path() string {
	return tr.fileFlagValue
}

func (tr *TextReader) Read() (string, error) {
	reader, closer, err := open(tr.fileFlagValue, "use -f flag or pipe source input")
	if err != nil {
		return "", err
	}
	defer closer()

	if tr.Limit > 0 {
		reader = io.LimitReader(reader, tr.Limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	if tr.Limit > 0 && int64(len(data)) > tr.Limit {
		return "", fmt.Errorf("input exceeds %d bytes", tr.Limit)
	}
	return string(data), nil
}

// open returns the named file, or stdin when path is empty. Reading from an
// interactive terminal is refused since the command would block forever.
func open(path, hint string) (io.Reader, func(), error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open file: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, nil, fmt.Errorf("no input provided (stdin is a terminal); %s", hint)
	}
	return os.Stdin, func() {}, nil
}
