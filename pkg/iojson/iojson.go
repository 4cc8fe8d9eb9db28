// Package iojson holds helpers for reading and writing JSON from a command
// line interface perspective.
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Error is the JSON shape written for failed commands. Status and Reason
// mirror the round result so scripts can branch on either.
type Error struct {
	Status  string         `json:"status"`
	Reason  string         `json:"reason,omitempty"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func jsonError(msg string, jsonErr error) string {
	msgBytes, _ := json.Marshal(msg)
	errBytes, _ := json.Marshal(jsonErr.Error())
	return fmt.Sprintf(`{"status":"error","message":%s,"data":{"json_error":%s}}`, msgBytes, errBytes)
}

// MarshalError renders e as indented JSON. If marshaling fails, a hand
// built object carrying the marshal error is returned instead.
func MarshalError(e Error) string {
	if e.Status == "" {
		e.Status = "error"
	}

	bits, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return jsonError(e.Message, err)
	}

	return string(bits)
}

// WriteError writes e to stderr.
func WriteError(e Error) error {
	_, err := fmt.Fprintln(os.Stderr, MarshalError(e))
	return err
}

// WriteWith writes obj as indented JSON to w, reporting marshal failures to ew.
func WriteWith(w io.Writer, ew io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		errStr := jsonError("error marshaling in iojson.Write", err)
		_, err = fmt.Fprintln(ew, errStr)
		return err
	}

	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// Write calls WriteWith with [os.Stdout] and [os.Stderr]
func Write(obj any) error {
	return WriteWith(os.Stdout, os.Stderr, obj)
}
