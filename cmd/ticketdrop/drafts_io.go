package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ticketdrop/ticketdrop/internal/types"
)

// readInput returns args joined by spaces, or the contents of path ("-" for
// stdin) when args is empty.
func readInput(args []string, path string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if path == "" {
		path = "-"
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) // #nosec G304 - user supplied input file
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

// loadDrafts decodes drafts written by `ticketdrop extract --json`. Both the
// {"issues": [...]} envelope and a bare array are accepted. Drafts are kept
// as written; Linear decides per issue what it accepts.
func loadDrafts(r io.Reader) (types.IssueDraftCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return types.IssueDraftCollection{}, fmt.Errorf("read drafts: %w", err)
	}

	var c types.IssueDraftCollection
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []types.IssueDraft
		if err := json.Unmarshal(data, &list); err != nil {
			return c, fmt.Errorf("parse drafts: %w", err)
		}
		c = types.NewCollection(list...)
	} else if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse drafts: %w", err)
	}
	return c, nil
}

func openDrafts(path string) (types.IssueDraftCollection, error) {
	if path == "" || path == "-" {
		return loadDrafts(os.Stdin)
	}
	f, err := os.Open(path) // #nosec G304 - user supplied drafts file
	if err != nil {
		return types.IssueDraftCollection{}, err
	}
	defer f.Close()
	return loadDrafts(f)
}
