package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"linenotes/internal/models"
)

func requireAtLeastArgs(min int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < min {
			return errors.New(message)
		}
		return nil
	}
}

func requireRangeArgs(min, max int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < min || len(args) > max {
			return errors.New(message)
		}
		return nil
	}
}

// parseLine converts a 1-based line argument to the 0-based line used by
// the API.
func parseLine(raw string) (int, error) {
	line, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || line < 1 {
		return 0, fmt.Errorf("invalid line %q: lines start at 1", raw)
	}
	return line - 1, nil
}

func parseLines(raw []string) ([]int, error) {
	out := make([]int, 0, len(raw))
	for _, value := range raw {
		line, err := parseLine(value)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func displayLine(line int) int {
	return line + 1
}

// projectPath resolves a path argument against the working directory and
// returns it relative to the project root.
func projectPath(root, raw string) (string, error) {
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", err
	}
	return models.RelativePath(root, abs)
}
