package main

import (
	"context"
	"errors"
	"net"
	"os"

	"linenotes/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch {
		case !apiErr.FromServer():
			lines = append(lines, "hint: verify LINENOTES_API_URL points to a linenotes server.")
		case errors.Is(err, api.ErrUnauthorized):
			lines = append(lines, "hint: verify LINENOTES_API_TOKEN matches the server's api_token_hash.")
		case errors.Is(err, api.ErrNotFound):
			lines = append(lines, "hint: lines are 1-based; list a file's annotations with: linenotes show <path>")
		case errors.Is(err, api.ErrConflict):
			lines = append(lines, "hint: the target already has annotations; check it with: linenotes show <path>")
		case apiErr.Code == "persistence_failure":
			lines = append(lines, "hint: the notes directory could not be written; check its permissions and free space.")
		}
		if apiErr.Retryable() {
			lines = append(lines, "hint: retry shortly or reduce concurrent heavy requests (sync/patch/export).")
		} else if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase LINENOTES_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a linenotes server is running at LINENOTES_API_URL.",
			"hint: start local server manually with: linenotes srv",
			"hint: you can increase LINENOTES_HTTP_TIMEOUT for slower environments.",
		)
		if snapHint := snapStartHint(); snapHint != "" {
			lines = append(lines, snapHint)
		}
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func snapStartHint() string {
	if os.Getenv("SNAP") == "" && os.Getenv("SNAP_NAME") == "" {
		return ""
	}
	return "hint: in snap installs, start the daemon with: snap start linenotes.daemon"
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
