package main

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linenotes/internal/config"
)

var (
	commandsFence = regexp.MustCompile("(?s)## Commands\\s*```bash\\n(.*?)```")
	configBullet  = regexp.MustCompile("(?m)^- `([a-z_.]+)`")
	longFlag      = regexp.MustCompile(`--([a-z][a-z-]*)`)
	envKey        = regexp.MustCompile(`LINENOTES_[A-Z0-9_]+`)
)

// readmeUsage maps a command path such as "config get" to its README line.
func readmeUsage(t *testing.T) map[string]string {
	t.Helper()
	m := commandsFence.FindStringSubmatch(readReadme(t))
	require.NotNil(t, m, "README needs a bash block under ## Commands")

	usage := map[string]string{}
	for _, line := range strings.Split(m[1], "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "linenotes ")
		if !ok {
			continue
		}
		var words []string
		for _, field := range strings.Fields(rest) {
			if strings.ContainsAny(field[:1], "<[(-") {
				break
			}
			words = append(words, field)
		}
		usage[strings.Join(words, " ")] = strings.TrimSpace(line)
	}
	return usage
}

// leafCommands returns the runnable commands keyed by path below the root.
func leafCommands(root *cobra.Command) map[string]*cobra.Command {
	out := map[string]*cobra.Command{}
	var walk func(cmd *cobra.Command, prefix string)
	walk = func(cmd *cobra.Command, prefix string) {
		for _, child := range cmd.Commands() {
			if child.Hidden || child.Name() == "help" || child.Name() == "completion" {
				continue
			}
			path := strings.TrimSpace(prefix + " " + child.Name())
			if child.HasSubCommands() {
				walk(child, path)
				continue
			}
			out[path] = child
		}
	}
	walk(root, "")
	return out
}

func TestReadmeDocumentsEveryCommandWithItsArguments(t *testing.T) {
	cfg := config.Default()
	leaves := leafCommands(newRootCmd(&cfg))
	usage := readmeUsage(t)

	for path, cmd := range leaves {
		line, ok := usage[path]
		if !assert.True(t, ok, "README is missing %q", path) {
			continue
		}
		// Use carries the positional syntax; the README may add flags after it.
		parent := strings.TrimSuffix(path, cmd.Name())
		want := "linenotes " + parent + cmd.Use
		assert.True(t, line == want || strings.HasPrefix(line, want+" "),
			"README usage %q does not start with %q", line, want)

		for _, m := range longFlag.FindAllStringSubmatch(line, -1) {
			assert.NotNil(t, cmd.Flag(m[1]), "README shows --%s for %q but the command has no such flag", m[1], path)
		}
	}
	for path := range usage {
		_, ok := leaves[path]
		assert.True(t, ok, "README documents %q which is not a command", path)
	}
}

func TestReadmeSupportedConfigKeysMatchAllowedKeys(t *testing.T) {
	readme := readReadme(t)
	_, section, ok := strings.Cut(readme, "Supported config keys:")
	require.True(t, ok, "README needs a 'Supported config keys:' list")
	if end := strings.Index(section, "\n\n#"); end >= 0 {
		section = section[:end]
	}

	var documented []string
	for _, m := range configBullet.FindAllStringSubmatch(section, -1) {
		documented = append(documented, m[1])
	}
	allowed := append([]string(nil), config.AllowedKeys()...)
	slices.Sort(documented)
	slices.Sort(allowed)
	assert.Equal(t, allowed, slices.Compact(documented))
}

func TestReadmeRuntimeEnvironmentKeysDocumented(t *testing.T) {
	documented := envKey.FindAllString(readReadme(t), -1)
	for _, key := range []string{
		"LINENOTES_API_URL",
		"LINENOTES_PROJECT_ROOT",
		"LINENOTES_BACKEND",
		"LINENOTES_AUTHOR",
		"LINENOTES_NOTES_DIR",
		"LINENOTES_RENAME_FALLBACK",
		"LINENOTES_HTTP_TIMEOUT",
		logLevelEnvKey,
		"LINENOTES_CONFIG_DIR",
		"LINENOTES_TRUST_PROJECT_CONFIG",
		"LINENOTES_API_TOKEN",
		"LINENOTES_ALLOW_REMOTE",
	} {
		assert.Contains(t, documented, key)
	}
}

func readReadme(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	data, err := os.ReadFile(filepath.Join(filepath.Dir(file), "..", "..", "README.md"))
	require.NoError(t, err)
	return string(data)
}
