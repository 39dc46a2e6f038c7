// Package cli implements the witlink command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/witlink/pkg/buildinfo"
	"github.com/matzehuels/witlink/pkg/cache"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "witlink"

	// Environment variables read by the CLI.
	envComposer = "WITLINK_COMPOSER"
	envRedisURL = "WITLINK_REDIS_URL"
	envMongoURL = "WITLINK_MONGO_URL"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "witlink links WebAssembly components into a composition",
		Long: `witlink resolves which component instance satisfies every import of a
WebAssembly component composition, checks WIT descriptors for missing
dependencies, and drives an external composer (wac) to produce the final
component together with a manifest of what was linked.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			c.Logger.Debug(buildinfo.String())
			cmd.SetContext(withLogger(ctx, c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.resolveDepsCommand())
	root.AddCommand(c.composeCommand())
	root.AddCommand(c.plugCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Caches
// =============================================================================

// newArtifactCache picks the cache backend for fetched binaries: redis when
// WITLINK_REDIS_URL is set, else mongo when WITLINK_MONGO_URL is set, else
// files under the cache directory. noCache disables caching.
func (c *CLI) newArtifactCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if url := os.Getenv(envRedisURL); url != "" {
		rc, err := cache.NewRedisCache(ctx, url)
		if err != nil {
			return nil, err
		}
		c.Logger.Debug("using redis cache")
		return cache.NewPrefixed(rc, appName+":"), nil
	}
	if uri := os.Getenv(envMongoURL); uri != "" {
		mc, err := cache.NewMongoCache(ctx, uri, appName)
		if err != nil {
			return nil, err
		}
		c.Logger.Debug("using mongo cache")
		return mc, nil
	}
	dir, err := cacheDir()
	if err != nil {
		c.Logger.Warn("no cache directory, caching disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(filepath.Join(dir, "artifacts"))
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/witlink/).
func cacheDir() (string, error) {
	return cache.DefaultDir()
}

// composerPath returns the composer binary: the flag value, else
// WITLINK_COMPOSER, else wac on PATH.
func composerPath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(envComposer); env != "" {
		return env
	}
	return "wac"
}
