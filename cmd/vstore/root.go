package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vango-dev/vstore/internal/config"
)

// cli holds the state shared by all commands.
type cli struct {
	v          *viper.Viper
	dir        string
	configPath string
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{
		v:      config.NewViper(),
		stdout: stdout,
		stderr: stderr,
	}

	root := &cobra.Command{
		Use:   "vstore",
		Short: "Reactive state stores with pluggable persistence",
		Long: `vstore serves a set of demo stores (counter, theme, cart, todos,
directory and course requests) over HTTP and WebSocket, or drives them
from a terminal UI.

Configuration is read from vstore.json or vstore.toml, then .env.local
and .env, then VSTORE_* environment variables and flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&c.dir, "dir", "C", ".", "Directory holding the config and .env files")
	pf.StringVarP(&c.configPath, "config", "c", "", "Config file (default: vstore.json or vstore.toml in --dir)")
	pf.String("backend", config.BackendMemory, "Storage backend: memory, file, sqlite or s3")
	pf.String("storage-dir", config.DefaultStorageDir, "Directory of the file backend")
	pf.String("dsn", "", "SQLite database path (default: vstore.db in --storage-dir)")
	pf.Bool("watch", false, "Rehydrate persisted stores on external changes")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.Duration("latency", 0, "Simulated latency of remote actions")

	c.bind(root, map[string]string{
		"storage.backend": "backend",
		"storage.dir":     "storage-dir",
		"storage.dsn":     "dsn",
		"storage.watch":   "watch",
		"log.level":       "log-level",
		"log.format":      "log-format",
		"demo.latency":    "latency",
	}, true)

	root.AddCommand(
		c.serveCmd(),
		c.demoCmd(),
		c.inspectCmd(),
		versionCmd(),
	)
	return root
}

// bind maps config keys to flags of cmd.
func (c *cli) bind(cmd *cobra.Command, keys map[string]string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for key, name := range keys {
		if err := c.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// config resolves the effective configuration.
func (c *cli) config() (*config.Config, error) {
	return config.Resolve(c.dir, c.configPath, c.v)
}
