// Command privacyctl drives the privacy console collections from a terminal.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/collection"
	"github.com/privacyops/console/internal/querycache"
	"github.com/privacyops/console/internal/workspace"
)

var (
	configPath  string
	profileName string
	jsonOutput  bool
	timeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "privacyctl",
	Short:         "Terminal client for the privacy console",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func defaultConfigPath() string {
	if p := os.Getenv("PRIVACYCTL_CONFIG"); p != "" {
		return p
	}
	path, err := profilesPath()
	if err != nil {
		return "profiles.toml"
	}
	return path
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "profiles file")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "profile name (default: the active profile)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 20*time.Second, "upstream request timeout")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
}

// openWorkspace builds a workspace for the signed-in profile.
func openWorkspace(prof Profile) (*workspace.Workspace, error) {
	if prof.Token == "" {
		return nil, fmt.Errorf("not signed in, run privacyctl login")
	}
	if workspace.Expired(prof.Token, time.Now()) {
		return nil, fmt.Errorf("session expired, run privacyctl login")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	deps := collection.Deps{
		Client: api.NewClient(prof.URL, nil, timeout),
		Cache:  querycache.New(querycache.NewMemoryStore(), querycache.Options{Logger: logger}),
		Logger: logger,
	}
	return workspace.New(prof.Token, deps, collection.Options{}), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errorText(err))
		os.Exit(1)
	}
}
