package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/privacyops/console/internal/api"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session token in a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL, _ := cmd.Flags().GetString("url")
		username, _ := cmd.Flags().GetString("username")
		redisAddr, _ := cmd.Flags().GetString("redis")

		cfg, err := loadProfiles(configPath)
		if err != nil {
			return err
		}
		name := profileName
		if name == "" {
			name = cfg.Active
		}
		if name == "" {
			name = defaultProfile
		}
		prof := cfg.Profiles[name]
		if baseURL != "" {
			prof.URL = baseURL
		}
		if redisAddr != "" {
			prof.Redis = redisAddr
		}
		if prof.URL == "" {
			return fmt.Errorf("--url is required for a new profile")
		}
		if username == "" {
			username = prof.Username
		}

		in := bufio.NewReader(cmd.InOrStdin())
		if username == "" {
			if username, err = prompt(cmd.ErrOrStderr(), in, "Username: "); err != nil {
				return err
			}
		}
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		password, err := readPassword(in)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		sess, err := login(cmd.Context(), prof.URL, api.Credentials{Username: username, Password: password})
		if err != nil {
			return err
		}
		prof.Username = sess.User.Username
		if prof.Username == "" {
			prof.Username = username
		}
		prof.Token = sess.Token
		cfg.Profiles[name] = prof
		cfg.Active = name
		if err := saveProfiles(configPath, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (profile %s)\n", prof.Username, name)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session token of a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProfiles(configPath)
		if err != nil {
			return err
		}
		name, prof, err := cfg.resolve(profileName)
		if err != nil {
			return err
		}
		if prof.Token != "" {
			client := api.NewClient(prof.URL, api.StaticToken(prof.Token), timeout)
			if err := client.Logout(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: upstream logout failed: %s\n", errorText(err))
			}
		}
		prof.Token = ""
		cfg.Profiles[name] = prof
		if err := saveProfiles(configPath, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed out of profile %s\n", name)
		return nil
	},
}

func init() {
	loginCmd.Flags().String("url", "", "upstream API base URL")
	loginCmd.Flags().StringP("username", "u", "", "username")
	loginCmd.Flags().String("redis", "", "redis address of the export queue")
}

func login(ctx context.Context, baseURL string, creds api.Credentials) (*api.Session, error) {
	if err := validator.New().Struct(creds); err != nil {
		return nil, fmt.Errorf("username and password are required")
	}
	return api.NewClient(baseURL, nil, timeout).Login(ctx, creds)
}

func prompt(w io.Writer, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo from a terminal and falls back to one line
// of in otherwise.
func readPassword(in *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
