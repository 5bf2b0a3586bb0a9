package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ProfilesConfig holds every named profile and the active one.
type ProfilesConfig struct {
	Active   string             `toml:"active"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile is one upstream API and its session.
type Profile struct {
	URL      string `toml:"url"`
	Username string `toml:"username,omitempty"`
	Token    string `toml:"token,omitempty"`
	// Redis is the job queue used by export --async.
	Redis string `toml:"redis,omitempty"`
}

const defaultProfile = "default"

func profilesPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "privacyctl", "profiles.toml"), nil
}

func loadProfiles(path string) (ProfilesConfig, error) {
	var cfg ProfilesConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ProfilesConfig{Profiles: map[string]Profile{}}, nil
		}
		return ProfilesConfig{}, fmt.Errorf("read profiles %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return cfg, nil
}

func saveProfiles(path string, cfg ProfilesConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// resolve returns the name and profile selected by name, falling back to the
// active profile.
func (c ProfilesConfig) resolve(name string) (string, Profile, error) {
	if name == "" {
		name = c.Active
	}
	if name == "" {
		name = defaultProfile
	}
	prof, ok := c.Profiles[name]
	if !ok {
		return name, Profile{}, fmt.Errorf("profile %q not found, run privacyctl login", name)
	}
	return name, prof, nil
}

func currentProfile() (Profile, error) {
	cfg, err := loadProfiles(configPath)
	if err != nil {
		return Profile{}, err
	}
	_, prof, err := cfg.resolve(profileName)
	return prof, err
}
