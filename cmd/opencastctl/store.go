package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

const configDirName = ".opencast"

// cliConfig is persisted as ~/.opencast/config.json.
type cliConfig struct {
	APIURL string `json:"api_url"`
}

// cliTokens is persisted as ~/.opencast/tokens.json.
type cliTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func loadConfig() (cliConfig, error) {
	cfg := cliConfig{APIURL: "http://localhost:8080"}
	dir, err := configDir()
	if err != nil {
		return cfg, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), raw, 0o600)
}

func loadTokens() (cliTokens, error) {
	var tokens cliTokens
	dir, err := configDir()
	if err != nil {
		return tokens, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, "tokens.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return tokens, errors.New("not logged in, run `opencastctl login` first")
		}
		return tokens, err
	}
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return tokens, err
	}
	return tokens, nil
}

func saveTokens(tokens cliTokens) error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "tokens.json"), raw, 0o600)
}

func clearTokens() error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "tokens.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
