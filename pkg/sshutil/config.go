// Package sshutil resolves per-host settings from the user's OpenSSH
// client configuration so borg connects to remote repositories the same
// way a plain ssh invocation would.
package sshutil

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// HostSettings holds the settings resolved for one host.
type HostSettings struct {
	Hostname     string // HostName value; empty when not configured
	User         string
	Port         string
	IdentityFile string // expanded to an absolute path
}

// Lookup resolves settings for host from ~/.ssh/config. A missing config
// file yields zero-value settings, not an error.
func Lookup(host string) (HostSettings, error) {
	return LookupFile(filepath.Join(homeDir(), ".ssh", "config"), host)
}

// LookupFile resolves settings for host from the given config file.
func LookupFile(configPath, host string) (HostSettings, error) {
	var settings HostSettings

	content, err := preprocessConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return settings, err
	}

	if hostname, _ := cfg.Get(host, "HostName"); hostname != "" {
		settings.Hostname = hostname
	}
	if user, _ := cfg.Get(host, "User"); user != "" {
		settings.User = user
	}
	if port, _ := cfg.Get(host, "Port"); port != "" {
		settings.Port = port
	}
	if identity, _ := cfg.Get(host, "IdentityFile"); identity != "" {
		settings.IdentityFile = expandPath(identity)
	}

	return settings, nil
}

// preprocessConfig reads the SSH config up to the first Match directive,
// which the decoder does not understand.
func preprocessConfig(configPath string) ([]byte, error) {
	f, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(strings.ToLower(line)), "match ") {
			break
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
