// Package paths resolves reaniname's per-user files.
//
// Under sudo the original user's home (SUDO_USER) is used so that a daemon
// started with elevated rights still reads and writes the invoking user's
// config and history.
package paths

import (
	"os"
	"os/user"
	"path/filepath"
)

// AppName is the directory name used under the user config dir.
const AppName = "reaniname"

// UserHomeDir returns the home directory of the invoking user, looking
// through sudo.
func UserHomeDir() (string, error) {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" && sudoUser != "root" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// AppDir returns ~/.config/reaniname for the invoking user. REANINAME_HOME
// overrides it.
func AppDir() (string, error) {
	if dir := os.Getenv("REANINAME_HOME"); dir != "" {
		return dir, nil
	}
	home, err := UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

func join(elem ...string) (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}

// ConfigPath is config.toml inside AppDir.
func ConfigPath() (string, error) { return join("config.toml") }

// HistoryPath is the sqlite batch history database.
func HistoryPath() (string, error) { return join("history.db") }

// ActivityDir holds the daily placement JSONL files.
func ActivityDir() (string, error) { return join("activity") }

// LogPath is the default rotating log file.
func LogPath() (string, error) { return join("logs", AppName+".log") }

// LockPath is the daemon's single-instance lock file.
func LockPath() (string, error) { return join("reaninamed.lock") }
