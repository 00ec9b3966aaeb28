package bootstrap

import (
	"os"
	"strings"

	"github.com/papercomputeco/engram/pkg/dotdir"
)

// SQLiteFileName is the database file created inside the .engram directory.
const SQLiteFileName = "engram.sqlite"

// ResolveSQLitePath picks the SQLite database path: an explicit override,
// then $ENGRAM_SQLITE, then engram.sqlite in the resolved .engram directory.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("ENGRAM_SQLITE")); envPath != "" {
		return envPath, nil
	}

	return dotdir.NewManager().File(configDir, SQLiteFileName)
}
