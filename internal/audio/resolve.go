package audio

import (
	"os"
	"path/filepath"
)

// Resolve finds a session's audio file on disk given the engine-managed
// storage key and/or the path the app reported at import time.
// Priority: 1) audioDir/key  2) importDir + reported basename  3) absolute reported path
func Resolve(audioDir, importDir, key, reportedPath string) string {
	// 1) engine-managed audio file
	if key != "" && audioDir != "" {
		full := filepath.Join(audioDir, key)
		if _, err := os.Stat(full); err == nil {
			return full
		}
	}

	if reportedPath == "" {
		return ""
	}

	// 2) dropped into the import directory
	if importDir != "" {
		full := filepath.Join(importDir, filepath.Base(reportedPath))
		if _, err := os.Stat(full); err == nil {
			return full
		}
	}

	// 3) the reported path itself (same machine, same filesystem)
	if filepath.IsAbs(reportedPath) {
		if _, err := os.Stat(reportedPath); err == nil {
			return reportedPath
		}
	}

	return ""
}
