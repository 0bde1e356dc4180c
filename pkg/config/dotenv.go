package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// DefaultEnvFiles returns the env files loaded when none are given explicitly:
// ".env" followed by ".env.<appEnv>". The first file has the highest priority.
func DefaultEnvFiles(appEnv string) []string {
	files := []string{".env"}
	if appEnv != "" {
		files = append(files, ".env."+appEnv)
	}

	return files
}

// LoadEnvFiles loads each file into the process environment, skipping files
// that do not exist. Variables already set are never overwritten, so earlier
// files take precedence over later ones. It returns the files that were loaded.
func LoadEnvFiles(files ...string) ([]string, error) {
	loaded := make([]string, 0, len(files))

	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return loaded, fmt.Errorf("loading env file %s: %w", file, err)
		}

		loaded = append(loaded, file)
	}

	return loaded, nil
}
