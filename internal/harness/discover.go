package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioDirNotFoundError is returned when a scenario directory doesn't exist.
type ScenarioDirNotFoundError struct {
	Dir string
}

// Error implements the error interface.
func (e *ScenarioDirNotFoundError) Error() string {
	return fmt.Sprintf("scenario directory %q does not exist", e.Dir)
}

// scenarioExts are the file extensions LoadScenario understands.
var scenarioExts = map[string]bool{".yaml": true, ".yml": true, ".cue": true}

// FindScenarios returns the scenario files under dir, sorted by path.
// filter is a glob matched against the file name without extension; empty
// matches everything. Files under golden/ directories are skipped.
func FindScenarios(dir, filter string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, &ScenarioDirNotFoundError{Dir: dir}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !scenarioExts[ext] {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
