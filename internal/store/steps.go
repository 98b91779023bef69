package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ibeckermayer/trendpersona/internal/config"
)

// StepName identifies a cycle stage whose output is kept as a debug artifact.
type StepName string

const (
	StepTrends StepName = "trends"
	StepCycle  StepName = "cycles"
	StepLLM    StepName = "llm"
)

// Steps lists every artifact directory
var Steps = []StepName{StepTrends, StepCycle, StepLLM}

// stepDir returns the cache directory for a given step.
func stepDir(step StepName) (string, error) {
	cacheDir, err := config.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, string(step)), nil
}

// generateFilename creates a sortable timestamped filename. Sub-second
// precision keeps several LLM calls in one cycle from colliding.
func generateFilename(ext string) string {
	return time.Now().UTC().Format("2006-01-02T15-04-05.000000") + ext
}

// SaveArtifact saves JSON-serializable data to the step's cache directory.
// Returns the path to the saved file.
func SaveArtifact[T any](step StepName, data T) (string, error) {
	dir, err := stepDir(step)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}

	path := filepath.Join(dir, generateFilename(".json"))

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	return path, nil
}

// LoadArtifact loads JSON data from a specific file path.
func LoadArtifact[T any](path string) (T, error) {
	var data T

	jsonData, err := os.ReadFile(path)
	if err != nil {
		return data, fmt.Errorf("failed to read artifact: %w", err)
	}

	if err := json.Unmarshal(jsonData, &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}

	return data, nil
}

// LatestArtifact returns the path to the most recent file in a step's directory.
func LatestArtifact(step StepName) (string, error) {
	dir, err := stepDir(step)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no artifacts for step %s", step)
		}
		return "", err
	}

	// os.ReadDir sorts by name, which is chronological for our filenames
	var latest string
	for _, entry := range entries {
		if !entry.IsDir() {
			latest = entry.Name()
		}
	}

	if latest == "" {
		return "", fmt.Errorf("no artifacts for step %s", step)
	}

	return filepath.Join(dir, latest), nil
}
