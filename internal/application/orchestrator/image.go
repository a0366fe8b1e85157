package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// saveImage writes jpeg under {root}/{userID}/{YYYY-MM-DD_HH-MM-SS}.jpg
// and returns the path.
func saveImage(root, userID string, jpeg []byte) (string, error) {
	dir := filepath.Join(root, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	name := time.Now().UTC().Format("2006-01-02_15-04-05") + ".jpg"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
