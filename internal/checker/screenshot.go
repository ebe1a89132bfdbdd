package checker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SaveScreenshot captura la pantalla actual y la escribe como PNG en
// dir, con nombre <username>_<timestamp>.png. Retorna la ruta del
// archivo escrito.
func SaveScreenshot(ctx context.Context, ui UIClient, dir, username string) (string, error) {
	data, err := ui.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create screenshots dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.png", username, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}
