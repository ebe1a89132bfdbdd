package device

import (
	"context"
	"fmt"
	"os/exec"
)

// ADB envuelve el binario adb para los pasos que el servidor
// UIAutomator2 no cubre: deep links e inicio directo de activities.
type ADB struct {
	Path   string
	Serial string

	// hook para tests
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewADB crea un wrapper de adb para el dispositivo dado
func NewADB(path, serial string) *ADB {
	if path == "" {
		path = "adb"
	}
	return &ADB{
		Path:   path,
		Serial: serial,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			cmd := exec.CommandContext(ctx, name, args...)
			return cmd.CombinedOutput()
		},
	}
}

// deepLinkArgs construye los argumentos del intent VIEW hacia la app
func deepLinkArgs(serial, url, pkg string) []string {
	args := []string{}
	if serial != "" {
		args = append(args, "-s", serial)
	}
	return append(args,
		"shell", "am", "start",
		"-a", "android.intent.action.VIEW",
		"-d", url,
		"-p", pkg,
	)
}

// startActivityArgs construye los argumentos para lanzar una activity
func startActivityArgs(serial, pkg, activity string) []string {
	args := []string{}
	if serial != "" {
		args = append(args, "-s", serial)
	}
	return append(args, "shell", "am", "start", "-n", pkg+"/"+activity)
}

// OpenDeepLink abre una URL dentro de la app indicada vía intent
func (a *ADB) OpenDeepLink(ctx context.Context, url, pkg string) error {
	out, err := a.run(ctx, a.Path, deepLinkArgs(a.Serial, url, pkg)...)
	if err != nil {
		return fmt.Errorf("adb deep link: %w (output: %.200s)", err, out)
	}
	return nil
}

// StartActivity lanza una activity concreta de la app
func (a *ADB) StartActivity(ctx context.Context, pkg, activity string) error {
	out, err := a.run(ctx, a.Path, startActivityArgs(a.Serial, pkg, activity)...)
	if err != nil {
		return fmt.Errorf("adb start activity: %w (output: %.200s)", err, out)
	}
	return nil
}

// CheckInstalled verifica que adb exista en el sistema
func (a *ADB) CheckInstalled() error {
	cmd := exec.Command(a.Path, "version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("adb not found at %q: %w", a.Path, err)
	}
	return nil
}
