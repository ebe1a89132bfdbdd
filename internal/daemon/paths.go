package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths resuelve las rutas de trabajo del daemon bajo el directorio de
// datos. Toda resolución de nombres enviados por clientes pasa por
// aquí: solo nombre base, extensión .csv y nunca fuera del directorio.
type Paths struct {
	DataDir string
}

func (p Paths) UploadsDir() string     { return filepath.Join(p.DataDir, "uploads") }
func (p Paths) ResultsDir() string     { return filepath.Join(p.DataDir, "results") }
func (p Paths) ScreenshotsDir() string { return filepath.Join(p.DataDir, "screenshots") }

// EnsureDirs crea los directorios de trabajo
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.UploadsDir(), p.ResultsDir(), p.ScreenshotsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

// SanitizeCSVName valida un nombre de archivo enviado por un cliente.
// Rechaza rutas con directorios, nombres vacíos y extensiones
// distintas de .csv.
func SanitizeCSVName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	base := filepath.Base(filepath.Clean(name))
	if base != name {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if base == "." || base == ".." || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if strings.ToLower(filepath.Ext(base)) != ".csv" {
		return "", fmt.Errorf("only .csv files are accepted: %s", name)
	}
	return base, nil
}

// resolveIn une un nombre ya saneado con el directorio base y
// comprueba que el resultado no escape de él
func resolveIn(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve dir: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if absPath != absDir && !strings.HasPrefix(absPath, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base dir: %s", name)
	}
	return path, nil
}

// ResolveUpload retorna la ruta de un archivo subido, validando el
// nombre
func (p Paths) ResolveUpload(name string) (string, error) {
	base, err := SanitizeCSVName(name)
	if err != nil {
		return "", err
	}
	return resolveIn(p.UploadsDir(), base)
}

// ResolveResult retorna la ruta de un archivo de resultados, validando
// el nombre
func (p Paths) ResolveResult(name string) (string, error) {
	base, err := SanitizeCSVName(name)
	if err != nil {
		return "", err
	}
	return resolveIn(p.ResultsDir(), base)
}

// ResultNameFor deriva el nombre del archivo de resultados de un
// archivo de entrada
func ResultNameFor(uploadName string) string {
	return strings.TrimSuffix(uploadName, filepath.Ext(uploadName)) + "_results.csv"
}
