package daemon

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeCSVName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"nombre simple", "targets.csv", false},
		{"mayúsculas en extensión", "targets.CSV", false},
		{"traversal relativo", "../../etc/passwd", true},
		{"traversal con csv", "../secrets.csv", true},
		{"subdirectorio", "dir/inner.csv", true},
		{"ruta absoluta", "/etc/passwd.csv", true},
		{"extensión incorrecta", "script.sh", true},
		{"sin extensión", "targets", true},
		{"oculto", ".hidden.csv", true},
		{"vacío", "", true},
		{"solo punto", ".", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeCSVName(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("SanitizeCSVName(%q) = %q, quería error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Errorf("SanitizeCSVName(%q): %v", tt.input, err)
			}
		})
	}
}

func TestResolveUploadStaysInside(t *testing.T) {
	p := Paths{DataDir: t.TempDir()}

	path, err := p.ResolveUpload("targets.csv")
	if err != nil {
		t.Fatalf("ResolveUpload: %v", err)
	}
	if filepath.Dir(path) != p.UploadsDir() {
		t.Errorf("resuelto fuera del directorio de uploads: %s", path)
	}

	if _, err := p.ResolveUpload("../escape.csv"); err == nil {
		t.Error("nombre con traversal aceptado")
	}
}

func TestResultNameFor(t *testing.T) {
	if got := ResultNameFor("targets.csv"); got != "targets_results.csv" {
		t.Errorf("ResultNameFor = %q", got)
	}
	if got := ResultNameFor("batch_2.csv"); !strings.HasSuffix(got, "_results.csv") {
		t.Errorf("ResultNameFor = %q", got)
	}
}

func TestEnsureDirs(t *testing.T) {
	p := Paths{DataDir: filepath.Join(t.TempDir(), "data")}
	if err := p.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{p.UploadsDir(), p.ResultsDir(), p.ScreenshotsDir()} {
		if filepath.Dir(dir) != p.DataDir {
			t.Errorf("dir fuera de DataDir: %s", dir)
		}
	}
}
