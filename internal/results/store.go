// Package results persiste los resultados de verificación en CSV y
// parsea las listas de cuentas de entrada.
package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/elsanchez/insta-checker/internal/domain"
)

// csvHeader es el esquema fijo del archivo de resultados. El orden de
// las columnas es parte del formato.
var csvHeader = []string{
	"username",
	"has_warning",
	"warning_type",
	"warning_details",
	"status",
	"timestamp",
	"screenshot",
}

// Store lee y escribe un archivo CSV de resultados. Cada escritura
// reemplaza el archivo completo; el archivo queda siempre consistente
// con el encabezado fijo.
type Store struct {
	path string
}

// NewStore crea un store sobre la ruta dada. El archivo no necesita
// existir todavía.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path retorna la ruta del archivo de resultados
func (s *Store) Path() string { return s.path }

// Load lee todos los resultados del archivo. Un archivo inexistente no
// es error: retorna lista vacía.
func (s *Store) Load() ([]*domain.CheckResult, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open results file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(csvHeader)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse results file %s: %w", s.path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	out := make([]*domain.CheckResult, 0, len(records)-1)
	for _, rec := range records[1:] {
		r := &domain.CheckResult{
			Username:       rec[0],
			WarningType:    rec[2],
			WarningDetails: rec[3],
			Status:         rec[4],
			Screenshot:     rec[6],
		}
		r.HasWarning, _ = strconv.ParseBool(rec[1])
		// Timestamps ilegibles se toleran como cero
		r.Timestamp, _ = time.Parse(time.RFC3339, rec[5])
		out = append(out, r)
	}
	return out, nil
}

// LoadCompleted retorna el conjunto de usernames con resultado
// terminal, para el modo resume
func (s *Store) LoadCompleted(retryErrors bool) (map[string]bool, error) {
	rows, err := s.Load()
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.IsTerminal(retryErrors) {
			done[r.Username] = true
		}
	}
	return done, nil
}

// Write reemplaza el archivo completo con los resultados dados
func (s *Store) Write(rows []*domain.CheckResult) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create results dir: %w", err)
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}

	w := csv.NewWriter(f)
	werr := w.Write(csvHeader)
	for _, r := range rows {
		if werr != nil {
			break
		}
		werr = w.Write([]string{
			r.Username,
			strconv.FormatBool(r.HasWarning),
			r.WarningType,
			r.WarningDetails,
			r.Status,
			r.Timestamp.Format(time.RFC3339),
			r.Screenshot,
		})
	}
	w.Flush()
	if werr == nil {
		werr = w.Error()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write results file %s: %w", s.path, werr)
	}
	return nil
}
