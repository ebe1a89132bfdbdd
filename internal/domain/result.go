package domain

import (
	"strings"
	"time"
)

// CheckStatus representa los estados terminales de una verificación
type CheckStatus = string

const (
	StatusUnknown         CheckStatus = "unknown"
	StatusNoWarning       CheckStatus = "no_warning"
	StatusWarningDetected CheckStatus = "warning_detected"
	StatusNotFound        CheckStatus = "not_found"
	StatusLoadFailed      CheckStatus = "load_failed"

	// StatusErrorPrefix prefija los estados de error: "error: <mensaje>"
	StatusErrorPrefix = "error: "

	// WarningTypeFraud es el único tipo de advertencia que detectamos
	WarningTypeFraud = "fraud_warning"

	// DetailsUnavailable se usa cuando la advertencia se detectó pero
	// ningún sub-elemento de detalle estaba presente
	DetailsUnavailable = "details unavailable"
)

// CheckResult representa el resultado de verificar una cuenta
type CheckResult struct {
	Username       string
	HasWarning     bool
	WarningType    string
	WarningDetails string
	Status         CheckStatus
	Timestamp      time.Time
	Screenshot     string
}

// NewCheckResult crea un resultado inicial para una cuenta.
// Timestamp se fija una sola vez aquí y no se modifica después.
func NewCheckResult(username string) *CheckResult {
	return &CheckResult{
		Username:  username,
		Status:    StatusUnknown,
		Timestamp: time.Now(),
	}
}

// MarkWarning marca el resultado como advertencia detectada.
// Mantiene el invariante HasWarning <=> Status == warning_detected.
func (r *CheckResult) MarkWarning(details, screenshot string) {
	r.HasWarning = true
	r.WarningType = WarningTypeFraud
	r.WarningDetails = details
	r.Status = StatusWarningDetected
	r.Screenshot = screenshot
}

// MarkClean marca el resultado como sin advertencia
func (r *CheckResult) MarkClean() {
	r.HasWarning = false
	r.Status = StatusNoWarning
}

// MarkError registra un error inesperado como estado terminal
func (r *CheckResult) MarkError(err error) {
	r.HasWarning = false
	r.Status = StatusErrorPrefix + err.Error()
}

// IsError retorna true si el estado es un error
func (r *CheckResult) IsError() bool {
	return r.Status == "error" || strings.HasPrefix(r.Status, StatusErrorPrefix)
}

// IsTerminal decide si el resultado cuenta como "procesado" para el modo
// resume. Con retryErrors los errores y fallos de carga se reintentan.
func (r *CheckResult) IsTerminal(retryErrors bool) bool {
	switch r.Status {
	case StatusNoWarning, StatusWarningDetected, StatusNotFound:
		return true
	case StatusLoadFailed:
		return !retryErrors
	}
	if r.IsError() {
		return !retryErrors
	}
	return false
}
