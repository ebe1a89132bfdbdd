package domain

// Event es el tipo cerrado de eventos de progreso que emite el
// orquestador. Cada fase tiene su propia variante en lugar de un mapa
// dinámico, así el switch del consumidor es exhaustivo en compilación.
type Event interface {
	Phase() string
}

// Starting se emite al comenzar el procesamiento de una cuenta
type Starting struct{}

// Navigating se emite al pedir la navegación al perfil
type Navigating struct{}

// ClickingFollow se emite justo antes de pulsar el botón de seguir
type ClickingFollow struct{}

// WarningDetected se emite cuando la advertencia de fraude apareció
type WarningDetected struct {
	Details    string
	Screenshot string
}

// NoWarning se emite cuando el seguimiento completó sin advertencia
type NoWarning struct{}

// NotFound se emite cuando la cuenta no existe
type NotFound struct{}

// LoadFailed se emite cuando el perfil no cargó tras agotar reintentos
type LoadFailed struct{}

// ErrorEvent se emite ante un error inesperado en una cuenta
type ErrorEvent struct {
	Message string
}

// SessionRecovery se emite al intentar recuperar una sesión muerta
type SessionRecovery struct{}

// Completed se emite una única vez al terminar el lote
type Completed struct {
	Summary Summary
}

func (Starting) Phase() string        { return "starting" }
func (Navigating) Phase() string      { return "navigating" }
func (ClickingFollow) Phase() string  { return "clicking_follow" }
func (WarningDetected) Phase() string { return "warning_detected" }
func (NoWarning) Phase() string       { return "no_warning" }
func (NotFound) Phase() string        { return "not_found" }
func (LoadFailed) Phase() string      { return "load_failed" }
func (ErrorEvent) Phase() string      { return "error" }
func (SessionRecovery) Phase() string { return "session_recovery" }
func (Completed) Phase() string       { return "completed" }

// ProgressFunc recibe el avance del lote. current es 1-indexado.
// El orquestador aísla los panics del observador: nunca abortan el lote.
type ProgressFunc func(current, total int, username string, ev Event)

// Summary acumula los conteos por estado terminal de un lote
type Summary struct {
	Warnings   int `json:"warnings"`
	Normal     int `json:"normal"`
	NotFound   int `json:"not_found"`
	LoadFailed int `json:"load_failed"`
	Errors     int `json:"errors"`
}

// Add clasifica un resultado dentro del resumen
func (s *Summary) Add(r *CheckResult) {
	switch {
	case r.Status == StatusWarningDetected:
		s.Warnings++
	case r.Status == StatusNoWarning:
		s.Normal++
	case r.Status == StatusNotFound:
		s.NotFound++
	case r.Status == StatusLoadFailed:
		s.LoadFailed++
	case r.IsError():
		s.Errors++
	}
}

// Total retorna el número de resultados clasificados
func (s *Summary) Total() int {
	return s.Warnings + s.Normal + s.NotFound + s.LoadFailed + s.Errors
}
