package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elsanchez/insta-checker/internal/domain"
)

// fakeChecker produce resultados con el estado programado por cuenta
type fakeChecker struct {
	statuses map[string]string // username -> status; default no_warning
	checked  []string
	onCheck  func(username string)
}

func (f *fakeChecker) CheckAccount(ctx context.Context, username string) *domain.CheckResult {
	f.checked = append(f.checked, username)
	if f.onCheck != nil {
		f.onCheck(username)
	}
	r := domain.NewCheckResult(username)
	switch f.statuses[username] {
	case domain.StatusWarningDetected:
		r.MarkWarning("date joined: 2024", username+".png")
	case domain.StatusNotFound:
		r.Status = domain.StatusNotFound
	case domain.StatusLoadFailed:
		r.Status = domain.StatusLoadFailed
	case "error":
		r.MarkError(errors.New("boom"))
	default:
		r.MarkClean()
	}
	return r
}

type fakeSession struct {
	alive      bool
	recoverErr error
	restartErr error

	// checks procesados en el momento de cada llamada
	restartsAt []int
	recoversAt []int
	checker    *fakeChecker
}

func (f *fakeSession) IsAlive(ctx context.Context) bool { return f.alive }

func (f *fakeSession) Recover(ctx context.Context) error {
	f.recoversAt = append(f.recoversAt, len(f.checker.checked))
	if f.recoverErr != nil {
		return f.recoverErr
	}
	f.alive = true
	return nil
}

func (f *fakeSession) Restart(ctx context.Context) error {
	f.restartsAt = append(f.restartsAt, len(f.checker.checked))
	return f.restartErr
}

type memStore struct {
	rows   []*domain.CheckResult
	writes int
}

func (m *memStore) Load() ([]*domain.CheckResult, error) { return m.rows, nil }

func (m *memStore) Write(results []*domain.CheckResult) error {
	m.rows = append([]*domain.CheckResult(nil), results...)
	m.writes++
	return nil
}

func terminalRow(username, status string) *domain.CheckResult {
	r := domain.NewCheckResult(username)
	r.Status = status
	return r
}

func newTestRunner(chk *fakeChecker, ses *fakeSession, store *memStore, cfg Config) *Runner {
	ses.checker = chk
	r := New(chk, ses, store, cfg, nil)
	r.sleep = func(ctx context.Context, d time.Duration) {}
	return r
}

func TestPlannedRestartEveryBatch(t *testing.T) {
	chk := &fakeChecker{}
	ses := &fakeSession{alive: true}
	store := &memStore{}
	r := newTestRunner(chk, ses, store, Config{BatchSize: 2})

	summary, err := r.Run(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Con lotes de 2: reinicio antes de la 3ª y la 5ª cuenta
	want := []int{2, 4}
	if len(ses.restartsAt) != len(want) {
		t.Fatalf("restarts en %v, want %v", ses.restartsAt, want)
	}
	for i := range want {
		if ses.restartsAt[i] != want[i] {
			t.Errorf("restart[%d] tras %d checks, want %d", i, ses.restartsAt[i], want[i])
		}
	}
	if summary.Total() != 5 || summary.Normal != 5 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestNoRestartWithinFirstBatch(t *testing.T) {
	chk := &fakeChecker{}
	ses := &fakeSession{alive: true}
	store := &memStore{}
	r := newTestRunner(chk, ses, store, Config{BatchSize: 10})

	if _, err := r.Run(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ses.restartsAt) != 0 {
		t.Errorf("restarts inesperados: %v", ses.restartsAt)
	}
}

func TestResumeSkipsTerminalRows(t *testing.T) {
	chk := &fakeChecker{}
	ses := &fakeSession{alive: true}
	store := &memStore{rows: []*domain.CheckResult{
		terminalRow("a", domain.StatusNoWarning),
		terminalRow("b", domain.StatusErrorPrefix+"boom"),
	}}
	r := newTestRunner(chk, ses, store, Config{Resume: true})

	summary, err := r.Run(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Sin retryErrors los errores previos también son terminales
	if len(chk.checked) != 1 || chk.checked[0] != "c" {
		t.Fatalf("checked = %v, want [c]", chk.checked)
	}
	if len(store.rows) != 3 {
		t.Fatalf("filas persistidas = %d, want 3", len(store.rows))
	}
	// La fila previa de "a" se conserva intacta y en su posición
	if store.rows[0].Username != "a" || store.rows[0].Status != domain.StatusNoWarning {
		t.Errorf("fila previa alterada: %+v", store.rows[0])
	}
	if summary.Total() != 3 {
		t.Errorf("summary.Total() = %d, want 3", summary.Total())
	}
}

func TestResumeRetryErrorsRechecks(t *testing.T) {
	chk := &fakeChecker{}
	ses := &fakeSession{alive: true}
	store := &memStore{rows: []*domain.CheckResult{
		terminalRow("a", domain.StatusNoWarning),
		terminalRow("b", domain.StatusErrorPrefix+"boom"),
		terminalRow("c", domain.StatusLoadFailed),
	}}
	r := newTestRunner(chk, ses, store, Config{Resume: true, RetryErrors: true})

	if _, err := r.Run(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(chk.checked) != 2 {
		t.Fatalf("checked = %v, want [b c]", chk.checked)
	}
	// Una fila por cuenta: la re-verificación reemplaza, no duplica
	if len(store.rows) != 3 {
		t.Fatalf("filas persistidas = %d, want 3", len(store.rows))
	}
	if store.rows[1].Username != "b" || store.rows[1].Status != domain.StatusNoWarning {
		t.Errorf("fila de b no reemplazada: %+v", store.rows[1])
	}
}

func TestSaveCadence(t *testing.T) {
	chk := &fakeChecker{}
	ses := &fakeSession{alive: true}
	store := &memStore{}
	r := newTestRunner(chk, ses, store, Config{SaveEvery: 2})

	if _, err := r.Run(context.Background(), []string{"a", "b", "c", "d", "e"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Guardado tras 2 y 4, más el final
	if store.writes != 3 {
		t.Errorf("writes = %d, want 3", store.writes)
	}
	if len(store.rows) != 5 {
		t.Errorf("filas finales = %d, want 5", len(store.rows))
	}
}

func TestRecoveryFailureAbortsRemaining(t *testing.T) {
	chk := &fakeChecker{}
	ses := &fakeSession{alive: true, recoverErr: errors.New("device gone")}
	store := &memStore{}
	chk.onCheck = func(username string) {
		// La sesión muere después de la primera cuenta
		ses.alive = false
	}
	r := newTestRunner(chk, ses, store, Config{})

	summary, err := r.Run(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("Run debía fallar")
	}
	if len(chk.checked) != 1 {
		t.Errorf("checked = %v, want solo [a]", chk.checked)
	}
	// Lo procesado queda persistido aunque el lote aborte
	if len(store.rows) != 1 || store.rows[0].Username != "a" {
		t.Errorf("filas persistidas = %v", store.rows)
	}
	if summary.Normal != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestCancelBetweenAccounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	chk := &fakeChecker{onCheck: func(username string) { cancel() }}
	ses := &fakeSession{alive: true}
	store := &memStore{}
	r := newTestRunner(chk, ses, store, Config{})

	_, err := r.Run(ctx, []string{"a", "b", "c"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// La cuenta en curso termina; las siguientes no empiezan
	if len(chk.checked) != 1 {
		t.Errorf("checked = %v, want [a]", chk.checked)
	}
	if len(store.rows) != 1 {
		t.Errorf("filas persistidas = %d, want 1", len(store.rows))
	}
}

func TestDuplicateAccountsCollapsed(t *testing.T) {
	chk := &fakeChecker{}
	ses := &fakeSession{alive: true}
	store := &memStore{}
	r := newTestRunner(chk, ses, store, Config{})

	if _, err := r.Run(context.Background(), []string{"a", "a", "b", ""}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(chk.checked) != 2 {
		t.Errorf("checked = %v, want [a b]", chk.checked)
	}
	if len(store.rows) != 2 {
		t.Errorf("filas = %d, want 2", len(store.rows))
	}
}

func TestSummaryCountsByStatus(t *testing.T) {
	chk := &fakeChecker{statuses: map[string]string{
		"w": domain.StatusWarningDetected,
		"n": domain.StatusNotFound,
		"l": domain.StatusLoadFailed,
		"e": "error",
	}}
	ses := &fakeSession{alive: true}
	store := &memStore{}
	r := newTestRunner(chk, ses, store, Config{})

	summary, err := r.Run(context.Background(), []string{"w", "n", "l", "e", "ok"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Warnings != 1 || summary.NotFound != 1 || summary.LoadFailed != 1 ||
		summary.Errors != 1 || summary.Normal != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Total() != 5 {
		t.Errorf("Total() = %d, want 5", summary.Total())
	}
}

// Cada cuenta emite starting antes de su evento terminal, con el mismo
// índice. El observador de la CLI y la TUI dependen de esa pareja.
func TestStartingEventPrecedesEachResult(t *testing.T) {
	chk := &fakeChecker{statuses: map[string]string{"bob": domain.StatusNotFound}}
	ses := &fakeSession{alive: true, checker: chk}
	store := &memStore{}

	type seen struct {
		current  int
		username string
		phase    string
	}
	var events []seen
	r := New(chk, ses, store, Config{}, func(current, total int, username string, ev domain.Event) {
		events = append(events, seen{current, username, ev.Phase()})
	})
	r.sleep = func(ctx context.Context, d time.Duration) {}

	if _, err := r.Run(context.Background(), []string{"alice", "bob"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []seen{
		{1, "alice", "starting"},
		{1, "alice", "no_warning"},
		{2, "bob", "starting"},
		{2, "bob", "not_found"},
		{2, "", "completed"},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, events[i], want[i])
		}
	}
}
