package rotation

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/elsanchez/insta-checker/internal/domain"
)

func testAccounts() []domain.InstagramAccount {
	return []domain.InstagramAccount{
		{Username: "acct_one", Password: "p1"},
		{Username: "acct_two", Password: "p2"},
	}
}

func newTestRotator(t *testing.T, maxPerDay int) *Rotator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stats.json")
	return New(testAccounts(), path, maxPerDay)
}

func TestAvailablePicksFirstUnderQuota(t *testing.T) {
	r := newTestRotator(t, 2)

	acct, used, err := r.Available()
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if acct.Username != "acct_one" || used != 0 {
		t.Errorf("acct = %s used = %d, want acct_one/0", acct.Username, used)
	}

	// Agotar la primera cuenta
	for i := 0; i < 2; i++ {
		if err := r.RecordFollow("acct_one"); err != nil {
			t.Fatalf("RecordFollow: %v", err)
		}
	}

	acct, used, err = r.Available()
	if err != nil {
		t.Fatalf("Available tras agotar: %v", err)
	}
	if acct.Username != "acct_two" {
		t.Errorf("acct = %s, want acct_two", acct.Username)
	}
}

func TestAllAccountsExhausted(t *testing.T) {
	r := newTestRotator(t, 1)
	if err := r.RecordFollow("acct_one"); err != nil {
		t.Fatal(err)
	}
	if err := r.RecordFollow("acct_two"); err != nil {
		t.Fatal(err)
	}

	_, _, err := r.Available()
	if !errors.Is(err, ErrAllAccountsExhausted) {
		t.Errorf("err = %v, want ErrAllAccountsExhausted", err)
	}
}

func TestQuotaResetsOnNewDay(t *testing.T) {
	r := newTestRotator(t, 1)

	day := time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return day }

	if err := r.RecordFollow("acct_one"); err != nil {
		t.Fatal(err)
	}
	if err := r.RecordFollow("acct_two"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.Available(); !errors.Is(err, ErrAllAccountsExhausted) {
		t.Fatalf("err = %v, want exhausted", err)
	}

	// Medianoche: los contadores vuelven a cero
	day = day.Add(2 * time.Hour)
	if err := r.ResetIfNewDay(); err != nil {
		t.Fatalf("ResetIfNewDay: %v", err)
	}

	acct, used, err := r.Available()
	if err != nil {
		t.Fatalf("Available tras reset: %v", err)
	}
	if acct.Username != "acct_one" || used != 0 {
		t.Errorf("acct = %s used = %d, want acct_one/0", acct.Username, used)
	}
}

func TestStatsPersistAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	r1 := New(testAccounts(), path, 5)
	if err := r1.RecordFollow("acct_one"); err != nil {
		t.Fatal(err)
	}
	if err := r1.RecordFollow("acct_one"); err != nil {
		t.Fatal(err)
	}

	// Otra instancia sobre el mismo archivo ve los contadores
	r2 := New(testAccounts(), path, 5)
	usage, err := r2.Usage()
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if usage["acct_one"] != 2 || usage["acct_two"] != 0 {
		t.Errorf("usage = %v", usage)
	}

	// El archivo es JSON legible con LastFollowAt registrado
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var stats map[string]*domain.AccountStats
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatalf("stats file no es JSON válido: %v", err)
	}
	if stats["acct_one"].LastFollowAt == nil {
		t.Error("LastFollowAt no registrado")
	}
}

func TestLoadAccountsFromJSON(t *testing.T) {
	t.Setenv("INSTAGRAM_ACCOUNTS", `[{"username":"a","password":"pa"},{"username":"b","password":"pb"}]`)
	t.Setenv("INSTAGRAM_USERNAME", "")
	t.Setenv("INSTAGRAM_PASSWORD", "")

	accounts, err := LoadAccounts()
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}
	if len(accounts) != 2 || accounts[0].Username != "a" || accounts[1].Password != "pb" {
		t.Errorf("accounts = %+v", accounts)
	}
}

func TestLoadAccountsSinglePair(t *testing.T) {
	t.Setenv("INSTAGRAM_ACCOUNTS", "")
	t.Setenv("INSTAGRAM_USERNAME", "solo")
	t.Setenv("INSTAGRAM_PASSWORD", "secret")

	accounts, err := LoadAccounts()
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Username != "solo" {
		t.Errorf("accounts = %+v", accounts)
	}
}

func TestLoadAccountsMissing(t *testing.T) {
	t.Setenv("INSTAGRAM_ACCOUNTS", "")
	t.Setenv("INSTAGRAM_USERNAME", "")
	t.Setenv("INSTAGRAM_PASSWORD", "")

	if _, err := LoadAccounts(); err == nil {
		t.Error("sin variables de entorno debía fallar")
	}
}

func TestLoadAccountsRejectsIncomplete(t *testing.T) {
	t.Setenv("INSTAGRAM_ACCOUNTS", `[{"username":"a"}]`)
	if _, err := LoadAccounts(); err == nil {
		t.Error("cuenta sin password debía fallar")
	}
}
