package device

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDeepLinkArgs(t *testing.T) {
	args := deepLinkArgs("redroid:5555", "https://instagram.com/someuser", InstagramPackage)
	joined := strings.Join(args, " ")

	if !strings.HasPrefix(joined, "-s redroid:5555 shell am start") {
		t.Errorf("unexpected args: %s", joined)
	}
	if !strings.Contains(joined, "-a android.intent.action.VIEW") {
		t.Errorf("missing VIEW action: %s", joined)
	}
	if !strings.Contains(joined, "-d https://instagram.com/someuser") {
		t.Errorf("missing url: %s", joined)
	}
	if !strings.Contains(joined, "-p com.instagram.android") {
		t.Errorf("missing package pin: %s", joined)
	}
}

func TestDeepLinkArgsNoSerial(t *testing.T) {
	args := deepLinkArgs("", "https://instagram.com/x", InstagramPackage)
	if args[0] != "shell" {
		t.Errorf("expected no -s flag without serial, got %v", args)
	}
}

func TestStartActivityArgs(t *testing.T) {
	args := startActivityArgs("emulator-5554", InstagramPackage, InstagramActivity)
	joined := strings.Join(args, " ")
	want := "com.instagram.android/com.instagram.mainactivity.LauncherActivity"
	if !strings.Contains(joined, "-n "+want) {
		t.Errorf("expected -n %s, got %s", want, joined)
	}
}

func TestOpenDeepLinkWrapsError(t *testing.T) {
	a := NewADB("adb", "dev")
	a.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("error: device offline"), errors.New("exit status 1")
	}

	err := a.OpenDeepLink(context.Background(), "https://instagram.com/x", InstagramPackage)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "device offline") {
		t.Errorf("expected adb output in error, got %v", err)
	}
}

func TestOpenDeepLinkRunsADB(t *testing.T) {
	var gotName string
	var gotArgs []string

	a := NewADB("/opt/adb", "redroid:5555")
	a.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return nil, nil
	}

	if err := a.OpenDeepLink(context.Background(), "https://instagram.com/u", InstagramPackage); err != nil {
		t.Fatalf("OpenDeepLink failed: %v", err)
	}
	if gotName != "/opt/adb" {
		t.Errorf("expected configured adb path, got %q", gotName)
	}
	if len(gotArgs) == 0 || gotArgs[0] != "-s" {
		t.Errorf("expected serial flag first, got %v", gotArgs)
	}
}
