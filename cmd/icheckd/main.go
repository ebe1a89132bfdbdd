package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/elsanchez/insta-checker/internal/checker"
	"github.com/elsanchez/insta-checker/internal/config"
	"github.com/elsanchez/insta-checker/internal/daemon"
	"github.com/elsanchez/insta-checker/internal/device"
	"github.com/elsanchez/insta-checker/internal/repository/sqlite"
	"github.com/elsanchez/insta-checker/internal/rotation"
	"github.com/elsanchez/insta-checker/internal/runner"
)

const (
	version = "0.1.0"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("icheckd v%s starting...", version)

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	paths := daemon.Paths{DataDir: cfg.DataDir}
	if err := paths.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create data directories: %v", err)
	}
	log.Printf("Data directory: %s", cfg.DataDir)

	// Inicializar base de datos
	db, err := sqlite.NewDatabase(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	log.Println("✓ Database initialized")

	// Trabajos que quedaron "running" de una ejecución anterior no van
	// a continuar: marcarlos como fallidos antes de aceptar nada nuevo
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if n, err := db.JobRepo.FailRunning(ctx, "daemon restarted"); err != nil {
		log.Fatalf("Failed to clean up stale jobs: %v", err)
	} else if n > 0 {
		log.Printf("Marked %d stale running job(s) as failed", n)
	}

	// Cargar pool de cuentas y rotación con cuota diaria
	accounts, err := rotation.LoadAccounts()
	if err != nil {
		log.Fatalf("Failed to load Instagram accounts: %v", err)
	}
	statsPath := filepath.Join(cfg.DataDir, "account_stats.json")
	rotator := rotation.New(accounts, statsPath, cfg.Rotation.MaxFollowsPerDay)
	log.Printf("✓ Account pool loaded (%d accounts, %d follows/day each)",
		len(accounts), cfg.Rotation.MaxFollowsPerDay)

	// Reset de cuotas programado además del chequeo perezoso que hace
	// el rotator en cada consulta
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Rotation.ResetCron, func() {
		if err := rotator.ResetIfNewDay(); err != nil {
			log.Printf("Quota reset failed: %v", err)
		} else {
			log.Println("Daily follow quotas reset")
		}
	}); err != nil {
		log.Fatalf("Invalid reset schedule %q: %v", cfg.Rotation.ResetCron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Ejecutor real contra el dispositivo
	executor := daemon.NewDeviceExecutor(daemon.ExecutorConfig{
		Device: device.Config{
			AppiumURL:  cfg.AppiumURL(),
			DeviceName: cfg.Device.Name,
			ADBPath:    cfg.Device.ADBPath,
		},
		Checker: checker.Config{
			ScreenshotsDir: paths.ScreenshotsDir(),
		},
		Runner: runner.Config{
			BatchSize:   cfg.Checker.BatchSize,
			Delay:       cfg.Delay(),
			Resume:      true,
			RetryErrors: cfg.Checker.RetryErrors,
		},
	})
	log.Printf("✓ Device executor ready (appium: %s, device: %s)",
		cfg.AppiumURL(), cfg.Device.Name)

	// Worker único: un solo dispositivo, un trabajo a la vez
	queueMgr := daemon.NewQueueManager(db.JobRepo, rotator, executor, paths, nil)
	queueMgr.Start()
	defer queueMgr.Stop()
	log.Println("✓ Queue manager started")

	handlers := daemon.NewHandlers(db.JobRepo, rotator, queueMgr, paths)
	server := daemon.NewServer(cfg.Server.ListenAddr, handlers)
	serverErr := server.Start()

	log.Printf("✓ Server listening on %s", cfg.Server.ListenAddr)
	log.Println("icheckd is ready")

	// Esperar señal de terminación o caída del servidor
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErr:
		log.Printf("Server error: %v", err)
	}

	log.Println("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
