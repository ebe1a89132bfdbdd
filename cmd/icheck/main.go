package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsanchez/insta-checker/internal/checker"
	"github.com/elsanchez/insta-checker/internal/config"
	"github.com/elsanchez/insta-checker/internal/daemon"
	"github.com/elsanchez/insta-checker/internal/device"
	"github.com/elsanchez/insta-checker/internal/domain"
	"github.com/elsanchez/insta-checker/internal/results"
	"github.com/elsanchez/insta-checker/internal/rotation"
	"github.com/elsanchez/insta-checker/internal/runner"
	"github.com/elsanchez/insta-checker/internal/tui/batch"
	"github.com/elsanchez/insta-checker/pkg/client"
)

const (
	version = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	c := client.NewDefaultClient()

	switch os.Args[1] {
	case "run":
		handleRun(os.Args[2:])
	case "upload":
		handleUpload(c, os.Args[2:])
	case "start":
		handleStart(c, os.Args[2:])
	case "queue":
		handleQueue(c)
	case "status":
		handleStatus(c)
	case "job":
		handleJob(c, os.Args[2:])
	case "cancel":
		handleCancel(c, os.Args[2:])
	case "stop":
		handleStop(c)
	case "results", "get":
		handleResults(c, os.Args[2:])
	case "uploads":
		handleUploads(c)
	case "version":
		fmt.Printf("icheck v%s\n", version)
	case "help":
		printUsage()
	default:
		// Si el primer argumento parece un CSV, asumir que es "run"
		if strings.HasSuffix(os.Args[1], ".csv") {
			handleRun(os.Args[1:])
		} else {
			fmt.Printf("Unknown command: %s\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}
}

func printUsage() {
	fmt.Println(`Instagram Fraud Warning Checker (icheck) v` + version + `

Usage: icheck <command> [args]

Local commands:
  run <accounts.csv> [options]  Check accounts using the local device

Daemon commands:
  upload <file.csv>    Upload a target list to the daemon
  start <filename>     Queue a check job for an uploaded file
  queue                Show queued and running jobs
  status               Show daemon status and account usage
  job <id>             Show details for one job
  cancel <id>          Cancel a queued or running job
  stop                 Stop the currently running job
  results [name] [-o]  List result files, or download one
  uploads              List uploaded files
  version              Show version
  help                 Show this help

Run Options:
  --out <file>        Results CSV path (default: <input>_results.csv)
  --config <file>     Config file (default: config.yaml)
  --tui               Interactive progress view
  --no-resume         Ignore existing rows in the results file
  --retry-errors      Re-check accounts that previously errored
  --delay <seconds>   Pause between accounts (overrides config)
  --device <name>     Device name (overrides config)
  --batch-size <n>    Accounts per session before restart (overrides config)

Examples:
  icheck run targets.csv
  icheck run targets.csv --tui --out out/targets_results.csv
  icheck upload targets.csv
  icheck start targets.csv
  icheck results targets_results.csv -o ./downloads/
  icheck cancel 7a3f...`)
}

func fatalf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}

func handleRun(args []string) {
	runFlags := flag.NewFlagSet("run", flag.ExitOnError)
	out := runFlags.String("out", "", "results CSV path")
	configPath := runFlags.String("config", "config.yaml", "config file")
	useTUI := runFlags.Bool("tui", false, "interactive progress view")
	noResume := runFlags.Bool("no-resume", false, "ignore existing results")
	retryErrors := runFlags.Bool("retry-errors", false, "re-check errored accounts")
	delay := runFlags.Int("delay", 0, "seconds between accounts (overrides config)")
	deviceName := runFlags.String("device", "", "device name (overrides config)")
	batchSize := runFlags.Int("batch-size", 0, "accounts per session (overrides config)")

	if len(args) == 0 {
		fatalf("Error: accounts CSV is required\nUsage: icheck run <accounts.csv> [options]")
	}
	input := args[0]
	if len(args) > 1 {
		runFlags.Parse(args[1:])
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("Error: %v", err)
	}
	if *delay > 0 {
		cfg.Checker.DelaySeconds = *delay
	}
	if *deviceName != "" {
		cfg.Device.Name = *deviceName
	}
	if *batchSize > 0 {
		cfg.Checker.BatchSize = *batchSize
	}
	if err := cfg.Validate(); err != nil {
		fatalf("Error: %v", err)
	}

	accounts, err := results.ParseAccounts(input)
	if err != nil {
		fatalf("Error: %v", err)
	}

	resultPath := *out
	if resultPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		resultPath = base + "_results.csv"
	}

	igAccounts, err := rotation.LoadAccounts()
	if err != nil {
		fatalf("Error: %v", err)
	}
	statsPath := filepath.Join(cfg.DataDir, "account_stats.json")
	rotator := rotation.New(igAccounts, statsPath, cfg.Rotation.MaxFollowsPerDay)

	account, used, err := rotator.Available()
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("Using account %s (%d/%d follows today)\n",
		account.Username, used, cfg.Rotation.MaxFollowsPerDay)
	fmt.Printf("Checking %d account(s), results: %s\n", len(accounts), resultPath)

	executor := daemon.NewDeviceExecutor(daemon.ExecutorConfig{
		Device: device.Config{
			AppiumURL:  cfg.AppiumURL(),
			DeviceName: cfg.Device.Name,
			ADBPath:    cfg.Device.ADBPath,
		},
		Checker: checker.Config{
			ScreenshotsDir: filepath.Join(cfg.DataDir, "screenshots"),
		},
		Runner: runner.Config{
			BatchSize:   cfg.Checker.BatchSize,
			Delay:       cfg.Delay(),
			Resume:      !*noResume,
			RetryErrors: *retryErrors,
		},
	})

	job := &domain.Job{ID: "local", Filename: filepath.Base(input)}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// El recuento de follows vale igual en local: un NoWarning implica
	// un follow creado con la cuenta en uso
	recordFollows := func(ev domain.Event) {
		if _, ok := ev.(domain.NoWarning); ok {
			if err := rotator.RecordFollow(account.Username); err != nil {
				log.Printf("record follow: %v", err)
			}
		}
	}

	var summary *domain.Summary
	if *useTUI {
		summary, err = runWithTUI(ctx, cancel, executor, job, account, accounts, resultPath, recordFollows)
	} else {
		onProgress := func(current, total int, username string, ev domain.Event) {
			recordFollows(ev)
			if line := progressLine(current, total, username, ev); line != "" {
				fmt.Println(line)
			}
		}
		summary, err = executor.Execute(ctx, job, account, accounts, resultPath, onProgress)
	}

	if summary != nil {
		fmt.Println()
		fmt.Printf("Warnings:    %d\n", summary.Warnings)
		fmt.Printf("No warning:  %d\n", summary.Normal)
		fmt.Printf("Not found:   %d\n", summary.NotFound)
		fmt.Printf("Load failed: %d\n", summary.LoadFailed)
		fmt.Printf("Errors:      %d\n", summary.Errors)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\nStopped. Re-run the same command to resume.")
			os.Exit(130)
		}
		fatalf("Error: %v", err)
	}
}

func runWithTUI(ctx context.Context, cancel context.CancelFunc, executor *daemon.DeviceExecutor,
	job *domain.Job, account domain.InstagramAccount, accounts []string,
	resultPath string, recordFollows func(domain.Event)) (*domain.Summary, error) {

	updates := make(chan batch.Update)
	model := batch.New(updates, cancel)
	program := tea.NewProgram(model)

	feed := batch.Feed(updates)
	onProgress := func(current, total int, username string, ev domain.Event) {
		recordFollows(ev)
		feed(current, total, username, ev)
	}

	go func() {
		summary, err := executor.Execute(ctx, job, account, accounts, resultPath, onProgress)
		close(updates)
		program.Send(batch.RunDone(summary, err))
	}()

	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("run progress view: %w", err)
	}
	m := final.(batch.Model)
	return m.Summary(), m.Err()
}

func progressLine(current, total int, username string, ev domain.Event) string {
	switch e := ev.(type) {
	case domain.Starting:
		return fmt.Sprintf("[%d/%d] %s", current, total, username)
	case domain.WarningDetected:
		return fmt.Sprintf("  ⚠ fraud warning: %s", e.Details)
	case domain.NoWarning:
		return "  ✓ no warning"
	case domain.NotFound:
		return "  – not found"
	case domain.LoadFailed:
		return "  ✗ profile did not load"
	case domain.ErrorEvent:
		return "  ✗ " + e.Message
	case domain.SessionRecovery:
		return "  recovering device session..."
	default:
		return ""
	}
}

func handleUpload(c *client.Client, args []string) {
	if len(args) == 0 {
		fatalf("Error: file is required\nUsage: icheck upload <file.csv>")
	}

	name, err := c.Upload(context.Background(), args[0])
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("✓ Uploaded as %s\n", name)
	fmt.Printf("  Start with: icheck start %s\n", name)
}

func handleStart(c *client.Client, args []string) {
	if len(args) == 0 {
		fatalf("Error: filename is required\nUsage: icheck start <filename>")
	}

	job, err := c.Start(context.Background(), args[0])
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("✓ Job queued with ID: %s\n", job.ID)
	fmt.Printf("  File: %s\n", job.Filename)
	fmt.Printf("  Status: %s\n", job.Status)
}

func handleQueue(c *client.Client) {
	state, err := c.Queue(context.Background())
	if err != nil {
		fatalf("Error: %v", err)
	}

	if state.Running != nil {
		fmt.Println("Running:")
		printJob(state.Running)
		fmt.Println()
	}

	if state.Count == 0 {
		fmt.Println("Queue is empty")
		return
	}
	fmt.Printf("Queued (%d):\n\n", state.Count)
	for i := range state.Queued {
		printJob(&state.Queued[i])
		fmt.Println()
	}
}

func handleStatus(c *client.Client) {
	status, err := c.Status(context.Background())
	if err != nil {
		fatalf("Error: %v", err)
	}

	fmt.Println("Jobs:")
	for _, s := range []string{"pending", "running", "completed", "failed", "cancelled"} {
		fmt.Printf("  %-12s %d\n", s+":", status.Jobs[s])
	}

	fmt.Println("\nAccount usage (follows today):")
	if len(status.AccountUsage) == 0 {
		fmt.Println("  (no accounts)")
	}
	for username, used := range status.AccountUsage {
		fmt.Printf("  %-20s %d / %d\n", username, used, status.MaxFollowsPerDay)
	}

	if status.Running != nil {
		fmt.Println("\nRunning:")
		printJob(status.Running)
	}

	if len(status.Log) > 0 {
		fmt.Println("\nRecent log:")
		for _, line := range status.Log {
			fmt.Println("  " + line)
		}
	}
}

func handleJob(c *client.Client, args []string) {
	if len(args) == 0 {
		fatalf("Error: job ID is required\nUsage: icheck job <id>")
	}

	job, err := c.Job(context.Background(), args[0])
	if err != nil {
		fatalf("Error: %v", err)
	}
	printJob(job)
}

func printJob(job *client.Job) {
	fmt.Printf("ID: %s\n", job.ID)
	fmt.Printf("  File: %s\n", job.Filename)
	fmt.Printf("  Status: %s\n", job.Status)
	if job.Total > 0 {
		fmt.Printf("  Progress: %d/%d\n", job.Progress, job.Total)
	}
	if job.CurrentAccount != "" {
		fmt.Printf("  Checking: %s\n", job.CurrentAccount)
	}
	if job.InstagramAccount != "" {
		fmt.Printf("  Account: %s\n", job.InstagramAccount)
	}
	if job.ResultFile != "" {
		fmt.Printf("  Results: %s\n", job.ResultFile)
	}
	if job.ErrorMessage != "" {
		fmt.Printf("  Error: %s\n", job.ErrorMessage)
	}
}

func handleCancel(c *client.Client, args []string) {
	if len(args) == 0 {
		fatalf("Error: job ID is required\nUsage: icheck cancel <id>")
	}

	if err := c.Cancel(context.Background(), args[0]); err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("✓ Cancellation requested for %s\n", args[0])
}

func handleStop(c *client.Client) {
	if err := c.Stop(context.Background()); err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Println("✓ Stop requested for running job")
}

func handleResults(c *client.Client, args []string) {
	resultsFlags := flag.NewFlagSet("results", flag.ExitOnError)
	outDir := resultsFlags.String("o", ".", "download directory")

	if len(args) == 0 {
		listing, err := c.ListResults(context.Background())
		if err != nil {
			fatalf("Error: %v", err)
		}
		if listing.Count == 0 {
			fmt.Println("No result files")
			return
		}
		fmt.Printf("Result files (%d):\n", listing.Count)
		for _, name := range listing.Files {
			fmt.Println("  " + name)
		}
		return
	}

	name := args[0]
	if len(args) > 1 {
		resultsFlags.Parse(args[1:])
	}

	dest := filepath.Join(*outDir, filepath.Base(name))
	if err := c.DownloadResult(context.Background(), name, dest); err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("✓ Downloaded to %s\n", dest)
}

func handleUploads(c *client.Client) {
	listing, err := c.ListUploads(context.Background())
	if err != nil {
		fatalf("Error: %v", err)
	}
	if listing.Count == 0 {
		fmt.Println("No uploaded files")
		return
	}
	fmt.Printf("Uploaded files (%d):\n", listing.Count)
	for _, name := range listing.Files {
		fmt.Println("  " + name)
	}
}
