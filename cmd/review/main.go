// Command review runs one glossary review job in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"glossary-review/internal/bootstrap"
	"glossary-review/internal/config"
	"glossary-review/internal/domain"
	"glossary-review/internal/tui"
)

func main() {
	rounds := flag.Int("rounds", 1, "number of review rounds (1-10)")
	dir := flag.String("dir", "", "task folder; defaults to the saved task")
	background := flag.String("context", "", "novel background sent with every batch")
	flag.Parse()

	if err := run(*rounds, *dir, *background); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(rounds int, dir, background string) error {
	rt, err := config.LoadRuntime()
	if err != nil {
		return fmt.Errorf("load runtime config: %w", err)
	}

	// The terminal belongs to the UI, so process logs go to a file.
	logDir := filepath.Dir(rt.Paths.ConfigFile)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logPath := filepath.Join(logDir, "review.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := bootstrap.NewLoggerTo(rt.Log, logFile)

	app, err := bootstrap.New(*rt, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if dir != "" {
		_, err = app.StartTask(rounds, domain.TaskConfig{Directory: dir, Context: background})
	} else {
		_, err = app.StartJob(rounds)
	}
	if err != nil {
		return err
	}

	monitor := tui.NewMonitor(app.Jobs)
	if _, err := tea.NewProgram(monitor).Run(); err != nil {
		app.Jobs.Stop()
		return fmt.Errorf("run terminal ui: %w", err)
	}

	if !monitor.Done() {
		fmt.Println("Waiting for in-flight requests...")
		app.Jobs.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), rt.Provider.CallTimeout)
		defer cancel()
		if err := app.Jobs.Wait(ctx); err != nil {
			return fmt.Errorf("job did not stop in time: %w", err)
		}
	}

	if logs := app.GetStatus(0).Logs; len(logs) > 0 {
		fmt.Println(logs[len(logs)-1])
	}
	return nil
}
