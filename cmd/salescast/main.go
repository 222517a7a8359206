package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hokaccha/go-prettyjson"

	"salescast/internal/apiclient"
	"salescast/internal/cmdlog"
	"salescast/internal/config"
	"salescast/internal/forecast"
	"salescast/internal/journal"
	"salescast/internal/logging"
	"salescast/internal/metrics"
	"salescast/internal/model"
	"salescast/internal/reconcile"
	"salescast/internal/schedule"
	"salescast/internal/theme"
	"salescast/internal/util"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	var err error
	switch cmd {
	case "init":
		err = cmdlog.Run("init", cmdInit)
	case "status":
		err = cmdlog.Run("status", cmdStatus)
	case "forecast":
		err = cmdlog.Run("forecast", cmdForecast)
	case "retrain":
		err = cmdlog.Run("retrain", cmdRetrain)
	default:
		printHelp()
		return
	}
	if err != nil {
		theme.PrintStatus(os.Stderr, theme.Failure, "Error: "+err.Error())
		os.Exit(1)
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: salescast <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./salescast.yaml")
	fmt.Println("  status      Show server health and the active hyperparameters")
	fmt.Println("  forecast    Show the weekly sales forecast")
	fmt.Println("  retrain     Retrain the model and wait for the new parameters")
}

func loadConfig(fs *flag.FlagSet) (config.Config, error) {
	cfgPath := fs.String("config", "./salescast.yaml", "config path")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return cfg, err
	}
	if err := logging.SetLevel(cfg.Logging.Level); err != nil {
		return cfg, err
	}
	if cfg.Metrics.Addr != "" {
		metrics.StartServer(cfg.Metrics.Addr)
	}
	return cfg, nil
}

func cmdInit() error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./salescast.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	if err := config.Save(*path, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
	return nil
}

func cmdStatus() error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	client := apiclient.NewHTTPClient(cfg.Server)
	ctx := context.Background()
	health, err := client.Health(ctx)
	if err != nil {
		return err
	}
	active, err := client.ReadConfig(ctx)
	if err != nil {
		return err
	}
	out, err := prettyjson.Marshal(map[string]any{
		"server": cfg.Server.BaseURL,
		"health": health,
		"active": active,
	})
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func cmdForecast() error {
	fs := flag.NewFlagSet("forecast", flag.ExitOnError)
	weeks := fs.Int("weeks", 0, "weeks to forecast (1-52, default from config)")
	width := fs.Int("width", 40, "chart width")
	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	if *weeks == 0 {
		*weeks = cfg.Forecast.DefaultWeeks
	}
	client := apiclient.NewHTTPClient(cfg.Server)
	return forecast.Report(context.Background(), os.Stdout, client, *weeks, *width)
}

func cmdRetrain() error {
	fs := flag.NewFlagSet("retrain", flag.ExitOnError)
	trees := fs.String("trees", "", "number of trees (default: server value)")
	lr := fs.String("lr", "", "learning rate (default: server value)")
	seed := fs.String("seed", "", "random seed (default: server value)")
	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := journal.Open()
	if err != nil {
		return err
	}
	defer db.Close()

	client := apiclient.NewHTTPClient(cfg.Server)
	sink := reconcile.Sinks{consoleSink(os.Stdout), db}
	ctl := reconcile.New(client.NoRetry(), client, sink, reconcile.OptionsFromConfig(cfg.Poll))
	defer ctl.Close()

	// prefill the form from the server, as the dashboard does
	current, err := ctl.Load(ctx)
	var prefill *model.HyperparameterSet
	if err != nil {
		theme.PrintStatus(os.Stdout, theme.Warning, "Could not read current parameters: "+err.Error())
	} else {
		prefill = &current
	}
	target, err := buildTarget(prefill, *trees, *lr, *seed)
	if err != nil {
		return err
	}

	window := schedule.Window{Interval: cfg.Poll.Interval, MaxAttempts: cfg.Poll.MaxAttempts}
	fmt.Printf("Target %s, waiting up to %s\n", target, window.Length())

	run, err := ctl.Retrain(ctx, target)
	if err != nil {
		return err
	}
	phase, err := run.Wait(ctx)
	if err != nil && errors.Is(err, context.Canceled) {
		ctl.Close()
		phase, err = run.Wait(context.Background())
	}
	printHistory(os.Stdout, db, run.ID)
	if phase == reconcile.PhaseTimedOut && errors.Is(err, reconcile.ErrTimedOut) {
		// the job may still land; not a command failure
		return nil
	}
	return err
}

var errMissingFlags = errors.New("current parameters unavailable; pass -trees, -lr and -seed")

// buildTarget parses the retrain flags. Empty flags take their value from
// prefill; without a prefill every flag is required.
func buildTarget(prefill *model.HyperparameterSet, trees, lr, seed string) (model.HyperparameterSet, error) {
	if prefill == nil {
		if trees == "" || lr == "" || seed == "" {
			return model.HyperparameterSet{}, errMissingFlags
		}
		return model.FormInput{TreeCount: trees, LearningRate: lr, RandomSeed: seed}.Parse()
	}
	return model.FormInput{
		TreeCount:    orDefault(trees, strconv.Itoa(prefill.TreeCount)),
		LearningRate: orDefault(lr, strconv.FormatFloat(prefill.LearningRate, 'g', -1, 64)),
		RandomSeed:   orDefault(seed, strconv.Itoa(prefill.RandomSeed)),
	}.Parse()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func consoleSink(w io.Writer) reconcile.Sink {
	return reconcile.SinkFunc(func(s reconcile.Status) {
		msg := s.Message
		if s.Phase == reconcile.PhasePolling && s.Remaining > 0 {
			msg += fmt.Sprintf(" (%s left)", s.Remaining.Round(time.Second))
		}
		theme.PrintStatus(w, toneFor(s.Phase), msg)
	})
}

func toneFor(p reconcile.Phase) theme.Tone {
	switch p {
	case reconcile.PhaseMatched:
		return theme.Success
	case reconcile.PhaseTimedOut:
		return theme.Warning
	case reconcile.PhaseSubmissionFailed:
		return theme.Failure
	default:
		return theme.Pending
	}
}

func printHistory(w io.Writer, db *journal.DB, runID string) {
	entries, err := db.History(context.Background(), runID)
	if err != nil {
		logging.Warn("journal_history_error", map[string]any{"run_id": runID, "error": err.Error()})
		return
	}
	fmt.Fprintf(w, "\nRun %s\n", runID)
	for _, e := range entries {
		observed := "-"
		if e.Observed != nil {
			observed = e.Observed.String()
		}
		fmt.Fprintf(w, "  %s  %-17s %2d  %-40s %s\n",
			e.At.Local().Format(time.TimeOnly), e.Phase, e.Attempt, util.Truncate(e.Message, 40), observed)
	}
}
