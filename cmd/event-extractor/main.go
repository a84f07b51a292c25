package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"eventextractor/internal/config"
	"eventextractor/internal/job"
	appLog "eventextractor/internal/log"
	"eventextractor/internal/metrics"
	"eventextractor/internal/web"
)

const version = "0.1.0"

const defaultConfigPath = "/etc/event-extractor/config.yaml"

type flagConfig struct {
	configPath string
	input      string
	output     string
	remove     bool
	watch      bool
	verify     bool
	upcoming   int
	listen     string
	logLevel   string
}

func main() {
	// .env is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		appLog.Warn("could not read .env", "err", err.Error())
	}

	flags := parseFlags()

	conf, err := loadConfig(flags)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	if lvl, ok := appLog.ParseLevel(conf.LogLevel); ok {
		appLog.SetLevel(lvl)
	} else {
		appLog.Warn("unknown log level; using info", "log_level", conf.LogLevel)
	}

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err)
		os.Exit(1)
	}
	if len(conf.Entries) == 0 {
		appLog.Error("nothing to do", errors.New("no entries configured"), "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("event-extractor starting",
		"version", version,
		"entries", len(conf.Entries),
		"years_before", conf.YearsBefore,
		"years_after", conf.YearsAfter,
		"strict", conf.Strict,
		"watch", flags.watch,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	runner := job.NewRunner(conf, metrics.New(reg))

	switch {
	case flags.verify:
		err = runVerify(conf.Entries)
	case flags.upcoming > 0:
		err = runUpcoming(ctx, runner, conf, flags.upcoming)
	case flags.watch:
		err = runWatch(ctx, runner, conf, reg)
	default:
		_, err = runner.RunAll(ctx, conf.Entries)
	}
	if err != nil {
		appLog.Error("event-extractor failed", err)
		os.Exit(1)
	}
	appLog.Info("event-extractor exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	configDefault := os.Getenv("EVENT_EXTRACTOR_CONFIG")
	if configDefault == "" {
		configDefault = defaultConfigPath
	}

	flag.StringVar(&cfg.configPath, "config", configDefault, "Path to config file (env EVENT_EXTRACTOR_CONFIG)")
	flag.StringVar(&cfg.input, "input", "", "Directory of .vcf files or vCard URL; with -output, replaces the config file")
	flag.StringVar(&cfg.output, "output", "", "Directory the .ics files are written to")
	flag.BoolVar(&cfg.remove, "remove", false, "Remove existing .ics files in -output first")
	flag.BoolVar(&cfg.watch, "watch", false, "Keep running and regenerate on the configured cron schedule")
	flag.BoolVar(&cfg.verify, "verify", false, "Re-parse the generated .ics files and exit")
	flag.IntVar(&cfg.upcoming, "upcoming", 0, "Print birthdays in the next N days and exit")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address in watch mode (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", os.Getenv("EVENT_EXTRACTOR_LOG_LEVEL"), "debug, info, warn or error (env EVENT_EXTRACTOR_LOG_LEVEL)")

	flag.Parse()

	return cfg
}

// loadConfig reads the config file, unless -input and -output describe a
// single entry on the command line.
func loadConfig(flags flagConfig) (*config.Config, error) {
	if flags.input != "" || flags.output != "" {
		if flags.input == "" || flags.output == "" {
			return nil, errors.New("-input and -output must be used together")
		}
		conf := config.DefaultConfig()
		conf.Entries = []config.Entry{{
			Input:       flags.input,
			Output:      flags.output,
			RemoveFiles: flags.remove,
		}}
		return conf, nil
	}
	return config.Load(flags.configPath)
}

func runVerify(entries []config.Entry) error {
	var errs []error
	total := 0
	for _, e := range entries {
		n, err := job.Verify(e.Output)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	fmt.Printf("%d reminders verified\n", total)
	return errors.Join(errs...)
}

func runUpcoming(ctx context.Context, r *job.Runner, conf *config.Config, days int) error {
	loc, err := conf.Location()
	if err != nil {
		return err
	}
	occs, err := r.Upcoming(ctx, conf.Entries, days, loc)
	if err != nil {
		return err
	}
	for _, o := range occs {
		age := ""
		if o.Age != nil {
			age = fmt.Sprintf(" (%d)", *o.Age)
		}
		fmt.Printf("%s  %s%s\n", o.Date.Format("2006-01-02"), o.Name, age)
	}
	return nil
}

// runWatch runs all entries once, then on conf.RefreshCron until ctx is
// cancelled. The HTTP server runs alongside when conf.Listen is set.
func runWatch(ctx context.Context, r *job.Runner, conf *config.Config, reg *prometheus.Registry) error {
	if _, err := r.RunAll(ctx, conf.Entries); err != nil {
		appLog.Error("initial run failed", err)
	}

	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		if _, err := r.RunAll(ctx, conf.Entries); err != nil {
			appLog.Error("scheduled run failed", err)
		}
	}); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", conf.RefreshCron, err)
	}
	c.Start()
	appLog.Info("scheduler started", "refresh", conf.RefreshCron)

	var serverErr error
	if conf.Listen != "" {
		serverErr = web.StartServer(ctx, conf, r, reg)
	} else {
		<-ctx.Done()
	}

	appLog.Info("stopping scheduler")
	<-c.Stop().Done()
	return serverErr
}
