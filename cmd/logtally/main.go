package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/logtally/internal/adapters/input"
	"github.com/xoelrdgz/logtally/internal/adapters/output"
	"github.com/xoelrdgz/logtally/internal/adapters/storage"
	"github.com/xoelrdgz/logtally/internal/app"
	"github.com/xoelrdgz/logtally/internal/domain"
)

var (
	cfgFile   string
	startDate string
	duration  string
	threshold int
	accessLog string
	jsonOut   bool

	genOutput    string
	genLines     int
	genStart     string
	genSpan      time.Duration
	genHeavy     int
	genHeavyPct  int
	genMalformed int
	genSeed      int64

	historyLimit int

	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "logtally",
	Short: "Load an access log into SQL and flag busy addresses",
	Long: `logtally reads a pipe-delimited access log, stores every valid record
in the LOG_DATA table, counts requests per source address inside a time
window, and records addresses over the threshold in EXCESS_REQUESTS.

Log format:
  yyyy-MM-dd HH:mm:ss.SSS|address|request|status|user agent

Examples:
  logtally --startDate=2017-01-01.13:00:00 --duration=hourly --threshold=100 --accesslog=access.log
  logtally --startDate=2017-01-01.00:00:00 --duration=daily --threshold=250 --accesslog=access.log --json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTally,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic access log",
	Long: `Write a synthetic pipe-delimited access log with a few heavy hitters
and a share of malformed lines.

Examples:
  logtally generate -o access.log --lines 50000 --heavy 5
  logtally generate --start 2017-01-01.00:00:00 --span 1h --malformed-percent 5`,
	RunE: runGenerate,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous runs, newest first",
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("logtally %s\n", Version)
		fmt.Printf("Commit:  %s\n", Commit)
		fmt.Printf("Built:   %s\n", BuildTime)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")

	flags := rootCmd.Flags()
	flags.StringVar(&startDate, "startDate", "", "window start, yyyy-MM-dd.HH:mm:ss")
	flags.StringVar(&duration, "duration", "", "window length: daily or hourly")
	flags.IntVar(&threshold, "threshold", 0, "flag addresses with more requests than this")
	flags.StringVar(&accessLog, "accesslog", "", "access log to load")
	flags.BoolVar(&jsonOut, "json", false, "also write flagged addresses as JSON lines")
	flags.String("timezone", "", "time zone for the start date and log timestamps (default: local)")
	for _, name := range []string{"startDate", "duration", "threshold", "accesslog"} {
		rootCmd.MarkFlagRequired(name)
	}

	viper.BindPFlag("output.json.enabled", flags.Lookup("json"))
	viper.BindPFlag("timezone", flags.Lookup("timezone"))

	gen := generateCmd.Flags()
	gen.StringVarP(&genOutput, "output", "o", "", "output file (default: stdout)")
	gen.IntVar(&genLines, "lines", 10000, "number of lines")
	gen.StringVar(&genStart, "start", "2017-01-01.00:00:00", "timestamp of the first line, yyyy-MM-dd.HH:mm:ss")
	gen.DurationVar(&genSpan, "span", 24*time.Hour, "time covered by the log")
	gen.IntVar(&genHeavy, "heavy", 5, "number of heavy-hitter addresses")
	gen.IntVar(&genHeavyPct, "heavy-percent", 20, "share of lines from heavy hitters")
	gen.IntVar(&genMalformed, "malformed-percent", 1, "share of malformed lines")
	gen.Int64Var(&genSeed, "seed", 1, "random seed")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "runs to show (0 for all)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/logtally")
	}

	viper.SetDefault("database.driver", storage.DriverSQLite)
	viper.SetDefault("database.dsn", storage.DefaultSQLConfig().DSN)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("output.json.enabled", false)
	viper.SetDefault("output.json.path", "")
	viper.SetDefault("output.json.pretty", false)
	viper.SetDefault("output.report.enabled", true)
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.textfile", "")
	viper.SetDefault("metrics.pushgateway", "")
	viper.SetDefault("metrics.job", "logtally")
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", storage.DefaultHistoryPath())
	viper.SetDefault("timezone", "")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Msg("Error reading config file")
		}
	}

	viper.SetEnvPrefix("LOGTALLY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func setupLogging() {
	switch viper.GetString("logging.level") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if viper.GetString("logging.format") == "json" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}

func runTally(cmd *cobra.Command, args []string) error {
	setupLogging()

	config, err := app.NewRunConfig(app.RunSettings{
		StartDate: startDate,
		Duration:  duration,
		Threshold: threshold,
		AccessLog: accessLog,
		Timezone:  viper.GetString("timezone"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := output.NewConsoleReporter(cmd.OutOrStdout())

	store, err := storage.OpenSQLStore(ctx, storage.SQLConfig{
		Driver:   viper.GetString("database.driver"),
		DSN:      viper.GetString("database.dsn"),
		Location: config.Location,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	console.Notify("Database connection established")

	source := input.NewFileLineSource(config.AccessLog, 0)
	if err := source.Open(); err != nil {
		return err
	}

	log.Info().
		Str("accesslog", config.AccessLog).
		Str("window", config.Window.String()).
		Int("threshold", config.Threshold).
		Str("driver", store.Driver()).
		Msg("logtally started")

	pipeline := app.NewPipeline(config, source, input.NewPipeLogParser(config.Location), store)
	pipeline.SetNotifier(console)
	pipeline.AddReporter(console)

	if jsonOut || viper.GetBool("output.json.enabled") {
		jsonReporter, err := output.NewJSONReporter(output.JSONReporterConfig{
			FilePath: viper.GetString("output.json.path"),
			Pretty:   viper.GetBool("output.json.pretty"),
		})
		if err != nil {
			return fmt.Errorf("failed to create JSON reporter: %w", err)
		}
		defer jsonReporter.Close()
		pipeline.AddReporter(jsonReporter)
	}

	if viper.GetBool("metrics.enabled") {
		metrics := output.NewPrometheusMetrics(output.MetricsConfig{
			Textfile:    viper.GetString("metrics.textfile"),
			Pushgateway: viper.GetString("metrics.pushgateway"),
			Job:         viper.GetString("metrics.job"),
		})
		pipeline.AddProcessingObserver(metrics)
		pipeline.AddRunObserver(metrics)
	}

	if viper.GetBool("history.enabled") {
		history, err := storage.OpenBoltHistory(viper.GetString("history.path"))
		if err != nil {
			log.Warn().Err(err).Msg("Run history disabled")
		} else {
			defer history.Close()
			pipeline.AddRunObserver(history)
		}
	}

	if viper.GetBool("output.report.enabled") {
		report := output.NewSummaryReport(os.Stderr)
		pipeline.AddReporter(report)
		pipeline.AddRunObserver(report)
	}

	summary, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	console.Notify(completionLine(summary))
	return nil
}

func completionLine(s domain.RunSummary) string {
	return fmt.Sprintf("Processing complete: %d lines read, %d stored, %d skipped, %d addresses flagged",
		s.LinesRead, s.RowsWritten, s.Skipped, s.FlagsWritten)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	setupLogging()

	loc, err := app.LoadLocation(viper.GetString("timezone"))
	if err != nil {
		return err
	}
	start, err := domain.ParseStartDate(genStart, loc)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if genOutput != "" {
		f, err := os.Create(genOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	gen := input.NewSampleGenerator(input.SampleConfig{
		Lines:            genLines,
		Start:            start,
		Span:             genSpan,
		HeavyHitters:     genHeavy,
		HeavyPercent:     genHeavyPct,
		MalformedPercent: genMalformed,
		Seed:             genSeed,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := gen.WriteTo(ctx, w)
	if err != nil {
		return err
	}
	log.Info().
		Int("lines", n).
		Strs("heavy_hitters", gen.HeavyHitters()).
		Msg("Sample log written")
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	setupLogging()

	history, err := storage.OpenBoltHistory(viper.GetString("history.path"))
	if err != nil {
		return err
	}
	defer history.Close()

	runs, err := history.List(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	fmt.Printf("%-40s %-44s %9s %9s %8s %7s\n", "ID", "WINDOW", "THRESHOLD", "LINES", "SKIPPED", "FLAGGED")
	for _, r := range runs {
		fmt.Printf("%-40s %-44s %9d %9d %8d %7d\n",
			r.ID, r.Window.String(), r.Threshold, r.Summary.LinesRead, r.Summary.Skipped, len(r.Flagged))
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
