package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Tiliavir/watch-drift/internal/config"
	"github.com/Tiliavir/watch-drift/internal/logging"
	"github.com/Tiliavir/watch-drift/internal/rate"
	"github.com/Tiliavir/watch-drift/internal/storage"
)

var (
	configPath string
	storeFlag  string
	dataDir    string
	noNTP      bool
	logLevel   string
	noColor    bool
	useUTC     bool
)

// Loaded in PersistentPreRunE.
var (
	cfg    config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "wdrift",
	Short: "wdrift – measure how fast or slow a mechanical watch runs",
	Long: `wdrift estimates a mechanical watch's daily rate without instruments.

Click the mouse when the seconds hand passes 12 o'clock to record a sync,
then do the same again a day or more later to measure. Click instants are
taken from an NTP-corrected clock. Records are kept in ~/.wdrift/.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorMessage(err))
		os.Exit(exitCode(err))
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default ~/.wdrift/config.json)")
	pf.StringVar(&storeFlag, "store", "", "Storage backend: json or sqlite (overrides config)")
	pf.StringVar(&dataDir, "data-dir", "", "Data directory (default ~/.wdrift)")
	pf.BoolVar(&noNTP, "no-ntp", false, "Trust the local clock instead of querying NTP")
	pf.StringVar(&logLevel, "log-level", "warn", "Diagnostic log level: debug, info, warn, error")
	pf.BoolVar(&noColor, "no-color", false, "Disable coloured output")
	pf.BoolVar(&useUTC, "utc", false, "Print timestamps in UTC instead of local time")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(measureCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(clockCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if storeFlag != "" {
		cfg.Store = storeFlag
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	logger, err = logging.New(logLevel)
	if err != nil {
		return err
	}

	if noColor || !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
	return nil
}

// openService opens the configured store. The caller closes the store.
func openService() (*rate.Service, storage.Store, error) {
	dir := cfg.DataDir
	if dir == "" {
		var err error
		if dir, err = storage.BaseDir(); err != nil {
			return nil, nil, err
		}
	}
	store, err := storage.Open(cfg.Store, dir)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("store opened", "backend", cfg.Store, "dir", dir)
	svc := rate.NewService(store,
		rate.WithLogger(logger),
		rate.WithMaxDailyRate(cfg.MaxDailyRate),
	)
	return svc, store, nil
}

// exitCode maps storage failures to 2 and everything else to 1.
func exitCode(err error) int {
	if errors.Is(err, storage.ErrStorage) {
		return 2
	}
	return 1
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, rate.ErrNoSyncRecord):
		return fmt.Sprintf("%v\nRun 'wdrift sync <watch>' first.", err)
	case errors.Is(err, rate.ErrInvalidInterval):
		return fmt.Sprintf("%v\nA measurement must be taken after its sync.", err)
	}
	return err.Error()
}

// displayTime converts t for printing.
func displayTime(t time.Time) time.Time {
	if useUTC {
		return t.UTC()
	}
	return t.Local()
}
