// Command qc-crawl walks one or more media storage roots, building and
// refreshing QC sidecars for the assets it finds (spec.md §1, §6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/annaglyph/qc-asset-tracker/internal/config"
	"github.com/annaglyph/qc-asset-tracker/internal/crawl"
	"github.com/annaglyph/qc-asset-tracker/internal/hashing"
	"github.com/annaglyph/qc-asset-tracker/internal/logging"
	"github.com/annaglyph/qc-asset-tracker/internal/sidecar"
	"github.com/annaglyph/qc-asset-tracker/internal/tracker"
)

// terminationSignals are the signals that request a graceful drain of the
// worker pool (spec.md §5, "first-class operating-system signal").
var terminationSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// exitInterrupted is returned by rootMain when the run was cut short by a
// termination signal, distinct from a fatal configuration error.
var exitInterrupted = errors.New("interrupted")

func rootMain(_ *cobra.Command, arguments []string) error {
	if _, err := hashing.Select(); err != nil {
		return errors.Wrap(err, "no usable content-hashing algorithm")
	}

	resolved, err := config.Resolve(config.Raw{
		Roots:       arguments,
		AssetIDs:    rootConfiguration.assetIDs,
		Workers:     rootConfiguration.workers,
		MinSeq:      rootConfiguration.minSeq,
		SidecarMode: rootConfiguration.sidecarMode,
		Operator:    rootConfiguration.operator,
		Result:      rootConfiguration.result,
		Note:        rootConfiguration.note,
		LogLevel:    rootConfiguration.logLevel,
		TrakEnabled: rootConfiguration.trak,
		TrakURL:     rootConfiguration.trakURL,
		TrakToken:   rootConfiguration.trakToken,
	})
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	logger := logging.NewRoot(resolved.LogLevel)
	store := sidecar.NewStore(resolved.Crawl.SchemaName, resolved.Crawl.SchemaVersion, logger.Sublogger("sidecar"))

	var trackerClient *tracker.Client
	if resolved.Crawl.TrackerEnabled {
		trackerClient = tracker.New(resolved.Tracker, logger.Sublogger("tracker"))
	}

	engine := crawl.New(resolved.Crawl, logger.Sublogger("crawl"), store, trackerClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalTermination := make(chan os.Signal, 1)
	signal.Notify(signalTermination, terminationSignals...)
	defer signal.Stop(signalTermination)
	go func() {
		if _, ok := <-signalTermination; ok {
			logger.Warn(errors.New("termination requested, draining in-flight work"))
			cancel()
		}
	}()

	summary, runErr := engine.Run(ctx, resolved.Roots)
	fmt.Println(summary.String())

	if runErr != nil {
		if errors.Is(runErr, crawl.ErrInterrupted) {
			return exitInterrupted
		}
		return runErr
	}
	return nil
}

var rootCommand = &cobra.Command{
	Use:          "qc-crawl [options] ROOT [ROOT ...]",
	Short:        "Crawl media storage and maintain QC sidecars",
	Args:         cobra.MinimumNArgs(1),
	RunE:         rootMain,
	SilenceUsage: true,
}

var rootConfiguration struct {
	workers     int
	logLevel    string
	minSeq      int
	sidecarMode string
	operator    string
	result      string
	note        string
	assetIDs    []string
	trak        bool
	trakURL     string
	trakToken   string
}

func init() {
	cobra.EnableCommandSorting = false
	cobra.MousetrapHelpText = ""

	flags := rootCommand.Flags()
	flags.SortFlags = false
	flags.IntVar(&rootConfiguration.workers, "workers", 0, "Number of hashing worker goroutines (default: CPU count)")
	flags.StringVar(&rootConfiguration.logLevel, "log", "", "Log level: disabled, error, warn, info, debug (default: info)")
	flags.IntVar(&rootConfiguration.minSeq, "min-seq", 0, "Minimum frame count for a sequence (default: 2)")
	flags.StringVar(&rootConfiguration.sidecarMode, "sidecar-mode", "", "Sidecar layout: inline, dot, subdir (default: subdir)")
	flags.StringVar(&rootConfiguration.operator, "operator", "", "Operator name recorded on a sign-off run (default: $USER)")
	flags.StringVar(&rootConfiguration.result, "result", "", "Record an operator verdict: pass, fail, or pending")
	flags.StringVar(&rootConfiguration.note, "note", "", "Free-text note attached to an operator verdict")
	flags.StringArrayVar(&rootConfiguration.assetIDs, "asset-id", nil, "External asset id, paired positionally with ROOT arguments (repeatable)")
	flags.BoolVar(&rootConfiguration.trak, "trak", false, "Enable the asset tracker client")
	flags.StringVar(&rootConfiguration.trakURL, "trak-url", "", "Asset tracker base URL (default: $TRAK_BASE_URL)")
	flags.StringVar(&rootConfiguration.trakToken, "trak-token", "", "Asset tracker bearer token (default: $TRAK_ASSET_TRACKER_API_KEY)")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		if errors.Is(err, exitInterrupted) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
