package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"OptiBase/internal/di"
	"OptiBase/internal/domain/models"
	"OptiBase/pkg/config"
	"OptiBase/pkg/util"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "config/config.yaml", "config file path")
		mode       = flag.String("mode", "session", "run mode: session, stream, eod, eod-raw")
		date       = flag.String("date", "", "trade date YYYY-MM-DD (default: today in market tz)")
		indices    = flag.String("indices", "", "comma-separated indices (default: config)")
		expiries   = flag.String("expiries", "", "comma-separated expiry buckets (default: config)")
		offsets    = flag.String("offsets", "", "comma-separated strike offsets (default: config)")
		dryRun     = flag.Bool("dry-run", false, "read and report without writing (eod-raw only)")
	)
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Printf("config load failed: %v", err)
		return 1
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Printf("app initialization failed: %v", err)
		return 1
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *mode == "session" {
		return app.RunSession(ctx)
	}

	day, err := resolveDate(*date, cfg.Market.Timezone)
	if err != nil {
		log.Printf("invalid date: %v", err)
		return 2
	}
	expiryList := util.SplitCSVList(*expiries)
	for _, e := range expiryList {
		if !models.KnownExpiryBucket(e) {
			log.Printf("unknown expiry bucket %q", e)
			return 2
		}
	}
	indexList := util.SplitCSVList(*indices)
	offsetList := util.SplitCSVList(*offsets)

	switch *mode {
	case "stream":
		n, err := app.StreamOnce(ctx, day)
		return report(n, err, "buckets updated")
	case "eod":
		n, err := app.BulkEOD(ctx, day, indexList)
		return report(n, err, "masters updated")
	case "eod-raw":
		n, err := app.RawEOD(ctx, day, indexList, expiryList, offsetList, *dryRun)
		return report(n, err, "masters updated")
	default:
		log.Printf("unknown mode %q", *mode)
		return 2
	}
}

// resolveDate validates the flag or falls back to today in the market tz.
func resolveDate(date, tz string) (string, error) {
	if date == "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return "", err
		}
		return time.Now().In(loc).Format("2006-01-02"), nil
	}
	if _, err := util.ParseDate(date); err != nil {
		return "", err
	}
	return date, nil
}

// report prints the run outcome and maps it to an exit code. Zero updates is
// not an error.
func report(n int, err error, what string) int {
	if err != nil {
		log.Printf("run failed: %v", err)
		return 1
	}
	log.Printf("%s: %d", what, n)
	return 0
}
