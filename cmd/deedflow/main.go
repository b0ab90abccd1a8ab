// deedflow runs batches of property sale-deed PDFs through the
// two-stage extraction pipeline and commits structured records to the
// database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/deedworks/deedflow/deed"
	"github.com/deedworks/deedflow/extract"
	"github.com/deedworks/deedflow/fees"
	"github.com/deedworks/deedflow/ocr"
	"github.com/deedworks/deedflow/pipeline"
	"github.com/deedworks/deedflow/raster"
	"github.com/deedworks/deedflow/store"
	"github.com/deedworks/deedflow/tables"
)

var green = color.New(color.FgGreen).SprintFunc()
var red = color.New(color.FgRed).SprintFunc()
var yellow = color.New(color.FgYellow).SprintFunc()

// Config is the top-level configuration object of deedflow.
var Config = new(struct {
	Pipeline pipeline.Config `group:"Pipeline" namespace:"pipeline" env-namespace:"PIPELINE"`

	Files struct {
		Incoming  string `long:"incoming" env:"INCOMING" default:"data/incoming" description:"Directory scanned for input PDFs"`
		Processed string `long:"processed" env:"PROCESSED" default:"data/processed" description:"Directory receiving successful documents"`
		Failed    string `long:"failed" env:"FAILED" default:"data/failed" description:"Directory receiving failed documents"`
	} `group:"Files" namespace:"files" env-namespace:"FILES"`

	Database string `long:"database" env:"DATABASE" default:"deedflow.db" description:"SQLite path or postgres:// DSN"`

	Raster struct {
		DPI         int `long:"dpi" env:"DPI" default:"300" description:"Render resolution"`
		TargetWidth int `long:"target-width" env:"TARGET_WIDTH" default:"2000" description:"Normalized page width in pixels"`
	} `group:"Raster" namespace:"raster" env-namespace:"RASTER"`

	Fees struct {
		Min             float64 `long:"min" env:"MIN" default:"100" description:"Smallest plausible registration fee"`
		MaxMisc         float64 `long:"max-misc" env:"MAX_MISC" default:"3000" description:"Largest plausible misc fee"`
		TableConfidence float64 `long:"table-confidence" env:"TABLE_CONFIDENCE" default:"0.86" description:"Minimum fee-table detection confidence"`
	} `group:"Fees" namespace:"fees" env-namespace:"FEES"`

	Gemini struct {
		APIKey      string `long:"api-key" env:"API_KEY" description:"Generative Language API key"`
		TextModel   string `long:"text-model" env:"TEXT_MODEL" default:"gemini-2.0-flash" description:"Extraction model"`
		VisionModel string `long:"vision-model" env:"VISION_MODEL" default:"gemini-2.0-flash" description:"Fee-table vision model"`
	} `group:"Gemini" namespace:"gemini" env-namespace:"GEMINI"`

	Log struct {
		Level  string `long:"level" env:"LEVEL" default:"info" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Logging level"`
		Format string `long:"format" env:"FORMAT" default:"text" choice:"json" choice:"text" description:"Logging output format"`
	} `group:"Logging" namespace:"log" env-namespace:"LOG"`

	MetricsAddr string `long:"metrics" env:"METRICS_ADDR" description:"Address to serve /metrics and /stats on (empty disables)"`
})

type cmdRun struct {
	BatchName   string `long:"batch-name" description:"Human-readable batch name (defaults to the incoming directory name)"`
	RerunFailed bool   `long:"rerun-failed" description:"Process previously failed documents instead of scanning the incoming directory"`
}

func (cmd cmdRun) Execute(_ []string) error {
	initLog()

	var ctx = context.Background()

	var db, err = store.Open(ctx, Config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	dups, err := store.NewDuplicateDetector(db, 4096)
	if err != nil {
		return err
	}
	var notifier = store.NewNotifier(db)

	batch, err := cmd.assembleBatch(ctx, db, dups, notifier)
	if err != nil {
		return err
	}
	if len(batch.Tasks) == 0 {
		log.Info("nothing to process")
		return nil
	}

	if err = db.CreateSession(ctx, batch.ID, batch.Name, len(batch.Tasks)); err != nil {
		return err
	}

	var gemini = extract.NewGemini(Config.Gemini.APIKey)
	gemini.TextModel = Config.Gemini.TextModel
	gemini.VisionModel = Config.Gemini.VisionModel

	var processor = &pipeline.DocumentProcessor{
		Raster:    raster.NewPoppler(Config.Raster.DPI, Config.Raster.TargetWidth),
		OCR:       ocr.NewTesseract(Config.Pipeline.OCRPageConcurrency),
		Fees:      fees.NewExtractor(Config.Fees.Min, Config.Fees.MaxMisc),
		Tables:    tables.NewFeeFinder(gemini, gemini, Config.Fees.TableConfidence, Config.Fees.Min),
		Extractor: extract.NewExtractor(gemini),
		Store:     db,
		Hashes:    dups,
		Mover: deed.DirMover{
			ProcessedDir: Config.Files.Processed,
			FailedDir:    Config.Files.Failed,
		},
		Notify:       notifier,
		MinTextChars: Config.Pipeline.MinTextChars,
		MaxPages:     Config.Pipeline.MaxPages,
	}
	if Config.Pipeline.Mode != "ocr" {
		processor.Text = ocr.NewNative()
	}

	var coordinator = pipeline.New(Config.Pipeline, processor, processor, db, notifier)

	if Config.MetricsAddr != "" {
		go serveMetrics(coordinator)
	}

	// SIGINT and SIGTERM request a cooperative stop; in-flight documents
	// finish and the rest are left in place.
	var signalCh = make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		var sig = <-signalCh
		log.WithField("signal", sig).Info("caught signal; stopping batch")
		coordinator.Stop()
	}()

	summary, err := coordinator.RunBatch(ctx, batch)
	if err != nil {
		return err
	}

	printSummary(batch, summary)
	if summary.Failed > 0 {
		os.Exit(1)
	}
	return nil
}

// assembleBatch builds the task list, from the incoming directory or
// from previously failed documents, skipping content duplicates.
func (cmd cmdRun) assembleBatch(ctx context.Context, db *store.Store, dups *store.DuplicateDetector, notifier *store.Notifier) (deed.Batch, error) {
	var batch = deed.Batch{
		ID:   store.NewSessionID(time.Now()),
		Name: cmd.BatchName,
	}

	var paths []string
	var err error
	if cmd.RerunFailed {
		if batch.Name == "" {
			batch.Name = "rerun of failed documents"
		}
		if paths, err = db.FailedDocumentPaths(ctx); err != nil {
			return batch, err
		}
	} else {
		if batch.Name == "" {
			batch.Name = filepath.Base(Config.Files.Incoming)
		}
		entries, err := os.ReadDir(Config.Files.Incoming)
		if err != nil {
			return batch, fmt.Errorf("scanning %s: %w", Config.Files.Incoming, err)
		}
		for _, e := range entries {
			if !e.IsDir() && deed.IsPDF(e.Name()) {
				paths = append(paths, filepath.Join(Config.Files.Incoming, e.Name()))
			}
		}
	}
	sort.Strings(paths)

	unique, duplicates, err := dups.CheckBatch(ctx, paths)
	if err != nil {
		return batch, err
	}
	for path, original := range duplicates {
		var docID = deed.DocumentIDFromFilename(path)
		if original == docID {
			// A rerun of the same file is not a duplicate.
			if hash, err := store.HashFile(path); err == nil {
				unique = append(unique, store.HashedFile{Path: path, Hash: hash})
			}
			continue
		}
		log.WithFields(log.Fields{"doc": docID, "original": original}).
			Warn("skipping duplicate document")
		notifier.Emit(ctx, batch.ID, docID, store.SeverityWarning,
			fmt.Sprintf("%s skipped: duplicate of %s", docID, original))
	}

	sort.Slice(unique, func(i, j int) bool { return unique[i].Path < unique[j].Path })
	for _, f := range unique {
		batch.Tasks = append(batch.Tasks, deed.Task{
			SourcePath:  f.Path,
			DocumentID:  deed.DocumentIDFromFilename(f.Path),
			BatchID:     batch.ID,
			ContentHash: f.Hash,
		})
	}
	return batch, nil
}

func serveMetrics(coordinator *pipeline.Coordinator) {
	var mux = http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(coordinator.Stats())
	})

	log.WithField("addr", Config.MetricsAddr).Info("serving metrics")
	if err := http.ListenAndServe(Config.MetricsAddr, mux); err != nil {
		log.WithField("error", err).Error("metrics server exited")
	}
}

func printSummary(batch deed.Batch, summary deed.BatchSummary) {
	fmt.Printf("\nBatch %s (%s):\n", batch.ID, batch.Name)
	fmt.Printf("  %s %d of %d documents\n", green("ok:"), summary.Successful, summary.Total)
	if summary.Failed > 0 {
		fmt.Printf("  %s %d documents\n", red("failed:"), summary.Failed)
	}
	if summary.Stopped > 0 {
		fmt.Printf("  %s %d documents (files left in place)\n", yellow("stopped:"), summary.Stopped)
	}
	for _, res := range summary.Results {
		if res.Status == deed.StatusFailed {
			fmt.Printf("    %s %s: %v\n", red("✗"), res.DocumentID, res.Err)
		}
	}
}

type cmdNotifications struct {
	Limit int `long:"limit" default:"20" description:"How many notifications to show"`
}

func (cmd cmdNotifications) Execute(_ []string) error {
	initLog()

	var ctx = context.Background()
	var db, err = store.Open(ctx, Config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	notes, err := store.NewNotifier(db).Recent(ctx, cmd.Limit)
	if err != nil {
		return err
	}
	for _, n := range notes {
		var tag string
		switch n.Severity {
		case store.SeverityError:
			tag = red(n.Severity)
		case store.SeverityWarning:
			tag = yellow(n.Severity)
		default:
			tag = green(n.Severity)
		}
		fmt.Printf("%s  %-8s  %s\n", n.CreatedAt.Format(time.RFC3339), tag, n.Message)
	}
	return nil
}

func initLog() {
	if Config.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	if lvl, err := log.ParseLevel(Config.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	_, _ = parser.AddCommand("run", "Process a batch of deed PDFs", `
Scan the incoming directory (or the set of previously failed documents,
with --rerun-failed), process every document through OCR and structured
extraction, and commit the results, until done or signaled to stop (via
SIGINT or SIGTERM).
`, &cmdRun{})

	_, _ = parser.AddCommand("notifications", "Show recent notifications", `
List the most recent batch and document notifications.
`, &cmdNotifications{})

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}
