package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/budget"
	"github.com/anniezty/chinawire/internal/classify"
	"github.com/anniezty/chinawire/internal/collector"
	"github.com/anniezty/chinawire/internal/config"
	"github.com/anniezty/chinawire/internal/export"
	"github.com/anniezty/chinawire/internal/gemini"
	"github.com/anniezty/chinawire/internal/logger"
	"github.com/anniezty/chinawire/internal/metrics"
	"github.com/anniezty/chinawire/internal/trending"
)

func main() {
	fromFlag := flag.String("from", "", "window start date (YYYY-MM-DD)")
	toFlag := flag.String("to", "", "window end date (YYYY-MM-DD, inclusive)")
	daysFlag := flag.Int("days", 1, "window length in days when -from is not set")
	sourcesFlag := flag.String("sources", "", "comma-separated source keys (default: all)")
	allFlag := flag.Bool("all", false, "skip the U.S.-China relevance filter")
	maxPagesFlag := flag.Int("max-pages", 0, "override per-source pagination bound")
	cronFlag := flag.String("cron", "", "run on a cron schedule instead of once")
	flag.Parse()

	// Missing .env is fine; deployment passes real environment variables.
	godotenv.Load()
	logger.Init()

	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		go startMonitoringServer()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	reg, err := config.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		logger.Error("source registry invalid", "error", err)
		os.Exit(1)
	}

	r, err := newRunner(cfg, reg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer r.close()

	opts := collector.Options{
		Sources:     splitKeys(*sourcesFlag),
		MaxPages:    *maxPagesFlag,
		USChinaOnly: !*allFlag,
	}

	if *cronFlag != "" {
		runScheduled(*cronFlag, *daysFlag, r, opts)
		return
	}

	w, err := parseWindow(*fromFlag, *toFlag, *daysFlag)
	if err != nil {
		logger.Error("bad window flags", "error", err)
		os.Exit(1)
	}
	opts.Window = w
	if err := r.run(context.Background(), opts); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// runner wires the long-lived collaborators one run shares.
type runner struct {
	cfg        *config.Config
	reg        *config.Registry
	coll       *collector.Collector
	classifier classify.Classifier
	clusterer  *trending.Clusterer
	judge      gemini.Judge
}

func newRunner(cfg *config.Config, reg *config.Registry) (*runner, error) {
	coll, err := collector.New(reg, cfg)
	if err != nil {
		return nil, err
	}

	rules, err := classify.NewRuleClassifier(reg.Categories)
	if err != nil {
		return nil, fmt.Errorf("category rules: %w", err)
	}

	var apiBudget budget.Budget = budget.Unlimited{}
	if cfg.BudgetFilePath != "" {
		apiBudget = budget.NewFileBudget(cfg.BudgetFilePath, cfg.BudgetPerDay)
	}

	var classifier classify.Classifier = rules
	if cfg.OpenAIAPIKey != "" {
		classifier = classify.NewModelClassifier(cfg.OpenAIAPIKey, cfg.OpenAIModel, rules, apiBudget)
	}

	var judge gemini.Judge
	if cfg.GeminiAPIKey != "" {
		judge, err = gemini.NewClient(cfg.GeminiAPIKey)
		if err != nil {
			// The judge is optional; clustering falls back to text similarity.
			logger.Warn("semantic judge unavailable", "error", err)
			judge = nil
		}
	}

	clusterer := trending.NewClusterer(cfg.SimilarityThreshold, judge, apiBudget)
	clusterer.MinOutlets = cfg.TrendingMinOutlets
	clusterer.TopN = cfg.TrendingTopN

	return &runner{
		cfg:        cfg,
		reg:        reg,
		coll:       coll,
		classifier: classifier,
		clusterer:  clusterer,
		judge:      judge,
	}, nil
}

func (r *runner) close() {
	if r.judge != nil {
		r.judge.Close()
	}
}

// run executes one full pass: collect, classify, cluster, export.
func (r *runner) run(ctx context.Context, opts collector.Options) error {
	start := time.Now()
	logger.Info("starting collection",
		"from", opts.Window.From.Format(time.DateOnly),
		"to", opts.Window.To.Format(time.DateOnly))

	records, err := r.coll.Run(ctx, opts)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}

	for i := range records {
		records[i].Category = r.classifier.Classify(ctx, records[i])
	}

	trends := r.clusterer.Trending(ctx, records)
	metrics.Global.RecordTrends(len(trends))
	logger.Info("trending detection done", "trends", len(trends))

	if err := r.export(records, trends); err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}

	metrics.Global.SetLastRun()
	metrics.Global.RecordRunDuration(time.Since(start))
	logger.Info("run complete", "records", len(records), "trends", len(trends),
		"duration", time.Since(start).Round(time.Second))
	return nil
}

func (r *runner) export(records []article.Article, trends []trending.Trend) error {
	if r.cfg.SeenStorePath != "" {
		store := export.LoadSeenStore(r.cfg.SeenStorePath)
		records = store.FilterNew(records, time.Now())
		if err := store.Save(); err != nil {
			logger.Warn("seen store not saved", "error", err)
		}
	}

	sink := export.CSVDir{Dir: r.cfg.OutputDir}
	if err := sink.Write("articles", export.ArticleHeader, export.ArticleRows(records, export.NestedURLs(trends))); err != nil {
		return fmt.Errorf("export articles: %w", err)
	}
	if err := sink.Write("trending", export.TrendHeader, export.TrendRows(trends)); err != nil {
		return fmt.Errorf("export trending: %w", err)
	}
	return nil
}

// runScheduled runs the pass on a cron schedule, one run at a time. Each
// firing collects the trailing N days.
func runScheduled(spec string, days int, r *runner, opts collector.Options) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		now := time.Now().UTC()
		o := opts
		o.Window = article.NewWindow(now.AddDate(0, 0, -days), now)
		if err := r.run(context.Background(), o); err != nil {
			logger.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("bad cron spec", "spec", spec, "error", err)
		os.Exit(1)
	}
	logger.Info("scheduler started", "spec", spec)
	c.Run()
}

func parseWindow(from, to string, days int) (article.Window, error) {
	now := time.Now().UTC()
	if from == "" {
		if days <= 0 {
			days = 1
		}
		return article.NewWindow(now.AddDate(0, 0, -days), now), nil
	}
	start, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return article.Window{}, fmt.Errorf("parse -from: %w", err)
	}
	end := now
	if to != "" {
		end, err = time.Parse(time.DateOnly, to)
		if err != nil {
			return article.Window{}, fmt.Errorf("parse -to: %w", err)
		}
	}
	if end.Before(start) {
		return article.Window{}, fmt.Errorf("window end %s before start %s", to, from)
	}
	return article.NewWindow(start, end), nil
}

func splitKeys(s string) []string {
	if s == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func startMonitoringServer() {
	port := os.Getenv("MONITORING_PORT")
	if port == "" {
		port = "8080"
	}

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/metrics", metricsHandler)

	logger.Info("monitoring server listening", "port", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		logger.Error("monitoring server stopped", "error", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status := "ok"
	if !stats["is_healthy"].(bool) {
		status = "error"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	response := map[string]interface{}{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
