package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"tokentra/internal/config"
	"tokentra/internal/optimize"
	"tokentra/internal/storage"
	"tokentra/internal/utils"
)

// analyze runs the optimization detectors over every organization's
// recent usage and upserts the resulting recommendations. Intended to
// be run on a schedule (cron or a Kubernetes CronJob).
func main() {
	_ = godotenv.Load()

	orgLimit := flag.Int("orgs", 100, "maximum number of organizations to analyze")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run deadline")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := storage.NewDB(storage.DBConfig{
		DSN:                  cfg.Database.URL,
		MaxOpenConns:         cfg.Database.MaxOpenConns,
		MaxIdleConns:         cfg.Database.MaxIdleConns,
		ConnMaxLifetime:      cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime:      cfg.Database.ConnMaxIdleTime,
		APIKeyCacheSize:      cfg.Cache.APIKeyCacheSize,
		APIKeyCacheTTL:       cfg.Cache.APIKeyCacheTTL,
		AttributionCacheSize: cfg.Cache.AttributionCacheSize,
		AttributionCacheTTL:  cfg.Cache.AttributionCacheTTL,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	logger := utils.NewLogger("analyze")
	service := optimize.NewService(
		storage.NewUsageRepository(db),
		storage.NewRecommendationRepository(db),
		storage.NewRoutingRuleRepository(db),
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	if err := service.AnalyzeAll(ctx, *orgLimit); err != nil {
		log.Fatalf("Analysis run failed: %v", err)
	}
	log.Printf("Analysis run finished in %s", time.Since(start).Round(time.Millisecond))
}
