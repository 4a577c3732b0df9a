package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/lock"
	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/metrics"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI, Password: cfg.RedisPassword})
	defer rdb.Close()

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI, Password: cfg.RedisPassword}
	client := asynq.NewClient(redisConn)
	defer client.Close()
	inspector := asynq.NewInspector(redisConn)
	defer inspector.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPromMetrics(reg)

	postRepo := repository.NewPostRepository(db)
	targetRepo := repository.NewTargetRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)

	resolver, err := media.NewR2Resolver(context.Background(), cfg.R2)
	if err != nil {
		log.Fatalf("Failed to set up media resolver: %v", err)
	}

	publishers := newRegistry(cfg)
	log.Printf("Publishers registered: %v", publishers.Platforms())

	jobQueue := queue.NewQueue(client, inspector, queue.Options{
		MaxAttempts: cfg.Queue.MaxAttempts,
		Retention:   cfg.Queue.Retention,
		Timeout:     cfg.Publish.Timeout + cfg.Publish.Timeout/2,
	}, m)

	locker := lock.NewRedisLocker(rdb, cfg.LockTTL)
	schedulingService := service.NewSchedulingService(postRepo, targetRepo, jobQueue, locker)
	outcomeService := service.NewOutcomeService(postRepo, targetRepo, m)
	credentialService := service.NewCredentialService(socialAccountRepo, cfg.SecretKey)

	worker := queue.NewWorker(targetRepo, outcomeService, credentialService, resolver, publishers, m, cfg.Publish.Timeout)

	// cron jobs
	reconcileJob := job.NewReconcileJob(postRepo, targetRepo, outcomeService, cfg.Reconcile.Grace)

	c := cron.New()
	if err := reconcileJob.Register(c, cfg.Reconcile.Interval); err != nil {
		log.Fatalf("Failed to register reconcile job: %v", err)
	}
	c.Start()

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency:    cfg.Queue.Concurrency,
		Queues:         map[string]int{queue.QueueName: 1},
		RetryDelayFunc: queue.RetryDelay(cfg.Queue.BackoffBase),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			slog.Warn("publish job failed", "type", task.Type(), "retried", retried, "max_retry", maxRetry, "error", err)
		}),
	})

	mux := asynq.NewServeMux()
	worker.Register(mux)

	log.Println("Starting the Asynq server...")
	if err := server.Start(mux); err != nil {
		log.Fatalf("Could not start Asynq server: %v", err)
	}

	app := api.NewApp(*cfg, schedulingService, outcomeService, reg)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on %s", cfg.HTTPAddr)

	gracefulShutdown(app, server, c)
}

// newRegistry wires the live integrations and stands in simulated publishers
// for the remaining platforms. Every publisher is rate limited.
func newRegistry(cfg *config.Config) *publisher.Registry {
	httpClient := &http.Client{Timeout: cfg.Publish.Timeout}

	live := map[string]publisher.Publisher{
		"instagram": publisher.NewInstagram(cfg.InstagramGraphURL, httpClient),
		"tiktok":    publisher.NewTiktok(cfg.TiktokAPIURL, httpClient),
		"youtube":   publisher.NewYoutube(httpClient),
		"facebook":  publisher.NewSimulated("facebook", "fb"),
		"twitter":   publisher.NewSimulated("twitter", "tw"),
		"linkedin":  publisher.NewSimulated("linkedin", "li"),
	}

	limited := make(map[string]publisher.Publisher, len(live))
	for platform, p := range live {
		limited[platform] = publisher.RateLimited(p, cfg.Publish.RatePerSec, cfg.Publish.Burst)
	}
	return publisher.NewRegistry(limited)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, c *cron.Cron) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	c.Stop()
	if err := app.Shutdown(); err != nil {
		log.Printf("Failed to shut down server: %v", err)
	}
	server.Shutdown()

	log.Println("Server shutdown complete.")
}
