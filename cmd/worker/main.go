package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"smartattendance/internal/config"
	"smartattendance/internal/queue"
	"smartattendance/internal/report"
	"smartattendance/internal/store"
	"smartattendance/internal/worker"
)

// Worker consumes attendance.marked events from redis and reports on each marked student.
func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis (got %q); other backends are consumed inside the api", cfg.QueueBackend)
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	if redisClient == nil {
		log.Fatal("worker needs REDIS_ADDR")
	}
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis at %s not reachable, will keep retrying", cfg.RedisAddr)
	}

	st, err := store.OpenShared(cfg)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer st.Close()

	reports := report.NewService(st, report.Options{
		TotalDays: cfg.InstructionalDays,
		Threshold: cfg.FlagThreshold,
		Window:    cfg.DailyWindow,
	})

	log.Println("worker started, waiting for messages...")
	if err := worker.New(reports).Run(ctx, queue.NewRedisQueue(redisClient.Client, "")); err != nil {
		log.Printf("worker failed: %v", err)
	}
	log.Println("worker stopped")
}
