package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartattendance/internal/attendance"
	"smartattendance/internal/auth"
	"smartattendance/internal/cloudinary"
	"smartattendance/internal/config"
	"smartattendance/internal/export"
	"smartattendance/internal/faceclient"
	"smartattendance/internal/handler"
	"smartattendance/internal/httpmiddleware"
	"smartattendance/internal/metrics"
	"smartattendance/internal/queue"
	"smartattendance/internal/registry"
	"smartattendance/internal/report"
	"smartattendance/internal/store"
	"smartattendance/internal/worker"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Printf("store: %s", cfg.StoreDriver)

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if redisClient != nil && !redisClient.Healthy(ctx) {
		log.Printf("warning: redis at %s not reachable", cfg.RedisAddr)
	}

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if redisClient != nil {
		revoker = auth.NewRedisRevoker(redisClient.Client, "")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	reports := report.NewService(st, report.Options{
		TotalDays: cfg.InstructionalDays,
		Threshold: cfg.FlagThreshold,
		Window:    cfg.DailyWindow,
	})

	var q queue.Queue
	switch {
	case cfg.QueueBackend == "none":
		q = queue.Discard{}
	case cfg.QueueBackend == "redis" && redisClient != nil:
		q = queue.NewRedisQueue(redisClient.Client, "")
	default:
		if cfg.QueueBackend == "redis" {
			log.Println("warning: QUEUE_BACKEND=redis without REDIS_ADDR, using in-process queue")
		}
		mem := queue.NewInMemory(256)
		q = mem
		go func() {
			if err := worker.New(reports).Run(ctx, mem); err != nil {
				log.Printf("in-process worker stopped: %v", err)
			}
		}()
	}

	checks := []handler.Check{{Name: "store", Required: true, Probe: st.Ping}}
	if redisClient != nil {
		checks = append(checks, handler.Check{Name: "redis", Probe: func(ctx context.Context) error {
			if !redisClient.Healthy(ctx) {
				return errors.New("redis unreachable")
			}
			return nil
		}})
	}

	var verifier attendance.Verifier = attendance.AcceptAll{}
	if cfg.Verifier == "remote" {
		face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
		if err := face.Health(ctx); err != nil {
			log.Printf("warning: face service not available: %v", err)
		}
		verifier = face
		checks = append(checks, handler.Check{Name: "face_service", Probe: face.Health})
	}

	regOpts := []registry.Option{registry.WithMetrics(m)}
	if cfg.CloudinaryEnabled() {
		regOpts = append(regOpts, registry.WithTemplateStore(
			cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)))
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured, face templates stored inline")
	}

	att := attendance.NewService(st,
		attendance.WithLocation(cfg.Location()),
		attendance.WithVerifier(verifier),
		attendance.WithVerifyDelay(cfg.VerifyDelay),
		attendance.WithMetrics(m),
		attendance.WithPublisher(q),
	)
	sessions := attendance.NewSessions(att, cfg.MarkingSessionTTL)
	go sessions.Run(ctx, time.Minute)

	dir, err := auth.NewDirectory(auth.DefaultAccounts)
	if err != nil {
		return err
	}

	h := handler.New(handler.Deps{
		Directory: dir,
		Signer: auth.Signer{
			Key:        cfg.JWTSigningKey,
			Issuer:     cfg.JWTIssuer,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		},
		Revoker:    revoker,
		Registry:   registry.NewService(st, regOpts...),
		Attendance: att,
		Sessions:   sessions,
		Reports:    reports,
		Export:     export.NewService(st, time.Now),
		Checks:     checks,
	})

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin/6+1, cfg.RateLimitPerMin)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Prune()
			}
		}
	}()

	r := handler.NewRouter(h, handler.RouterConfig{
		Metrics:      m,
		CORSOrigins:  cfg.CORSOrigins,
		LoginLimiter: limiter,
		AccessLog:    true,
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second + cfg.VerifyDelay,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
