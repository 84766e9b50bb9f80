package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"planhub/internal/invitetoken"
	"planhub/internal/ratelimit"
	"planhub/internal/util"
	"planhub/pkg/agent"
	"planhub/pkg/ai"
	"planhub/pkg/mail"
	"planhub/pkg/queue"
	"planhub/pkg/storage"
	"planhub/services/planner/internal/app"
	"planhub/services/planner/internal/config"
	"planhub/services/planner/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	generator, err := newGenerator(cfg)
	if err != nil {
		util.Fatal("failed to init text generator", "err", err)
	}
	planner, err := agent.New(agent.Config{
		Generator:     generator,
		DocEveryPairs: cfg.DocEveryPairs,
		HistoryLimit:  cfg.HistoryLimit,
	})
	if err != nil {
		util.Fatal("failed to init planner", "err", err)
	}

	appCfg := app.Config{
		DatabaseURL:     cfg.DatabaseURL,
		Planner:         planner,
		HistoryLimit:    cfg.HistoryLimit,
		InviteAcceptURL: cfg.InviteAcceptURL,
	}
	if cfg.SessionIdleMinutes > 0 {
		appCfg.SessionIdleAfter = time.Duration(cfg.SessionIdleMinutes) * time.Minute
	}

	if cfg.MinioEndpoint != "" {
		objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			util.Fatal("failed to init object storage", "err", err)
		}
		appCfg.Objects = objects
	}

	var mailQueue *queue.RedisJobQueue
	if cfg.InviteSecret != "" {
		codec, err := invitetoken.New(invitetoken.Options{
			Secret: cfg.InviteSecret,
			TTL:    time.Duration(cfg.InviteTTLHours) * time.Hour,
		})
		if err != nil {
			util.Fatal("failed to init invitation tokens", "err", err)
		}
		appCfg.InviteCodec = codec

		if cfg.RedisAddr != "" {
			stream := cfg.MailStream
			if stream == "" {
				stream = "planhub:invitation-mail"
			}
			mailQueue, err = queue.NewRedisJobQueue(queue.RedisQueueConfig{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				Stream:   stream,
				Group:    "planner",
			})
			if err != nil {
				util.Fatal("failed to init mail queue", "err", err)
			}
			appCfg.MailQueue = mailQueue
		}
		if cfg.SMTPHost != "" {
			mailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
				From:     cfg.SMTPFrom,
			})
			if err != nil {
				util.Fatal("failed to init mailer", "err", err)
			}
			appCfg.Mailer = mailer
		}
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	serverCfg := server.Config{
		App:            appCore,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	if cfg.RedisAddr != "" {
		newLimiter := func(name string, limit int, fallback int) *ratelimit.FixedWindowLimiter {
			if limit <= 0 {
				limit = fallback
			}
			limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "planhub:ratelimit:"+name, limit, time.Minute)
			if err != nil {
				util.Fatal("failed to init rate limiter", "name", name, "err", err)
			}
			return limiter
		}
		serverCfg.JoinLimiter = newLimiter("join", cfg.JoinRateLimitPerMinute, 30)
		serverCfg.ChatLimiter = newLimiter("chat", cfg.ChatRateLimitPerMinute, 60)
		serverCfg.InviteLimiter = newLimiter("invite", cfg.InviteRateLimitPerMinute, 10)
	}

	httpServer := server.New(serverCfg)
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("planner server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		interval := time.Duration(cfg.CleanupEveryMinutes) * time.Minute
		appCore.RunSessionJanitor(ctx, interval)
		return nil
	})
	if mailQueue != nil && appCfg.Mailer != nil {
		mailQueue.Start(ctx, 1, appCore.HandleMailJob)
	}
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func newGenerator(cfg config.FileConfig) (ai.TextGenerator, error) {
	switch cfg.GenerationProvider {
	case "", "gemini":
		client, err := ai.NewGeminiClient(cfg.GenerationAPIKey)
		if err != nil {
			return nil, err
		}
		return ai.NewGeminiGenerator(client, cfg.GenerationModel), nil
	case "ollama":
		return ai.NewOllamaGenerator(ai.NewOllamaClient(cfg.GenerationBaseURL), cfg.GenerationModel), nil
	case "openai":
		return ai.NewOpenAICompatGenerator(cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.GenerationModel), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.GenerationProvider)
	}
}
