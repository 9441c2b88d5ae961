package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/example/meeting-checkin/internal/adapters"
	"github.com/example/meeting-checkin/internal/application"
	"github.com/example/meeting-checkin/internal/config"
	httptransport "github.com/example/meeting-checkin/internal/http"
	"github.com/example/meeting-checkin/internal/logging"
	"github.com/example/meeting-checkin/internal/metrics"
	"github.com/example/meeting-checkin/internal/notify"
	"github.com/example/meeting-checkin/internal/persistence/sqlite"
	"github.com/example/meeting-checkin/internal/persistence/sqlite/migration"
)

const (
	sessionSweepInterval = 15 * time.Minute
	limiterSweepInterval = time.Minute
	shutdownTimeout      = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	envFile     string
	migrateOnly bool
	help        bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("scheduler", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "", "YAML configuration file; SCHEDULER_* variables override it")
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration (skipped when missing)")
	flagSet.BoolVar(&opts.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.help = true
			return opts, nil
		}
		return opts, err
	}
	if opts.help {
		fmt.Fprintf(stderr, "Usage: scheduler [flags]\n\n%s", flagSet.FlagUsages())
		return opts, nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, nil
}

func loadConfig(opts options) (config.Config, error) {
	if opts.envFile != "" {
		if err := config.LoadDotEnv(opts.envFile); err != nil {
			return config.Config{}, err
		}
	}
	if opts.configPath != "" {
		return config.LoadFile(opts.configPath)
	}
	return config.Load()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.help {
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(stdout, level)

	storage, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLitePath))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(ctx, logger); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if opts.migrateOnly {
		logger.Info("migrations applied, exiting", "sqlite_path", cfg.SQLitePath)
		return nil
	}

	app, err := newApp(cfg, storage, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.bootstrapAdmin(ctx, cfg); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.HTTPPort)),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("meeting API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("meeting API stopped")
		return nil
	})
	group.Go(func() error {
		app.sweepSessions(gctx, sessionSweepInterval)
		return nil
	})
	if app.localLimiter != nil {
		group.Go(func() error {
			app.localLimiter.Run(gctx, limiterSweepInterval)
			return nil
		})
	}

	return group.Wait()
}

type app struct {
	handler      http.Handler
	users        *application.UserService
	sessions     *adapters.SessionRepository
	localLimiter *httptransport.LocalRateLimiter
	logger       *slog.Logger
	closers      []func() error
}

func newApp(cfg config.Config, storage *sqlite.Storage, logger *slog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	a := &app{logger: logger}
	now := time.Now

	users := adapters.NewUserRepository(storage.Users)
	rooms := adapters.NewRoomRepository(storage.Rooms)
	meetings := adapters.NewMeetingRepository(storage.Meetings)
	a.sessions = adapters.NewSessionRepository(storage.Sessions)

	collector := metrics.NewCollector()

	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if cfg.AMQPURL != "" {
		publisher := notify.NewAMQPPublisher(notify.AMQPConfig{
			URL:    cfg.AMQPURL,
			Queue:  cfg.AMQPQueue,
			Logger: logger,
		})
		notifiers = append(notifiers, publisher)
		a.closers = append(a.closers, publisher.Close)
	}

	var limiter httptransport.RateLimiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, client.Close)
		limiter = httptransport.NewRedisRateLimiter(client, "checkin", cfg.CheckinRate, cfg.CheckinBurst)
	} else {
		a.localLimiter = httptransport.NewLocalRateLimiter(cfg.CheckinRate, cfg.CheckinBurst, 0)
		limiter = a.localLimiter
	}

	meetingService := application.NewMeetingService(application.MeetingServiceDeps{
		Meetings:    meetings,
		Rooms:       rooms,
		Users:       users,
		Notifier:    notifiers,
		Metrics:     collector,
		IDGenerator: uuid.NewString,
		Now:         now,
		Location:    loc,
		Logger:      logger,
	})
	tokenService := application.NewCheckinTokenService(application.CheckinTokenServiceDeps{
		Meetings:       meetings,
		TokenGenerator: application.NewOpaqueToken,
		Now:            now,
		Metrics:        collector,
		Logger:         logger,
	})
	attendanceService := application.NewAttendanceService(application.AttendanceServiceDeps{
		Tokens:          tokenService,
		Attendance:      meetings,
		Users:           users,
		Now:             now,
		Location:        loc,
		RejectAmbiguous: cfg.CheckinRejectAmbiguous,
		Metrics:         collector,
		Logger:          logger,
	})
	roomService := application.NewRoomService(application.RoomServiceDeps{
		Rooms:       rooms,
		Meetings:    meetings,
		IDGenerator: uuid.NewString,
		Now:         now,
		Logger:      logger,
	})
	a.users = application.NewUserServiceWithLogger(users, application.HashPassword, uuid.NewString, now, logger)
	authService := application.NewAuthServiceWithLogger(users, a.sessions, application.VerifyPassword, nil, now, cfg.SessionTTL, logger)

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Auth:             httptransport.NewAuthHandler(authService, logger),
		Users:            httptransport.NewUserHandler(a.users, logger),
		Rooms:            httptransport.NewRoomHandler(roomService, logger),
		Meetings:         httptransport.NewMeetingHandler(meetingService, logger),
		Checkin:          httptransport.NewCheckinHandler(tokenService, attendanceService, logger),
		SessionValidator: authService,
		RateLimiter:      limiter,
		OnRateLimited:    collector.ObserveRateLimited,
		Metrics:          collector.Handler(),
		Instrument:       collector.Middleware,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recover(logger),
		},
		Logger: logger,
	})
	return a, nil
}

func (a *app) bootstrapAdmin(ctx context.Context, cfg config.Config) error {
	if cfg.BootstrapAdminEmail == "" {
		return nil
	}
	user, created, err := a.users.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap administrator: %w", err)
	}
	if created {
		a.logger.Info("bootstrap administrator created", "user_id", user.ID, "email", user.Email)
	}
	return nil
}

func (a *app) sweepSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.sessions.DeleteExpiredSessions(ctx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("failed to delete expired sessions", "error", err)
			}
		}
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to release resource", "error", err)
		}
	}
}
