package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	myPostgresRepo "github.com/Morphiu/Squad-Yangu/internal/adapters/db/postgres"
	myRedisRepo "github.com/Morphiu/Squad-Yangu/internal/adapters/db/redis"
	"github.com/Morphiu/Squad-Yangu/internal/adapters/mail"
	transport "github.com/Morphiu/Squad-Yangu/internal/adapters/transport/http"
	"github.com/Morphiu/Squad-Yangu/internal/adapters/transport/http/dto"
	"github.com/Morphiu/Squad-Yangu/internal/app/auth/jwt"
	"github.com/Morphiu/Squad-Yangu/internal/app/auth/password"
	"github.com/Morphiu/Squad-Yangu/internal/app/auth/reset"
	appsvc "github.com/Morphiu/Squad-Yangu/internal/app/auth/service"
	"github.com/Morphiu/Squad-Yangu/internal/domain/auth/repo"
	"github.com/Morphiu/Squad-Yangu/internal/infra/config"
	lg "github.com/Morphiu/Squad-Yangu/internal/infra/log"
	"github.com/Morphiu/Squad-Yangu/internal/infra/metrics"
	"github.com/Morphiu/Squad-Yangu/internal/infra/migrate"
	"github.com/Morphiu/Squad-Yangu/internal/infra/server"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	testEmail := flag.Bool("test-email", false, "send a test email to SMTP_FROM and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		lg.Must("").Fatal("failed to load config", zap.Error(err))
	}

	zapLog := lg.Must(cfg.LogLevel)
	defer zapLog.Sync()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if *testEmail {
		os.Exit(sendTestEmail(cfg, zapLog))
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		zapLog.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zapLog.Fatal("db handle", zap.Error(err))
	}
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := migrate.Up(sqlDB); err != nil {
		zapLog.Fatal("run migrations", zap.Error(err))
	}

	userRepo := myPostgresRepo.NewPostgresUserRepo(db)
	checks := []transport.HealthCheck{{Name: "postgres", Pinger: userRepo, Critical: true}}

	var throttle repo.ResetThrottle
	if cfg.RedisAddress != "" {
		redisCli := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisCli.Close()
		redisThrottle := myRedisRepo.NewRedisResetThrottle(redisCli)
		throttle = redisThrottle
		checks = append(checks, transport.HealthCheck{Name: "redis", Pinger: redisThrottle})
	} else {
		zapLog.Warn("REDIS_ADDRESS not set, forgot-password throttling disabled")
	}

	var sender appsvc.Sender
	smtpSender, err := mail.NewSMTPSender(cfg)
	switch {
	case errors.Is(err, mail.ErrNotConfigured):
		zapLog.Warn("SMTP_HOST not set, password reset emails will fail")
		sender = mail.Unconfigured{}
	case err != nil:
		zapLog.Fatal("failed to init SMTP sender", zap.Error(err))
	default:
		sender = smtpSender
	}

	jwtUtil, err := jwt.NewJWTUtil(cfg)
	if err != nil {
		zapLog.Fatal("failed to init JWT util", zap.Error(err))
	}

	svc := appsvc.New(appsvc.Deps{
		Users:    userRepo,
		Throttle: throttle,
		Tokens:   jwtUtil,
		Hasher:   password.NewHasher(cfg.PasswordPepper, password.DefaultParams, cfg.HashConcurrency),
		Resets:   reset.NewManager(userRepo, cfg.ResetTokenTTL, time.Now),
		Sender:   sender,
	}, cfg, dto.NewValidator(), zapLog)

	handler := transport.NewHandler(svc, metrics.New(), zapLog, checks)
	router := transport.NewRouter(cfg, handler, zapLog)

	lis, err := net.Listen("tcp", cfg.HTTPAddress)
	if err != nil {
		zapLog.Fatal("listen", zap.String("addr", cfg.HTTPAddress), zap.Error(err))
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		return server.StartHTTPServer(ctx, lis, router, zapLog)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
		return
	}
	zapLog.Info("shutdown complete")
}

func sendTestEmail(cfg *config.Config, log *zap.Logger) int {
	log.Info("testing email configuration")

	s, err := mail.NewSMTPSender(cfg)
	if err != nil {
		log.Error("email configuration failed", zap.Error(err))
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.EmailSendTimeout)
	defer cancel()
	err = s.SendText(ctx, cfg.SMTPFrom, "Email Configuration Test",
		"This is a test email to verify your email configuration is working correctly.")
	if err != nil {
		log.Error("email configuration failed", zap.Error(err))
		return 1
	}
	log.Info("email configuration is working")
	return 0
}
