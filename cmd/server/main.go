package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pdf-toolbox/backend/internal/api"
	"github.com/pdf-toolbox/backend/internal/catalog"
	"github.com/pdf-toolbox/backend/internal/config"
	"github.com/pdf-toolbox/backend/internal/ilovepdf"
	"github.com/pdf-toolbox/backend/internal/logging"
	"github.com/pdf-toolbox/backend/internal/pdfcheck"
	"github.com/pdf-toolbox/backend/internal/relay"
	"github.com/pdf-toolbox/backend/internal/storage"
	"github.com/pdf-toolbox/backend/internal/web"
	"github.com/sirupsen/logrus"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	configPath := filepath.Join(filepath.Dir(exePath), "PDFToolbox.config")
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Advanced.LogLevel, cfg.Advanced.LogFormat, os.Stderr)

	if err := cfg.EnsureDirectories(); err != nil {
		logger.WithError(err).Fatal("Failed to create directories")
	}

	tools, err := catalog.LoadFile(cfg.Storage.CatalogFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load tool catalog")
	}

	spool, err := storage.NewLocalSpool(cfg.Storage.TempDirectory, cfg.MaxFileSize())
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise temp storage")
	}

	// Missing credentials are reported per request, not at startup.
	var relayer api.Relayer
	if cfg.Credentials.Configured() {
		relayer, err = newRelay(cfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialise iLovePDF client")
		}
	} else {
		logger.Warnf("%s and %s are not set; processing requests will fail", config.EnvPublicKey, config.EnvSecretKey)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepSpool(ctx, spool, cfg.SweepInterval(), cfg.MaxTempAge(), logger)

	h := api.NewHandler(api.Dependencies{
		Catalog:      tools,
		Spool:        spool,
		Relay:        relayer,
		MaxFileSize:  cfg.MaxFileSize(),
		RelayTimeout: cfg.RelayTimeout(),
		Version:      Version,
		Logger:       logger,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, logger, cfg.Advanced.EnableRequestLogging)

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			ExposeHeaders: []string{echo.HeaderContentDisposition, echo.HeaderXRequestID},
		}))
	}

	api.RegisterRoutes(e, h)

	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.WithError(err).Warn("Failed to register static routes")
			embeddedMode = false
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	logger.WithFields(logrus.Fields{
		"version":     Version,
		"build_time":  BuildTime,
		"config":      configPath,
		"listen":      "http://" + cfg.GetServerAddr(),
		"temp_dir":    cfg.Storage.TempDirectory,
		"region":      cfg.Vendor.Region,
		"credentials": cfg.Credentials.Configured(),
		"embedded_ui": embeddedMode,
	}).Info("PDF Toolbox server starting")

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	if n, err := spool.Sweep(0); err != nil {
		logger.WithError(err).Warn("Failed to clear temp directory")
	} else if n > 0 {
		logger.WithField("files", n).Info("Cleared temp directory")
	}
}

func newRelay(cfg *config.AppConfig, logger *logrus.Logger) (*relay.Relay, error) {
	client, err := ilovepdf.NewClient(ilovepdf.Config{
		PublicKey:         cfg.Credentials.PublicKey,
		SecretKey:         cfg.Credentials.SecretKey,
		BaseURL:           cfg.Vendor.BaseURL,
		Region:            cfg.Vendor.Region,
		Timeout:           cfg.VendorTimeout(),
		RequestsPerSecond: cfg.Vendor.RequestsPerSecond,
	}, logger)
	if err != nil {
		return nil, err
	}

	opts := relay.Options{
		TotalCredits: cfg.Vendor.TotalCredits,
		Plan:         cfg.Vendor.Plan,
		Price:        cfg.Vendor.Price,
	}
	if cfg.Vendor.Preflight {
		opts.Preflight = pdfcheck.New()
	}
	return relay.New(relay.NewILovePDFVendor(client), opts, logger), nil
}

// sweepSpool removes temp files left behind by crashed requests.
func sweepSpool(ctx context.Context, spool storage.Spool, interval, maxAge time.Duration, logger *logrus.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := spool.Sweep(maxAge)
			if err != nil {
				logger.WithError(err).Warn("Temp sweep failed")
				continue
			}
			if n > 0 {
				logger.WithField("files", n).Info("Removed stale temp files")
			}
		}
	}
}
