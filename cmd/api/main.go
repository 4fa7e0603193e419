package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/Fiscal-api/internal/application/invoicing"
	"github.com/jhoicas/Fiscal-api/internal/infrastructure/nfeio"
	infrapdf "github.com/jhoicas/Fiscal-api/internal/infrastructure/pdf"
	"github.com/jhoicas/Fiscal-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/Fiscal-api/internal/interfaces/http"
	"github.com/jhoicas/Fiscal-api/pkg/config"
	"github.com/jhoicas/Fiscal-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	cfgRepo := postgres.NewIssuerConfigRepository(pool)
	invRepo := postgres.NewInvoiceRepository(pool)
	eventRepo := postgres.NewBillableEventRepository(pool)
	muniRepo := postgres.NewMunicipalityRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	issuerClient := nfeio.NewClient(nfeio.Config{
		APIKey:        cfg.NFEIO.APIKey,
		BaseURL:       cfg.NFEIO.BaseURL,
		Environment:   cfg.NFEIO.Environment,
		SubmitTimeout: cfg.NFEIO.SubmitTimeout,
		QueryTimeout:  cfg.NFEIO.QueryTimeout,
	})

	reconciler := invoicing.NewReconciler(
		txRunner, cfgRepo, invRepo, eventRepo, muniRepo,
		issuerClient,
		invoicing.Options{
			StalenessThreshold: cfg.Invoicing.StalenessThreshold,
			DefaultCityCode:    cfg.Invoicing.DefaultCityCode,
			CityServiceCode:    cfg.Invoicing.CityServiceCode,
		},
		log,
	)
	configUC := invoicing.NewConfigUseCase(cfgRepo, issuerClient)

	// PDF: recibo provisorio local (RPS) mientras el emisor procesa la nota.
	receiptGenerator := infrapdf.NewMarotoReceiptGenerator()
	receiptUC := invoicing.NewReceiptUseCase(invRepo, cfgRepo, receiptGenerator)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 60, // la emisión espera la llamada al emisor
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Fiscal API",
	}))

	httpRouter.SetupRoutes(app, httpRouter.RouterDeps{
		Reconciler: reconciler,
		ConfigUC:   configUC,
		ReceiptUC:  receiptUC,
		JWTSecret:  cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
