package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/bootstrap"
	httpRouter "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("driver", cfg.DB.Driver).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es obligatorio")
	}
	policy, err := stock.ParseEmptyRowPolicy(cfg.Stock.EmptyRowPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("STOCK_EMPTY_ROW_POLICY")
	}

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("almacenamiento")
	}
	defer store.Close()

	engine := stock.NewMovementEngine(
		store.TxRunner, store.Items, store.Ledger, store.Products, store.Bins,
		log.With(map[string]any{"component": "stock"}),
		stock.Options{EmptyRowPolicy: policy},
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Engine:    engine,
		JWTSecret: cfg.JWT.Secret,
		Log:       log,
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
