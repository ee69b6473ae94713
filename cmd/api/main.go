package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/triptally/triptally/docs"
	"github.com/triptally/triptally/internal/auth"
	"github.com/triptally/triptally/internal/config"
	"github.com/triptally/triptally/internal/database"
	"github.com/triptally/triptally/internal/expense"
	expensesplit "github.com/triptally/triptally/internal/expense/split"
	"github.com/triptally/triptally/internal/notification"
	"github.com/triptally/triptally/internal/settlement"
	"github.com/triptally/triptally/internal/trip"
	"github.com/triptally/triptally/internal/user"
	"github.com/triptally/triptally/pkg/logging"
	mw "github.com/triptally/triptally/pkg/middleware"
)

// @title           TripTally API
// @version         1.0
// @description     Collaborative trip planning and expense splitting.

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @BasePath /api/v1
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	logging.Setup()

	cfg := config.Load()

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	slog.Info("connected to database")

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	// Split strategy factory
	splitFactory := expensesplit.NewFactory()

	// User feature
	userRepo := user.NewRepository(db)
	userService := user.NewService(userRepo, jwtManager)
	userHandler := user.NewHandler(userService)

	// Notification feature
	notificationRepo := notification.NewRepository(db)
	notificationService := notification.NewService(notificationRepo)
	notificationHandler := notification.NewHandler(notificationService)

	// Trip feature
	tripRepo := trip.NewRepository(db)
	tripService := trip.NewService(tripRepo, notificationService)
	tripHandler := trip.NewHandler(tripService)

	// Expense feature (with split factory injected)
	expenseRepo := expense.NewRepository(db)
	expenseService := expense.NewService(expenseRepo, splitFactory, notificationService)
	expenseHandler := expense.NewHandler(expenseService)

	// Settlement feature, wired to the expense and trip data it settles
	settlementRepo := settlement.NewRepository(db)
	settlementService := settlement.NewService(settlementRepo, expenseRepo, tripRepo, notificationService)
	settlementHandler := settlement.NewHandler(settlementService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.Metrics)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", userHandler.AuthRoutes())

		r.Group(func(r chi.Router) {
			r.Use(mw.Auth(jwtManager))

			r.Mount("/users", userHandler.Routes())
			r.Mount("/trips", tripHandler.Routes())
			r.Mount("/expenses", expenseHandler.Routes())
			r.Mount("/settlements", settlementHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
		})
	})

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	slog.Info("server starting", "port", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
