package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"github.com/leaveflow/lms-core/internal/leave/engine"
	"github.com/leaveflow/lms-core/internal/leave/events"
	"github.com/leaveflow/lms-core/internal/leave/handler"
	"github.com/leaveflow/lms-core/internal/leave/rules"
	"github.com/leaveflow/lms-core/internal/leave/uow"
	"github.com/leaveflow/lms-core/pkg/actor"
	"github.com/leaveflow/lms-core/pkg/config"
	"github.com/leaveflow/lms-core/pkg/database"
	"github.com/leaveflow/lms-core/pkg/httputil"
	"github.com/leaveflow/lms-core/pkg/logger"
	"github.com/leaveflow/lms-core/pkg/messaging"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

func main() {
	cfg, err := config.LoadWithValidation("leave-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("leave-service", cfg.Server.Environment)
	log.Info().Msg("starting Leave Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewLeaveEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	factory := uow.NewFactory(db)
	evaluator := rules.NewEvaluator()

	policyEngine := engine.NewPolicyEngine(evaluator, log)
	balanceEngine := engine.NewBalanceEngine(publisher, log)
	workflowEngine := engine.NewWorkflowEngine(evaluator, log)
	leaveEngine := engine.NewLeaveEngine(policyEngine, balanceEngine, workflowEngine, publisher, cfg.Leave, log)

	leaveRequestHandler := handler.NewLeaveRequestHandler(leaveEngine, factory, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Scheduled accrual: the single call-in point BalanceEngine exposes for
	// a cron-driven tick. cfg.Leave.AccrualCron is six-field (seconds
	// included), so the scheduler needs cron.WithSeconds.
	scheduler := cron.New(cron.WithSeconds())
	accrualCtx := actor.WithContext(tenant.WithOrganizationID(ctx, cfg.Leave.DefaultOrganizationID), actor.System(cfg.Leave.DefaultOrganizationID))
	_, err = scheduler.AddFunc(cfg.Leave.AccrualCron, func() {
		var accrued int
		runErr := uow.Run(accrualCtx, factory, func(u *uow.UnitOfWork) error {
			var err error
			accrued, err = balanceEngine.RunScheduledAccrual(u, time.Now())
			return err
		})
		if runErr != nil {
			log.Error().Err(runErr).Msg("scheduled accrual run failed")
			return
		}
		log.Info().Int("balances_accrued", accrued).Msg("scheduled accrual run completed")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register scheduled accrual job")
	}
	scheduler.Start()
	defer scheduler.Stop()

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.OrganizationMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "leave-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	r.Route("/api/v1/leave", func(r chi.Router) {
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", leaveRequestHandler.List)
			r.Post("/", leaveRequestHandler.Create)
			r.Get("/{id}", leaveRequestHandler.Get)
			r.Post("/{id}/submit", leaveRequestHandler.Submit)
			r.Post("/{id}/withdraw", leaveRequestHandler.Withdraw)
			r.Post("/{id}/comments", leaveRequestHandler.AddComment)
		})

		r.Route("/workflow-steps", func(r chi.Router) {
			r.Post("/{stepId}/approve", leaveRequestHandler.ApproveStep)
			r.Post("/{stepId}/reject", leaveRequestHandler.RejectStep)
		})

		r.Get("/balances/{userId}/{leaveTypeId}", leaveRequestHandler.GetBalance)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
