package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-novapay/app/controller"
	flowsgrpc "github.com/vibast-solutions/ms-go-novapay/app/grpc"
	"github.com/vibast-solutions/ms-go-novapay/config"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the payment flow engine.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	app := mustBootstrap()
	defer app.close()
	cfg := app.cfg

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	e := setupHTTPServer(app, echoInternalAuthMiddleware)
	grpcSrv, lis := setupGRPCServer(app, grpcInternalAuthMiddleware)

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	if cfg.Jobs.Embedded {
		startEmbeddedWorkers(workersCtx, &workers, app)
	}

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	stopWorkers()
	workers.Wait()

	logrus.Info("Server stopped")
}

func setupHTTPServer(app *application, internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware) *echo.Echo {
	cfg := app.cfg
	timeout := cfg.Flows.RequestTimeout

	flowController := controller.NewFlowController(app.flows, app.idempotency, cfg.App.CheckoutBaseURL, timeout)
	checkoutController := controller.NewCheckoutController(app.flows, timeout)
	internalController := controller.NewInternalController(app.admin, app.webhooks, timeout)
	merchantAuth := controller.NewMerchantAuthMiddleware(app.auth)

	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", flowController.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	checkout := e.Group("/v1/checkout")
	checkout.GET("/:flowId", checkoutController.Summary)
	checkout.POST("/:flowId/authorize", checkoutController.Authorize)

	v1 := e.Group("/v1", merchantAuth.RequireMerchant)
	v1.POST("/flows", flowController.Reserve)
	v1.GET("/flows", flowController.ListFlows)
	v1.GET("/flows/:flowId", flowController.Lookup)
	v1.POST("/flows/:flowId/charge", flowController.Charge)
	v1.POST("/flows/:flowId/void", flowController.Void)
	v1.POST("/flows/:flowId/refund", flowController.Refund)
	v1.GET("/flows/:flowId/transactions", flowController.ListTransactions)
	v1.GET("/balances", flowController.ListBalances)

	internal := e.Group("/internal", internalAuthMiddleware.RequireInternalAccess(cfg.App.ServiceName))
	internal.POST("/accounts/:accountId/credit", internalController.CreditAccount)
	internal.POST("/webhooks/:deliveryId/retry", internalController.RetryWebhook)

	return e
}

func setupGRPCServer(app *application, internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware) (*grpc.Server, net.Listener) {
	cfg := app.cfg
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			flowsgrpc.RecoveryInterceptor(),
			flowsgrpc.RequestIDInterceptor(),
			flowsgrpc.LoggingInterceptor(),
			internalAuthMiddleware.UnaryRequireInternalAccess(cfg.App.ServiceName),
		),
	)
	flowsgrpc.RegisterFlowsServiceServer(grpcSrv, flowsgrpc.NewServer(
		app.flows,
		app.auth,
		app.idempotency,
		cfg.App.CheckoutBaseURL,
		cfg.Flows.RequestTimeout,
	))

	return grpcSrv, lis
}

func startEmbeddedWorkers(ctx context.Context, wg *sync.WaitGroup, app *application) {
	for _, job := range backgroundJobs {
		if job.enabled != nil && !job.enabled(app.cfg) {
			logrus.WithField("job", job.name).Info("Embedded worker disabled")
			continue
		}
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(ctx, job.name, job.interval(app.cfg), func(ctx context.Context) error {
				return job.run(ctx, app)
			})
		}()
	}
}

func kafkaEnabled(cfg *config.Config) bool {
	return cfg.Kafka.Enabled()
}
