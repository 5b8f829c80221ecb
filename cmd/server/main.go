package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	accesspersistence "github.com/fieldrow/fieldrow/modules/access/infrastructure/persistence"
	accessservices "github.com/fieldrow/fieldrow/modules/access/services"
	assetspersistence "github.com/fieldrow/fieldrow/modules/assets/infrastructure/persistence"
	assetsservices "github.com/fieldrow/fieldrow/modules/assets/services"
	billingpersistence "github.com/fieldrow/fieldrow/modules/billing/infrastructure/persistence"
	billingservices "github.com/fieldrow/fieldrow/modules/billing/services"
	corepersistence "github.com/fieldrow/fieldrow/modules/core/infrastructure/persistence"
	coreservices "github.com/fieldrow/fieldrow/modules/core/services"
	crmpersistence "github.com/fieldrow/fieldrow/modules/crm/infrastructure/persistence"
	crmservices "github.com/fieldrow/fieldrow/modules/crm/services"
	jobspersistence "github.com/fieldrow/fieldrow/modules/jobs/infrastructure/persistence"
	jobsservices "github.com/fieldrow/fieldrow/modules/jobs/services"
	loggingpersistence "github.com/fieldrow/fieldrow/modules/logging/infrastructure/persistence"
	loggingservices "github.com/fieldrow/fieldrow/modules/logging/services"
	orgpersistence "github.com/fieldrow/fieldrow/modules/org/infrastructure/persistence"
	orgservices "github.com/fieldrow/fieldrow/modules/org/services"

	"github.com/fieldrow/fieldrow/migrations"
	"github.com/fieldrow/fieldrow/pkg/configuration"
	"github.com/fieldrow/fieldrow/pkg/constants"
	"github.com/fieldrow/fieldrow/pkg/eventbus"
	"github.com/fieldrow/fieldrow/pkg/metrics"
	"github.com/fieldrow/fieldrow/pkg/middleware"
	"github.com/fieldrow/fieldrow/pkg/policy"
	"github.com/fieldrow/fieldrow/pkg/server"
)

// Services bundles every service the transport layer can reach.
type Services struct {
	Users       *coreservices.UserService
	Customers   *crmservices.CustomerService
	Departments *orgservices.DepartmentService
	Suppliers   *orgservices.SupplierService
	Branches    *orgservices.BranchService
	Jobs        *jobsservices.JobService
	Invoices    *billingservices.InvoiceService
	Equipment   *assetsservices.EquipmentService
	APIKeys     *accessservices.APIKeyService
	Webhooks    *accessservices.WebhookService
	Audit       *loggingservices.AuditService
	Usage       *loggingservices.UsageService
}

func buildServices(bus eventbus.EventBus) *Services {
	auditRepo := loggingpersistence.NewAuditLogRepository()
	audit := loggingservices.NewAuditService(auditRepo)
	usage := loggingservices.NewUsageService(loggingpersistence.NewAPIUsageRepository())

	customerRepo := crmpersistence.NewCustomerRepository()
	departmentRepo := orgpersistence.NewDepartmentRepository()
	jobRepo := jobspersistence.NewJobRepository()
	policies := policy.NewEvaluator(nil)

	return &Services{
		Users:       coreservices.NewUserService(corepersistence.NewUserRepository(), audit, bus),
		Customers:   crmservices.NewCustomerService(customerRepo, audit, bus),
		Departments: orgservices.NewDepartmentService(departmentRepo, audit, bus),
		Suppliers:   orgservices.NewSupplierService(orgpersistence.NewSupplierRepository(), audit, bus),
		Branches:    orgservices.NewBranchService(orgpersistence.NewBranchRepository(), audit, bus),
		Jobs: jobsservices.NewJobService(
			jobRepo,
			jobspersistence.NewJobHistoryRepository(),
			jobspersistence.NewRoutingRuleRepository(),
			customerRepo,
			departmentRepo,
			policies,
			audit,
			bus,
		),
		Invoices:  billingservices.NewInvoiceService(billingpersistence.NewInvoiceRepository(), jobRepo, audit, bus),
		Equipment: assetsservices.NewEquipmentService(assetspersistence.NewEquipmentRepository(), jobRepo, audit, bus),
		APIKeys:   accessservices.NewAPIKeyService(accesspersistence.NewAPIKeyRepository(), audit),
		Webhooks:  accessservices.NewWebhookService(accesspersistence.NewWebhookRepository(), audit),
		Audit:     audit,
		Usage:     usage,
	}
}

func runMigrations(conf *configuration.Configuration) error {
	db, err := sql.Open("pgx", conf.Database.Opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, ".")
}

func main() {
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	if *migrate {
		if err := runMigrations(conf); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		logger.Info("migrations applied")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		log.Fatalf("failed to create database pool: %v", err)
	}
	defer pool.Close()

	bus := eventbus.NewEventPublisher(logger)
	services := buildServices(bus)

	dispatcher := accessservices.NewWebhookDispatcher(pool, services.Webhooks, logger)
	dispatcher.Register(bus)

	controllers := []server.Controller{
		server.NewHealthController(pool),
	}
	if conf.Prometheus.Enabled {
		controllers = append(controllers, metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(logger, conf),
		metrics.RequestMetrics(),
		middleware.Provide(constants.PoolKey, pool),
		middleware.Cors("http://localhost:3000"),
		middleware.RequestParams(conf),
	}

	srv := server.NewHTTPServer(controllers, middlewares)

	go func() {
		logger.Infof("listening on %s", conf.SocketAddress)
		if err := srv.Start(conf.SocketAddress); err != nil {
			logger.WithError(err).Error("http server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	configuration.Use().Unload()
}
