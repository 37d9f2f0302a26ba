package internal

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	logger_adapter "property-sync-service/internal/adapters/logger"
	postgres_adapter "property-sync-service/internal/adapters/postgres"
	rabbitmq_adapter "property-sync-service/internal/adapters/rabbitmq"
	"property-sync-service/internal/adapters/ratecache"
	"property-sync-service/internal/adapters/rates_api_client"
	"property-sync-service/internal/adapters/rest"
	"property-sync-service/internal/adapters/scheduler"
	sqlite_adapter "property-sync-service/internal/adapters/sqlite"
	"property-sync-service/internal/configs"
	"property-sync-service/internal/constants"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
	"property-sync-service/internal/core/syncengine"
	"property-sync-service/internal/core/usecase"
	fluentlogger "property-sync-service/pkg/fluent_logger"
	"property-sync-service/pkg/postgres"
	"property-sync-service/pkg/rabbitmq/rabbitmq_common"
	"property-sync-service/pkg/rabbitmq/rabbitmq_consumer"
	"property-sync-service/pkg/rabbitmq/rabbitmq_producer"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// App – структура приложения
type App struct {
	config       *configs.AppConfig
	dbPool       *pgxpool.Pool
	sqliteStore  *sqlite_adapter.SQLiteRecordStorageAdapter
	apiServer    *rest.Server
	fluentClient *fluent.Fluent
	logger       port.LoggerPort

	connManager        *rabbitmq_common.ConnectionManager
	propagationResults *rabbitmq_producer.Publisher

	// слушатели: consumer команд каскада, расписание курсов
	listeners map[string]port.EventListenerPort
}

// storageBundle - то, что дает выбранный драйвер хранилища
type storageBundle struct {
	records port.RecordStoragePort
	rates   port.RateStoragePort
	pool    *pgxpool.Pool
	sqlite  *sqlite_adapter.SQLiteRecordStorageAdapter
}

// NewApp - Composition Root, где все зависимости создаются и связываются.
func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. ЛОГГЕРЫ ---
	baseLogger, fluentClient, err := newLogger(appConfig)
	if err != nil {
		return nil, err
	}
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})

	closeOnError := func() {
		if fluentClient != nil {
			fluentClient.Close()
		}
	}

	policy, err := configs.LoadPolicy(appConfig.PolicyFile)
	if err != nil {
		appLogger.Error("Failed to load policy", err, port.Fields{"policy_file": appConfig.PolicyFile})
		closeOnError()
		return nil, err
	}

	// --- 2. ХРАНИЛИЩЕ ---
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	storage, err := newStorage(ctx, appConfig, appLogger)
	if err != nil {
		closeOnError()
		return nil, err
	}
	closeOnError = func() {
		if storage.pool != nil {
			storage.pool.Close()
		}
		if storage.sqlite != nil {
			storage.sqlite.Close()
		}
		if fluentClient != nil {
			fluentClient.Close()
		}
	}

	// --- 3. КУРСЫ ВАЛЮТ ---
	var rateProvider port.RateProviderPort
	if appConfig.Rates.APIURL != "" {
		rateProvider = rates_api_client.NewClient(appConfig.Rates.APIURL)
	}
	ratesUseCase := usecase.NewRatesUseCase(rateProvider, storage.rates, ratecache.New(appConfig.Rates.CacheTTL), domain.Rates{
		Official: decimal.NewFromFloat(appConfig.Rates.DefaultOfficial),
		Parallel: decimal.NewFromFloat(appConfig.Rates.DefaultParallel),
		Source:   "default",
	})

	listeners := make(map[string]port.EventListenerPort)
	if rateProvider != nil {
		refresher, err := scheduler.NewRatesRefresher(appConfig.Rates.RefreshCron, ratesUseCase, baseLogger)
		if err != nil {
			appLogger.Error("Failed to create rates refresher", err, nil)
			closeOnError()
			return nil, err
		}
		listeners["Rates Refresher"] = refresher
	} else {
		appLogger.Warn("RATES_API_URL is not set, using persisted or default rates only", nil)
	}

	// --- 4. RABBITMQ ---
	var (
		connManager *rabbitmq_common.ConnectionManager
		publisher   *rabbitmq_producer.Publisher
		reporter    port.PropagationReporterPort
	)
	if appConfig.RabbitMQ.Enabled {
		connManager, err = rabbitmq_common.NewConnectionManager(rabbitmq_common.ManagerConfig{
			Config:            rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
			ReconnectInterval: 5 * time.Second,
			Logger:            rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"})),
		})
		if err != nil {
			appLogger.Error("Failed to create connection manager", err, nil)
			closeOnError()
			return nil, fmt.Errorf("failed to create connection manager: %w", err)
		}

		publisher, err = rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
			Config:                   rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
			ExchangeName:             constants.EditorExchange,
			ExchangeType:             constants.EditorExchangeType,
			Durable:                  true,
			DeclareExchangeIfMissing: true,
			Logger:                   rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})),
		}, connManager)
		if err != nil {
			appLogger.Error("Failed to create RabbitMQ publisher", err, nil)
			connManager.Close()
			closeOnError()
			return nil, fmt.Errorf("failed to create RabbitMQ publisher: %w", err)
		}

		reporterAdapter, err := rabbitmq_adapter.NewPropagationReporterAdapter(publisher, constants.RoutingKeyPropagationResults)
		if err != nil {
			publisher.Close()
			connManager.Close()
			closeOnError()
			return nil, err
		}
		reporter = reporterAdapter
		appLogger.Info("RabbitMQ publisher initialized.", nil)
	}

	// --- 5. USE CASES ---
	validator := syncengine.NewValidator(policy.ValidatorConfig())
	propagateUseCase := usecase.NewPropagateProjectUseCase(storage.records, reporter)

	if connManager != nil {
		consumerCfg := rabbitmq_consumer.ConsumerConfig{
			Config:                 rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
			QueueName:              constants.QueuePropagationCommands,
			DeclareQueue:           true,
			DurableQueue:           true,
			ExchangeNameForBind:    constants.EditorExchange,
			ExchangeTypeForBind:    constants.EditorExchangeType,
			DeclareExchangeForBind: true,
			RoutingKeyForBind:      constants.RoutingKeyPropagationCommands,
			PrefetchCount:          constants.PropagationPrefetchCount,
			ConsumerTag:            constants.PropagationConsumerTag,
			EnableRetryMechanism:   true,
			RetryExchange:          constants.PropagationRetryExchange,
			RetryQueue:             constants.PropagationRetryQueue,
			RetryTTL:               constants.PropagationRetryTTLms,
			FinalDLXExchange:       constants.FinalDLXExchange,
			FinalDLQ:               constants.FinalDLQ,
			FinalDLQRoutingKey:     constants.FinalDLQRoutingKey,
			MaxRetries:             constants.PropagationMaxRetries,
		}
		consumer, err := rabbitmq_adapter.NewPropagationConsumerAdapter(consumerCfg, propagateUseCase, baseLogger, connManager)
		if err != nil {
			appLogger.Error("Failed to create propagation commands listener", err, nil)
			publisher.Close()
			connManager.Close()
			closeOnError()
			return nil, err
		}
		listeners["Propagation Commands Listener"] = consumer
		appLogger.Info("Propagation Commands Listener initialized.", nil)
	}

	editors := make(map[domain.Editor]*rest.EditHandler)
	for editor := range policy.Editors {
		editorPolicy, err := policy.EditorPolicy(editor)
		if err != nil {
			closeOnError()
			return nil, err
		}
		editUseCase := usecase.NewEditRecordUseCase(storage.records, ratesUseCase, validator, editorPolicy)
		editors[editor] = rest.NewEditHandler(editor, editUseCase)
	}

	// --- 6. REST ---
	apiServer := rest.NewServer(appConfig.HTTP.Port, appConfig.HTTP.CORSAllowedOrigins, rest.Handlers{
		Editors: editors,
		Records: rest.NewRecordHandler(usecase.NewGetRecordUseCase(storage.records), rest.Catalogs{
			Amenities: policy.Catalogs.Amenities,
			Equipment: policy.Catalogs.Equipment,
		}),
		Propagation: rest.NewPropagationHandler(propagateUseCase),
		Rates:       rest.NewRatesHandler(ratesUseCase),
	}, baseLogger)
	appLogger.Info("REST API server configured.", port.Fields{"editors": len(editors)})

	return &App{
		config:             appConfig,
		dbPool:             storage.pool,
		sqliteStore:        storage.sqlite,
		apiServer:          apiServer,
		fluentClient:       fluentClient,
		logger:             appLogger,
		connManager:        connManager,
		propagationResults: publisher,
		listeners:          listeners,
	}, nil
}

func newLogger(appConfig *configs.AppConfig) (port.LoggerPort, *fluent.Fluent, error) {
	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    logger_adapter.ParseLevel(appConfig.StdoutLogger.Level),
		IsJSON:   appConfig.StdoutLogger.JSON,
		UseColor: !appConfig.StdoutLogger.JSON,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		var err error
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
			Async:     true,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, logger_adapter.ParseLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		if fluentClient != nil {
			fluentClient.Close()
		}
		return nil, nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{"service_name": appConfig.AppName})
	baseLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})
	return baseLogger, fluentClient, nil
}

func newStorage(ctx context.Context, appConfig *configs.AppConfig, appLogger port.LoggerPort) (*storageBundle, error) {
	switch appConfig.Storage.Driver {
	case configs.StorageDriverSQLite:
		store, err := sqlite_adapter.Open(ctx, appConfig.Storage.SQLitePath)
		if err != nil {
			appLogger.Error("Failed to open SQLite store", err, port.Fields{"path": appConfig.Storage.SQLitePath})
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		appLogger.Info("SQLite record store opened.", port.Fields{"path": appConfig.Storage.SQLitePath})
		return &storageBundle{records: store, sqlite: store}, nil

	default:
		dbPool, err := postgres.NewClient(ctx, postgres.Config{
			DatabaseURL: appConfig.Database.URL,
			MaxConns:    int32(appConfig.Database.MaxConns),
		})
		if err != nil {
			appLogger.Error("Failed to connect to PostgreSQL", err, nil)
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		appLogger.Info("Successfully connected to PostgreSQL pool!", nil)

		if appConfig.Database.MigrateOnStart {
			migrations, err := fs.Sub(postgres_adapter.MigrationsFS, "migrations")
			if err != nil {
				dbPool.Close()
				return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
			}
			applied, err := postgres.Migrate(ctx, dbPool, migrations)
			if err != nil {
				appLogger.Error("Failed to apply migrations", err, port.Fields{"applied": applied})
				dbPool.Close()
				return nil, fmt.Errorf("failed to apply migrations: %w", err)
			}
			appLogger.Info("Migrations applied.", port.Fields{"applied": applied})
		}

		records, err := postgres_adapter.NewPostgresRecordStorageAdapter(dbPool)
		if err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("failed to create postgres record storage: %w", err)
		}
		rates, err := postgres_adapter.NewPostgresRatesStorageAdapter(dbPool)
		if err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("failed to create postgres rates storage: %w", err)
		}
		appLogger.Info("Postgres storage adapters initialized.", nil)
		return &storageBundle{records: records, rates: rates, pool: dbPool}, nil
	}
}

// Run запускает все компоненты приложения и управляет их жизненным циклом.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.apiServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("Error during API server shutdown", err, nil)
		}

		a.logger.Info("Waiting for background processes to finish...", nil)
		wg.Wait()
		a.logger.Info("All background processes finished.", nil)

		for name, listener := range a.listeners {
			if err := listener.Close(); err != nil {
				a.logger.Error("Error closing listener", err, port.Fields{"listener_name": name})
			}
		}

		if a.propagationResults != nil {
			if err := a.propagationResults.Close(); err != nil {
				a.logger.Error("Error closing event producer", err, nil)
			}
		}
		if a.connManager != nil {
			if err := a.connManager.Close(); err != nil {
				a.logger.Error("Error closing RabbitMQ connection", err, nil)
			}
		}

		if a.dbPool != nil {
			a.dbPool.Close()
			a.logger.Info("PostgreSQL pool closed.", nil)
		}
		if a.sqliteStore != nil {
			if err := a.sqliteStore.Close(); err != nil {
				a.logger.Error("Error closing SQLite store", err, nil)
			}
		}

		a.logger.Info("Application shut down gracefully.", nil)

		if a.fluentClient != nil {
			if err := a.fluentClient.Close(); err != nil {
				// fluent может быть уже недоступен
				fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
			}
		}
	}()

	a.logger.Info("Application is starting...", nil)

	errorsCh := make(chan error, len(a.listeners)+1)

	startListener := func(name string, listener port.EventListenerPort) {
		defer wg.Done()
		listenerLogger := a.logger.WithFields(port.Fields{"listener_name": name})
		listenerLogger.Info("Starting listener...", nil)

		if err := listener.Start(appCtx); err != nil {
			listenerLogger.Error("Listener stopped with an unexpected error", err, nil)
			errorsCh <- fmt.Errorf("%s error: %w", name, err)
		} else {
			listenerLogger.Info("Listener stopped gracefully due to context cancellation.", nil)
		}
	}

	for name, listener := range a.listeners {
		wg.Add(1)
		go startListener(name, listener)
	}

	go func() {
		a.logger.Info("Starting HTTP server...", port.Fields{"port": a.config.HTTP.Port})
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			errorsCh <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Application running. Waiting for signals or server error...", nil)
	var runErr error
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
	case err := <-errorsCh:
		a.logger.Error("A critical component failed, shutting down", err, nil)
		runErr = err
	}

	// graceful shutdown: отменяем главный контекст
	cancelApp()

	return runErr
}
