package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"edudebt_collection/internal/adapters/events"
	"edudebt_collection/internal/adapters/opener"
	"edudebt_collection/internal/config"
	"edudebt_collection/internal/handlers"
	"edudebt_collection/internal/ports"
	"edudebt_collection/internal/repository/database"
	"edudebt_collection/internal/repository/journal"
	"edudebt_collection/internal/repository/locks"
	"edudebt_collection/internal/repository/memory"
	"edudebt_collection/internal/services/agreement"
	"edudebt_collection/internal/services/importer"
	"edudebt_collection/internal/services/importer/processors"
	"edudebt_collection/internal/services/negotiation"
	"edudebt_collection/internal/services/overdue"
	"edudebt_collection/internal/services/settlement"
	auth "edudebt_collection/internal/transport/auth"
)

// App is the assembled service: HTTP handlers, their auth wrapper and the
// overdue scheduler.
type App struct {
	Handlers  *handlers.Handlers
	Auth      func(http.Handler) http.Handler
	Scheduler *overdue.Scheduler
	Sweeper   *overdue.Sweeper
}

type stores struct {
	debts      ports.DebtStore
	attempts   ports.AttemptStore
	agreements ports.AgreementStore
	tenants    ports.TenantConfig
	directory  ports.Directory
	debtors    ports.DebtorWriter
	imports    ports.ImportLog
	history    ports.EventHistory
	sinks      events.Fanout
	tokens     auth.TokenRepo
}

// Build wires stores, locks, event sinks and services from an initialised
// config.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := buildStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RabbitMQ != nil && cfg.RabbitMQ.Channel != nil {
		pub, err := events.NewPublisher(cfg.RabbitMQ.Channel, cfg.AMQPExchange)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq publisher: %w", err)
		}
		st.sinks = append(st.sinks, pub)
	}

	var locker ports.Locker = locks.NewLocal()
	if cfg.Redis != nil && cfg.Redis.Client != nil {
		locker = locks.NewRedis(cfg.Redis.Client, "collection:lock:", cfg.LockTTL)
	}

	neg := &negotiation.Service{
		Debts:      st.debts,
		Attempts:   st.attempts,
		Agreements: st.agreements,
		Directory:  st.directory,
		Locks:      locker,
		Events:     st.sinks,
		Calc:       cfg.Calc,
	}
	agr := &agreement.Service{
		Debts:      st.debts,
		Agreements: st.agreements,
		Locks:      locker,
		Events:     st.sinks,
		Builder:    agreement.NewBuilder(cfg.Calc),
	}
	defaultPct := cfg.DefaultCommission
	stl := &settlement.Service{
		Debts:             st.debts,
		Tenants:           st.tenants,
		Locks:             locker,
		Events:            st.sinks,
		DefaultPercentage: &defaultPct,
	}
	sweeper := &overdue.Sweeper{Debts: st.debts, Locks: locker, Events: st.sinks}

	var s3Op *opener.S3Opener
	var files ports.FileStore
	if cfg.S3 != nil && cfg.S3.Client != nil {
		s3Op = opener.NewS3Opener(cfg.S3.Client, cfg.S3.Bucket)
		files = s3Op
	}
	base := &processors.BaseProcessor{Log: st.imports}
	registry := processors.Registry(
		&processors.DebtsProcessor{BaseProcessor: base, Debts: st.debts, Debtors: st.debtors},
		&processors.AttemptsProcessor{BaseProcessor: base, Debts: st.debts, Attempts: neg},
		&processors.PaymentsProcessor{BaseProcessor: base, Debts: st.debts, Settlement: stl},
	)
	imp := importer.NewService(
		opener.NewCompoundOpener(opener.NewHTTPOpener(&http.Client{Timeout: 5 * time.Minute}), s3Op),
		registry, st.imports, cfg.ImportBatchSize,
	)

	h := &handlers.Handlers{
		Debts:         st.debts,
		Negotiation:   neg,
		Agreements:    agr,
		Settlement:    stl,
		Importer:      imp,
		Imports:       st.imports,
		Files:         files,
		History:       st.history,
		Checks:        checks(cfg),
		ImportTimeout: 15 * time.Minute,
		Logger:        log.Default(),
	}

	a := &App{
		Handlers:  h,
		Auth:      authMiddleware(cfg, st.tokens),
		Sweeper:   sweeper,
		Scheduler: overdue.NewScheduler(sweeper, cfg.SweepSchedule),
	}
	log.Printf("[APP] store=%s redis_locks=%t amqp=%t s3=%t auth_disabled=%t",
		cfg.Store, cfg.Redis != nil, cfg.RabbitMQ != nil, s3Op != nil, cfg.AuthDisabled)
	return a, nil
}

func buildStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.Store == config.StoreMemory {
		mem := memory.NewStore()
		rec := &events.Recorder{}
		return stores{
			debts:      mem,
			attempts:   mem,
			agreements: mem,
			tenants:    mem,
			directory:  mem,
			debtors:    mem,
			imports:    memory.NewImportLog(),
			history:    rec,
			sinks:      events.Fanout{rec},
			tokens:     auth.StaticTokens(cfg.StaticTokens),
		}, nil
	}

	if cfg.Postgres == nil || cfg.Mongo == nil {
		return stores{}, fmt.Errorf("store %q needs postgres and mongo", cfg.Store)
	}
	if err := database.Migrate(ctx, cfg.Postgres); err != nil {
		return stores{}, fmt.Errorf("migrate: %w", err)
	}

	debts := database.NewDebtsRepo(cfg.Postgres, "debts")
	dir := database.NewDirectoryRepo(cfg.Postgres)
	journalEvents := journal.NewEvents(cfg.Mongo)
	if err := journalEvents.EnsureIndexes(ctx); err != nil {
		log.Printf("[APP][WARN] event journal indexes: %v", err)
	}

	return stores{
		debts:      debts,
		attempts:   database.NewAttemptsRepo(cfg.Postgres),
		agreements: database.NewAgreementRepo(cfg.Postgres, debts),
		tenants:    database.NewTenantSettingsRepo(cfg.Postgres),
		directory:  dir,
		debtors:    dir,
		imports:    journal.NewImports(cfg.Mongo),
		history:    journalEvents,
		sinks:      events.Fanout{journalEvents},
		tokens:     database.NewAccessTokenRepo(cfg.Postgres),
	}, nil
}

func authMiddleware(cfg *config.Config, tokens auth.TokenRepo) func(http.Handler) http.Handler {
	if cfg.AuthDisabled {
		log.Printf("[APP][WARN] authentication disabled, every request acts as operator")
		return auth.Anonymous("operator")
	}
	return auth.BearerMiddleware(tokens)
}

func checks(cfg *config.Config) []handlers.Check {
	var out []handlers.Check
	if cfg.Postgres != nil {
		out = append(out, handlers.Check{Name: "postgres", Ping: func(ctx context.Context) error {
			return cfg.Postgres.Pool.Ping(ctx)
		}})
	}
	if cfg.Mongo != nil {
		out = append(out, handlers.Check{Name: "mongo", Ping: func(ctx context.Context) error {
			return cfg.Mongo.Client.Ping(ctx, nil)
		}})
	}
	if cfg.S3 != nil {
		out = append(out, handlers.Check{Name: "s3", Ping: cfg.S3.Ping})
	}
	if cfg.Redis != nil {
		out = append(out, handlers.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return cfg.Redis.Client.Ping(ctx).Err()
		}})
	}
	if cfg.RabbitMQ != nil {
		out = append(out, handlers.Check{Name: "rabbitmq", Ping: func(ctx context.Context) error {
			if cfg.RabbitMQ.Conn == nil || cfg.RabbitMQ.Conn.IsClosed() {
				return fmt.Errorf("connection closed")
			}
			return nil
		}})
	}
	return out
}
