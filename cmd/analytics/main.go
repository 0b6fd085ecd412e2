// Package main - точка входа аналитического ядра Shulebook.
//
// Ядро сворачивает оценки школьного журнала в многоуровневую аналитику:
// составные предметы с весами компонентов, средние по студентам, предметам,
// классам и потокам, топ-N и двухуровневый кеш результатов.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: PostgreSQL, Redis, шина событий, планировщик
//
// Подкоманды:
//
//	serve       - запуск с планировщиком прогрева (по умолчанию)
//	report      - одноразовый расчёт аналитики, JSON в stdout
//	top         - топ-N студентов скоупа
//	display     - разбивка составной оценки студента
//	set-config  - сохранение составной конфигурации
//	toggle      - переключение составной оценки предмета
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shulebook/shulebook/config"
	"github.com/shulebook/shulebook/internal/application/command"
	"github.com/shulebook/shulebook/internal/application/eventhandler"
	"github.com/shulebook/shulebook/internal/application/query"
	"github.com/shulebook/shulebook/internal/domain/analytics"
	"github.com/shulebook/shulebook/internal/domain/grading"
	"github.com/shulebook/shulebook/internal/domain/marks"
	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/internal/domain/subject"
	"github.com/shulebook/shulebook/internal/infrastructure/cache"
	"github.com/shulebook/shulebook/internal/infrastructure/messaging"
	"github.com/shulebook/shulebook/internal/infrastructure/persistence/postgres"
	"github.com/shulebook/shulebook/internal/infrastructure/persistence/redis"
	"github.com/shulebook/shulebook/internal/infrastructure/scheduler"
	"github.com/shulebook/shulebook/internal/infrastructure/scheduler/jobs"
	"github.com/shulebook/shulebook/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// app - собранное приложение: все обработчики поверх инфраструктуры.
type app struct {
	cfg *config.Config
	log *logger.Logger

	bus            *messaging.InMemoryEventBus
	cacheService   *cache.Service
	analyticsStore *redis.AnalyticsStore

	analyticsHandler *query.GetComprehensiveAnalyticsHandler
	topHandler       *query.GetTopPerformersHandler
	displayHandler   *query.GetCompositeDisplayHandler
	setConfigHandler *command.SetCompositeConfigHandler
	toggleHandler    *command.ToggleCompositeHandler
	notifyHandler    *command.NotifyMarksChangedHandler

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.App.LogLevel),
		AddCaller: cfg.App.Debug,
	}).With(
		logger.String("app", cfg.App.Name),
		logger.String("version", cfg.App.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	subcommand := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		subcommand = args[0]
		args = args[1:]
	}

	switch subcommand {
	case "serve":
		return a.serve(ctx)
	case "report":
		return a.report(ctx, args)
	case "top":
		return a.top(ctx, args)
	case "display":
		return a.display(ctx, args)
	case "set-config":
		return a.setConfig(ctx, args)
	case "toggle":
		return a.toggle(ctx, args)
	default:
		return fmt.Errorf("unknown subcommand %q", subcommand)
	}
}

// buildApp собирает инфраструктуру и обработчики.
func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	// ── PostgreSQL ────────────────────────────────────────────────────────

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, conn.Close)

	if cfg.Database.RunMigrations {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied")
	}

	subjectRepo := postgres.NewSubjectRepository(conn, log)
	marksRepo := postgres.NewMarksRepository(conn, log)

	// ── Redis (опционально) ───────────────────────────────────────────────

	var store cache.Store
	var configRepo subject.ConfigRepository = subjectRepo
	if !cfg.Redis.Disabled {
		redisCache, err := redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   3,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolTimeout:  cfg.Redis.DialTimeout,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = redisCache.Close() })

		a.analyticsStore = redis.NewAnalyticsStore(redisCache)
		store = a.analyticsStore
		configRepo = redis.NewConfigStore(subjectRepo, redisCache, log)
	} else {
		log.Warn("redis disabled, using in-process cache tier only")
	}

	a.cacheService = cache.NewService(store, log)

	// ── Домен и приложение ────────────────────────────────────────────────

	registry := subject.NewConfigRegistry(configRepo, log).WithTTL(cfg.Analytics.ConfigTTL)
	calculator := grading.NewCalculator(registry, subjectRepo, marksRepo, log)
	aggregator := analytics.NewAggregator(log)

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	a.bus = messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		Logger:        slogger,
		EnableMetrics: true,
	})
	a.closers = append(a.closers, func() { _ = a.bus.Close() })

	invalidation := eventhandler.NewInvalidateAnalyticsHandler(a.cacheService, log)
	if err := invalidation.Register(a.bus); err != nil {
		a.close()
		return nil, fmt.Errorf("register invalidation handler: %w", err)
	}

	a.analyticsHandler = query.NewGetComprehensiveAnalyticsHandler(
		marksRepo, subjectRepo, aggregator, a.cacheService, log)
	a.topHandler = query.NewGetTopPerformersHandler(a.analyticsHandler)
	a.displayHandler = query.NewGetCompositeDisplayHandler(calculator, registry, subjectRepo)
	a.setConfigHandler = command.NewSetCompositeConfigHandler(registry, a.bus, log)
	a.toggleHandler = command.NewToggleCompositeHandler(registry, a.bus, log)
	a.notifyHandler = command.NewNotifyMarksChangedHandler(a.bus, log)

	return a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBCOMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// serve запускает планировщик прогрева и блокируется до сигнала.
func (a *app) serve(ctx context.Context) error {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if a.cfg.Scheduler.Enabled {
		sched := scheduler.New(scheduler.Config{Logger: slogger})

		var locks jobs.LockProvider
		if a.analyticsStore != nil {
			locks = a.analyticsStore
		}

		warmup, err := jobs.NewWarmupJob(jobs.WarmupJobConfig{
			Warmer: a.analyticsHandler,
			Locks:  locks,
			Bus:    a.bus,
			Scopes: warmupScopes(),
			Logger: slogger,
		})
		if err != nil {
			return fmt.Errorf("create warmup job: %w", err)
		}

		var schedule scheduler.Schedule
		if a.cfg.Scheduler.WarmupInterval > 0 {
			schedule = scheduler.Every(a.cfg.Scheduler.WarmupInterval)
		} else {
			schedule = scheduler.DailyAt(a.cfg.Scheduler.WarmupHour, a.cfg.Scheduler.WarmupMinute)
		}

		if err := sched.Register(warmup, schedule); err != nil {
			return fmt.Errorf("register warmup job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	a.log.Info("analytics core ready")
	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return nil
}

// report выполняет одноразовый расчёт комплексной аналитики.
func (a *app) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	grade := fs.String("grade", "", "grade ID")
	stream := fs.String("stream", "", "stream ID")
	term := fs.String("term", "", "term ID")
	assessment := fs.String("assessment", "", "assessment type ID")
	subjects := fs.String("subjects", "", "comma-separated subject IDs")
	level := fs.String("level", "", "education level")
	byComponent := fs.Bool("by-component", false, "show components as standalone subjects")
	skipCache := fs.Bool("skip-cache", false, "force recomputation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := a.analyticsHandler.Handle(ctx, query.GetComprehensiveAnalyticsQuery{
		GradeID:          *grade,
		StreamID:         *stream,
		TermID:           *term,
		AssessmentTypeID: *assessment,
		SubjectIDs:       splitList(*subjects),
		EducationLevel:   *level,
		ViewByComponent:  *byComponent,
		SkipCache:        *skipCache,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

// top печатает топ-N студентов скоупа.
func (a *app) top(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	grade := fs.String("grade", "", "grade ID")
	stream := fs.String("stream", "", "stream ID")
	term := fs.String("term", "", "term ID")
	assessment := fs.String("assessment", "", "assessment type ID")
	level := fs.String("level", "", "education level")
	limit := fs.Int("limit", a.cfg.Analytics.TopLimit, "list size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := a.topHandler.Handle(ctx, query.GetTopPerformersQuery{
		GradeID:          *grade,
		StreamID:         *stream,
		TermID:           *term,
		AssessmentTypeID: *assessment,
		EducationLevel:   *level,
		Limit:            *limit,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

// display печатает разбивку составной оценки студента.
// Без -subject печатаются разбивки всех составных предметов уровня.
func (a *app) display(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("display", flag.ContinueOnError)
	student := fs.String("student", "", "student ID")
	subjectName := fs.String("subject", "", "composite subject name (all composites when omitted)")
	term := fs.String("term", "", "term ID")
	assessment := fs.String("assessment", "", "assessment type ID")
	level := fs.String("level", "", "education level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *subjectName == "" {
		result, err := a.displayHandler.HandleAll(ctx, query.GetStudentCompositesQuery{
			StudentID:        *student,
			TermID:           *term,
			AssessmentTypeID: *assessment,
			EducationLevel:   *level,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	result, err := a.displayHandler.Handle(ctx, query.GetCompositeDisplayQuery{
		StudentID:        *student,
		SubjectName:      *subjectName,
		TermID:           *term,
		AssessmentTypeID: *assessment,
		EducationLevel:   *level,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

// setConfig сохраняет составную конфигурацию.
// Компоненты задаются как "Name:Weight,Name:Weight".
func (a *app) setConfig(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-config", flag.ContinueOnError)
	subjectName := fs.String("subject", "", "composite subject name")
	level := fs.String("level", "", "education level")
	componentsArg := fs.String("components", "", "components, e.g. Grammar:0.6,Composition:0.4")
	if err := fs.Parse(args); err != nil {
		return err
	}

	components, err := parseComponents(*componentsArg)
	if err != nil {
		return err
	}

	err = a.setConfigHandler.Handle(ctx, command.SetCompositeConfigCommand{
		SubjectName:    *subjectName,
		EducationLevel: *level,
		Components:     components,
		IsComposite:    true,
	})
	if err != nil {
		return err
	}
	fmt.Println("config saved")
	return nil
}

// toggle переключает составную оценку предмета.
func (a *app) toggle(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("toggle", flag.ContinueOnError)
	subjectName := fs.String("subject", "", "subject name")
	level := fs.String("level", "", "education level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := a.toggleHandler.Handle(ctx, command.ToggleCompositeCommand{
		SubjectName:    *subjectName,
		EducationLevel: *level,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// warmupScopes возвращает скоупы ежедневного прогрева: по одному на
// уровень образования. Прогрев по термам требует справочника активных
// термов; пока уровень - достаточная гранулярность.
func warmupScopes() []marks.Filter {
	return []marks.Filter{
		{EducationLevel: shared.LevelLowerPrimary},
		{EducationLevel: shared.LevelUpperPrimary},
		{EducationLevel: shared.LevelJuniorSecondary},
		{EducationLevel: shared.LevelSeniorSecondary},
	}
}

// parseComponents разбирает "Name:Weight,Name:Weight".
func parseComponents(s string) ([]command.ComponentInput, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("components are required")
	}

	parts := strings.Split(s, ",")
	components := make([]command.ComponentInput, 0, len(parts))
	for _, part := range parts {
		nameWeight := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(nameWeight) != 2 {
			return nil, fmt.Errorf("invalid component %q, expected Name:Weight", part)
		}
		var weight float64
		if _, err := fmt.Sscanf(nameWeight[1], "%f", &weight); err != nil {
			return nil, fmt.Errorf("invalid weight in %q: %w", part, err)
		}
		components = append(components, command.ComponentInput{
			Name:   nameWeight[0],
			Weight: weight,
		})
	}
	return components, nil
}

// splitList разбирает список через запятую, отбрасывая пустые элементы.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// printJSON печатает результат в stdout.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
