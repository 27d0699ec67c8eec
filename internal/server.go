package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ibaifernandez/gymtracker/internal/checkin"
	"github.com/ibaifernandez/gymtracker/internal/config"
	"github.com/ibaifernandez/gymtracker/internal/db"
	"github.com/ibaifernandez/gymtracker/internal/middleware"
	"github.com/ibaifernandez/gymtracker/internal/plan"
	"github.com/ibaifernandez/gymtracker/internal/summary"
	"github.com/ibaifernandez/gymtracker/internal/supplements"
	"github.com/ibaifernandez/gymtracker/internal/telemetry/metrics"
	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/internal/workout"
	"github.com/ibaifernandez/gymtracker/pkg"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(ctx context.Context, params NewServerParams) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("gymtracker", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "gymtracker-backend")
	if err != nil {
		return nil, err
	}

	return &Server{
		config:      params.Config,
		dbPool:      dbPool,
		versionInfo: params.VersionInfo,
		redisClient: rdb,

		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	importRateLimit := middleware.RateLimit(
		reqRateLimiter,
		"import",
		s.config.ImportRateLimitAllowedPerMin,
		s.metricsManager,
	)

	checkinRepo := checkin.NewRepo(s.dbPool)
	checkinHandler := checkin.NewHandler(
		checkinRepo,
		checkin.NewImporter(checkinRepo),
		s.metricsManager,
	)
	r.HandleFunc("/diet", checkinHandler.HandleUpsert).Methods("POST", "OPTIONS").Name("upsert-checkin")
	r.HandleFunc("/diet/{date}", checkinHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-checkin")
	r.Handle("/diet/import/preview", importRateLimit(http.HandlerFunc(checkinHandler.HandleImportPreview))).
		Methods("POST", "OPTIONS").Name("checkin-import-preview")
	r.Handle("/diet/import/apply", importRateLimit(http.HandlerFunc(checkinHandler.HandleImportApply))).
		Methods("POST", "OPTIONS").Name("checkin-import-apply")

	workoutRepo := workout.NewRepo(s.dbPool)
	workoutHandler := workout.NewHandler(workoutRepo)
	r.HandleFunc("/workout", workoutHandler.HandleSave).Methods("POST", "OPTIONS").Name("save-workout")
	r.HandleFunc("/workout/{sessionID}", workoutHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-workout")

	planRepo := plan.NewRepo(s.dbPool)
	planService := plan.NewService(planRepo, checkinRepo, workoutRepo)
	planHandler := plan.NewHandler(
		plan.NewImporter(planRepo),
		planService,
		planRepo,
		s.metricsManager,
	)
	r.Handle("/plan/import/diet", importRateLimit(http.HandlerFunc(planHandler.HandleImportDiet))).
		Methods("POST", "OPTIONS").Name("plan-import-diet")
	r.Handle("/plan/import/workout", importRateLimit(http.HandlerFunc(planHandler.HandleImportWorkout))).
		Methods("POST", "OPTIONS").Name("plan-import-workout")
	r.HandleFunc("/plan/day", planHandler.HandleDay).Methods("GET", "OPTIONS").Name("plan-day")
	r.HandleFunc("/plan/adherence", planHandler.HandleAdherenceUpsert).Methods("POST", "OPTIONS").Name("plan-adherence")
	r.HandleFunc("/plan/diet/{date}", planHandler.HandleDeleteDietDay).Methods("DELETE", "OPTIONS").Name("delete-plan-diet-day")
	r.HandleFunc("/plan/diet", planHandler.HandleFlushDiet).Methods("DELETE", "OPTIONS").Name("flush-plan-diet")
	r.HandleFunc("/plan/workout/{date}/{sessionID}", planHandler.HandleDeleteWorkoutSession).
		Methods("DELETE", "OPTIONS").Name("delete-plan-workout-session")
	r.HandleFunc("/plan/workout", planHandler.HandleFlushWorkout).Methods("DELETE", "OPTIONS").Name("flush-plan-workout")

	supplementsRepo := supplements.NewRepo(s.dbPool)
	supplementsHandler := supplements.NewHandler(supplementsRepo, supplements.NewService(supplementsRepo))
	r.HandleFunc("/supplements/config", supplementsHandler.HandleCatalogGet).Methods("GET", "OPTIONS").Name("supplements-catalog")
	r.HandleFunc("/supplements/config", supplementsHandler.HandleCatalogSave).Methods("POST", "OPTIONS").Name("save-supplement")
	r.HandleFunc("/supplements/config/{supplementID}", supplementsHandler.HandleCatalogDelete).
		Methods("DELETE", "OPTIONS").Name("delete-supplement")
	r.HandleFunc("/supplements/day", supplementsHandler.HandleDayGet).Methods("GET", "OPTIONS").Name("supplements-day")
	r.HandleFunc("/supplements/day", supplementsHandler.HandleDaySave).Methods("POST", "OPTIONS").Name("save-supplements-day")
	r.HandleFunc("/supplements/day/{date}", supplementsHandler.HandleDayDelete).
		Methods("DELETE", "OPTIONS").Name("delete-supplements-day")
	r.HandleFunc("/supplements/history", supplementsHandler.HandleHistory).Methods("GET", "OPTIONS").Name("supplements-history")

	summaryHandler := summary.NewHandler(
		summary.NewEngine(checkinRepo),
		checkinRepo,
		workout.NewService(workoutRepo),
		planService,
	)
	r.HandleFunc("/state", summaryHandler.HandleState).Methods("GET", "OPTIONS").Name("state")
	r.HandleFunc("/summary", summaryHandler.HandleSummary).Methods("GET", "OPTIONS").Name("summary")

	r.HandleFunc("/", s.handleHealth).Methods("GET", "OPTIONS").Name("health")
	r.HandleFunc("/version", s.handleVersion).Methods("GET", "OPTIONS").Name("version")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSONResponseOK(w, `{"ok":true}`)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	resp, _ := json.Marshal(struct {
		OK      bool   `json:"ok"`
		Version string `json:"version"`
	}{true, s.versionInfo})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
