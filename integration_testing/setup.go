package integration_testing

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/ibaifernandez/gymtracker/internal"
	"github.com/ibaifernandez/gymtracker/internal/config"

	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

const (
	serverPort = 9000
	serverHost = "localhost"
)

var serverEndpoint = fmt.Sprintf("http://%s:%d", serverHost, serverPort)

type Suite struct {
	DB         *sql.DB
	dockerPool *dockertest.Pool
	server     *internal.Server
	teardown   []func()
}

func newSuite(ctx context.Context) (_ *Suite) {
	var err error
	suite := &Suite{
		teardown: make([]func(), 0),
	}

	// uses a sensible default on windows (tcp/http) and linux/osx (socket)
	suite.dockerPool, err = dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not create new dockertest pool: %s", err)
	}

	// uses pool to try to connect to Docker
	if err = suite.dockerPool.Client.Ping(); err != nil {
		log.Fatalf("could not ping dockertest pool: %s", err)
	}

	redisPort, err := suite.redisSetup()
	if err != nil {
		suite.cleanup()
		log.Fatalf("failed to setup redis: %s", err.Error())
	}

	pgPort, err := suite.postgresSetup()
	if err != nil {
		suite.cleanup()
		log.Fatalf("failed to setup postgres: %s", err)
	}

	cfg := getTestConfig(redisPort, pgPort)
	suite.server, err = internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			VersionInfo:             "test-version-info",
			RedisPassword:           "",
			HoneycombTracingEnabled: false,
		},
	)
	if err != nil {
		suite.cleanup()
		log.Fatalf("new server: %s", err)
	}

	suite.server.Serve(cfg.Host, cfg.Port)

	return suite
}

func (s *Suite) cleanup() {
	if s.DB != nil {
		s.DB.Close()
	}
	for _, teardown := range s.teardown {
		teardown()
	}
	if s.server != nil {
		s.server.GracefulShutdown()
	}
}

func getTestConfig(redisPort, postgresPort string) *config.Config {
	return &config.Config{
		Environment:                  "test",
		Host:                         serverHost,
		Port:                         serverPort,
		LogToStdout:                  true,
		RedisHost:                    "localhost",
		RedisPort:                    redisPort,
		PostgresPort:                 postgresPort,
		PostgresHost:                 "localhost",
		PostgresDBName:               "gymtracker",
		PrometheusMetricsHost:        "localhost",
		PrometheusMetricsPort:        "9001",
		ImportRateLimitAllowedPerMin: 100,
	}
}

func (s *Suite) redisSetup() (string, error) {
	redisResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Name:       "redis",
		Tag:        "6.2",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		return "", fmt.Errorf("run redis: %s", err)
	}

	s.teardown = append(s.teardown, func() {
		redisResource.Close()
	})

	redisPort := redisResource.GetPort("6379/tcp")
	return redisPort, nil
}

func (s *Suite) postgresSetup() (string, error) {
	pgResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "12",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_HOST_AUTH_METHOD=trust",
			"POSTGRES_DB=gymtracker",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		return "", fmt.Errorf("dockerpool run postgres: %s", err)
	}

	s.teardown = append(s.teardown, func() {
		pgResource.Close()
	})

	pgPort := pgResource.GetPort("5432/tcp")
	dsn := fmt.Sprintf("postgres://postgres@localhost:%s/gymtracker?sslmode=disable", pgPort)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return "", fmt.Errorf("open db conn: %s", err)
	}
	s.DB = db

	res, err := db.Exec(initSQL)
	if err != nil {
		return "", fmt.Errorf("run init script: %s", err)
	}

	numRows, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("get rows affected: %s", err)
	}

	log.Printf("postgres setup result: %d\n", numRows)

	if db.Ping() != nil {
		return "", fmt.Errorf("ping db: %s", err)
	}

	return pgPort, nil
}

const initSQL = `
CREATE TABLE public.checkin_log
(
    log_date      VARCHAR PRIMARY KEY,
    sleep_hours   DOUBLE PRECISION,
    sleep_quality INTEGER,
    steps         INTEGER,
    weight_kg     DOUBLE PRECISION,
    waist_cm      DOUBLE PRECISION,
    hip_cm        DOUBLE PRECISION,
    alcohol_units INTEGER NOT NULL DEFAULT 0,
    creatine_yn   VARCHAR,
    photo_url     VARCHAR NOT NULL DEFAULT ''
);

ALTER TABLE public.checkin_log OWNER TO postgres;

CREATE TABLE public.workout_session
(
    session_id      SERIAL PRIMARY KEY,
    log_date        VARCHAR NOT NULL,
    session_order   INTEGER NOT NULL,
    session_done_yn VARCHAR,
    session_type    VARCHAR NOT NULL,
    class_done      VARCHAR NOT NULL DEFAULT '',
    rpe_session     INTEGER,
    notes           VARCHAR NOT NULL DEFAULT '',
    UNIQUE (log_date, session_order)
);

ALTER TABLE public.workout_session OWNER TO postgres;
CREATE INDEX ix_workout_session_log_date ON public.workout_session (log_date);

CREATE TABLE public.workout_exercise
(
    exercise_id   SERIAL PRIMARY KEY,
    session_id    INTEGER NOT NULL REFERENCES public.workout_session (session_id) ON DELETE CASCADE,
    exercise_name VARCHAR NOT NULL,
    set_order     INTEGER NOT NULL,
    weight_kg     DOUBLE PRECISION,
    reps          INTEGER,
    rpe           DOUBLE PRECISION,
    topset_text   VARCHAR NOT NULL DEFAULT ''
);

ALTER TABLE public.workout_exercise OWNER TO postgres;
CREATE INDEX ix_workout_exercise_session_id ON public.workout_exercise (session_id);

CREATE TABLE public.plan_day_diet
(
    log_date             VARCHAR PRIMARY KEY,
    calories_target_kcal DOUBLE PRECISION,
    protein_target_g     DOUBLE PRECISION,
    carbs_target_g       DOUBLE PRECISION,
    fat_target_g         DOUBLE PRECISION,
    breakfast            VARCHAR NOT NULL DEFAULT '',
    snack_1              VARCHAR NOT NULL DEFAULT '',
    lunch                VARCHAR NOT NULL DEFAULT '',
    snack_2              VARCHAR NOT NULL DEFAULT '',
    dinner               VARCHAR NOT NULL DEFAULT '',
    notes                VARCHAR NOT NULL DEFAULT '',
    source_tag           VARCHAR NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL
);

ALTER TABLE public.plan_day_diet OWNER TO postgres;

CREATE TABLE public.plan_day_workout_session
(
    log_date             VARCHAR NOT NULL,
    plan_session_id      VARCHAR NOT NULL,
    session_order        INTEGER NOT NULL,
    session_type         VARCHAR NOT NULL,
    warmup               VARCHAR NOT NULL DEFAULT '',
    class_sessions       VARCHAR NOT NULL DEFAULT '',
    cardio               VARCHAR NOT NULL DEFAULT '',
    mobility_cooldown    VARCHAR NOT NULL DEFAULT '',
    additional_exercises VARCHAR NOT NULL DEFAULT '',
    notes                VARCHAR NOT NULL DEFAULT '',
    source_tag           VARCHAR NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (log_date, plan_session_id)
);

ALTER TABLE public.plan_day_workout_session OWNER TO postgres;

CREATE TABLE public.plan_day_workout_exercise
(
    log_date                VARCHAR NOT NULL,
    plan_session_id         VARCHAR NOT NULL,
    exercise_order          INTEGER NOT NULL,
    exercise_name           VARCHAR NOT NULL,
    target_sets             INTEGER,
    target_reps_min         INTEGER,
    target_reps_max         INTEGER,
    target_weight_kg        DOUBLE PRECISION,
    target_rpe              DOUBLE PRECISION,
    intensity_target        VARCHAR NOT NULL DEFAULT '',
    progression_weight_rule VARCHAR NOT NULL DEFAULT '',
    progression_reps_rule   VARCHAR NOT NULL DEFAULT '',
    created_at              TIMESTAMPTZ NOT NULL,
    updated_at              TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (log_date, plan_session_id, exercise_order),
    FOREIGN KEY (log_date, plan_session_id)
        REFERENCES public.plan_day_workout_session (log_date, plan_session_id) ON DELETE CASCADE
);

ALTER TABLE public.plan_day_workout_exercise OWNER TO postgres;

CREATE TABLE public.plan_day_adherence
(
    log_date      VARCHAR PRIMARY KEY,
    diet_score    DOUBLE PRECISION,
    workout_score DOUBLE PRECISION,
    notes         VARCHAR NOT NULL DEFAULT '',
    updated_at    TIMESTAMPTZ NOT NULL
);

ALTER TABLE public.plan_day_adherence OWNER TO postgres;

CREATE TABLE public.supplement_catalog
(
    supplement_id SERIAL PRIMARY KEY,
    name          VARCHAR NOT NULL,
    doses_per_day INTEGER NOT NULL,
    active_yn     VARCHAR NOT NULL DEFAULT 'Y',
    notes         VARCHAR,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

ALTER TABLE public.supplement_catalog OWNER TO postgres;
CREATE UNIQUE INDEX ux_supplement_catalog_name ON public.supplement_catalog (lower(name));

CREATE TABLE public.supplement_daily_log
(
    log_date      VARCHAR NOT NULL,
    supplement_id INTEGER NOT NULL REFERENCES public.supplement_catalog (supplement_id) ON DELETE CASCADE,
    doses_taken   INTEGER NOT NULL DEFAULT 0,
    notes         VARCHAR NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (log_date, supplement_id)
);

ALTER TABLE public.supplement_daily_log OWNER TO postgres;
CREATE INDEX ix_supplement_daily_log_log_date ON public.supplement_daily_log (log_date);
`
