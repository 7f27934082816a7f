package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/enrollment-backend/internal/platform/envutil"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresName     string
	PostgresSSLMode  string

	SQLitePath string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Driver:           strings.ToLower(envutil.String("DB_DRIVER", DriverPostgres, log)),
		PostgresHost:     envutil.String("POSTGRES_HOST", "localhost", log),
		PostgresPort:     envutil.String("POSTGRES_PORT", "5432", log),
		PostgresUser:     envutil.String("POSTGRES_USER", "postgres", log),
		PostgresPassword: envutil.String("POSTGRES_PASSWORD", "", log),
		PostgresName:     envutil.String("POSTGRES_NAME", "enrollment", log),
		PostgresSSLMode:  envutil.String("POSTGRES_SSLMODE", "disable", log),
		SQLitePath:       envutil.String("SQLITE_PATH", "enrollment.db", log),
		MaxOpenConns:     envutil.Int("DB_MAX_OPEN_CONNS", 20, log),
		MaxIdleConns:     envutil.Int("DB_MAX_IDLE_CONNS", 5, log),
		ConnMaxLifetime:  envutil.Duration("DB_CONN_MAX_LIFETIME", 30*time.Minute, log),
	}
}

func (c Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case DriverPostgres, "":
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			c.PostgresUser,
			c.PostgresPassword,
			c.PostgresHost,
			c.PostgresPort,
			c.PostgresName,
			c.PostgresSSLMode,
		)
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(c.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", c.Driver)
	}
}

type Service struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

// Open connects to the configured store and migrates the enrollment schema.
func Open(cfg Config, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "DBService", "driver", cfg.Driver)

	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql pool: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// single writer connection for sqlite.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := AutoMigrateAll(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	serviceLog.Info("Database ready")
	return &Service{db: db, driver: cfg.Driver, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
