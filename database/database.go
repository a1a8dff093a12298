package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"teamsched/config"
	"teamsched/logger"
	"teamsched/migrations"
	"teamsched/models"

	"github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database, applies the schema when
// AUTO_MIGRATE is set and seeds the administrator account.
func Open(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DatabaseDriver {
	case "postgres":
		db, err = OpenPostgres(cfg.DatabaseURL, cfg.AutoMigrate, log)
	case "sqlite":
		db, err = OpenSQLite(cfg.DatabaseURL, log)
	default:
		err = fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
	if err != nil {
		return nil, err
	}

	if err := SeedAdmin(db, cfg.AdminUsername, cfg.AdminPassword, log); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	return db, nil
}

func gormConfig(log zerolog.Logger) *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(
			logger.Printf{Log: log.With().Str("component", "gorm").Logger(), Level: zerolog.WarnLevel},
			gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func OpenPostgres(dsn string, runMigrations bool, log zerolog.Logger) (*gorm.DB, error) {
	if runMigrations {
		if err := Migrate(dsn, log); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	log.Info().Msg("Connected to postgres")
	return db, nil
}

// OpenSQLite opens a SQLite database and creates the schema with AutoMigrate.
// Writes are serialized through a single connection.
func OpenSQLite(path string, log zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Msg("Opened sqlite database")
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.WfhSchedule{},
		&models.OneOffWfhDay{},
		&models.OvertimeFiling{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// MigrationURL rewrites a postgres URL to the scheme of the pgx/v5 migrate driver.
func MigrationURL(dsn string) (string, error) {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix), nil
		}
	}
	if strings.HasPrefix(dsn, "pgx5://") {
		return dsn, nil
	}
	return "", fmt.Errorf("migrations need a postgres URL, got %q", dsn)
}

// NewMigrator builds a migrate instance over the embedded Postgres migrations.
func NewMigrator(dsn string, log zerolog.Logger) (*migrate.Migrate, error) {
	url, err := MigrationURL(dsn)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(migrations.Postgres, migrations.PostgresDir)
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("migration init failed: %w", err)
	}
	m.Log = logger.NewMigrateLogger(log, false)
	return m, nil
}

func Migrate(dsn string, log zerolog.Logger) error {
	m, err := NewMigrator(dsn, log)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migrate version: %w", err)
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Schema migrated")
	return nil
}

func SeedAdmin(db *gorm.DB, username, password string, log zerolog.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Username:     username,
		FullName:     "Administrator",
		PasswordHash: string(hashedPassword),
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Warn().Str("username", username).Msg("Default admin user created, change the password")
	return nil
}
