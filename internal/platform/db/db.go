package db

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fatflowers/streambox/internal/models"
	cfgpkg "github.com/fatflowers/streambox/pkg/config"
	gormzap "github.com/fatflowers/streambox/pkg/gormlog"
)

// IsPostgresDSN reports whether dsn selects the postgres driver. Anything
// else is treated as a sqlite path.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// Open connects with error translation on, so unique violations surface as
// gorm.ErrDuplicatedKey on both drivers.
func Open(dsn string, logger gormlogger.Interface) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger, TranslateError: true}
	if IsPostgresDSN(dsn) {
		return gorm.Open(postgres.Open(dsn), gcfg)
	}
	gdb, err := gorm.Open(sqlite.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}
	// sqlite has a single writer; one connection avoids SQLITE_BUSY between
	// concurrent transactions.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	db, err := Open(cfg.Database.DSN, gormzap.New(l))
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	l.Infow("connected to database", "dialect", db.Dialector.Name())
	return db, nil
}

var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Invoke(AutoMigrate),
	fx.Invoke(registerDBClose),
)

// liveSubscriptionIndex backs the at-most-one-live-subscription rule. The
// WHERE clause has a comma, which gorm index tags cannot express.
const liveSubscriptionIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_subscription_live_user ON subscription (user_id) WHERE status IN ('active', 'pending')`

// Migrate creates tables and indexes for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Plan{},
		&models.User{},
		&models.Subscription{},
		&models.SubscriptionLog{},
		&models.SubscriptionDailySnapshot{},
		&models.PaymentLog{},
	); err != nil {
		return err
	}
	return db.Exec(liveSubscriptionIndex).Error
}

// AutoMigrate runs GORM migrations on startup
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := Migrate(db); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	l.Infow("automigrate completed")
	return nil
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing database connection pool")
			return sqlDB.Close()
		},
	})
}
