package repositories

import (
	"fmt"
	"github.com/glebarez/sqlite"
	"github.com/maxaizer/shiftmatch/internal/config"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"time"
)

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(cfg config.DBConfig) (*DbContext, error) {

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.ConnectionString)
	case config.DriverSqlite, "":
		dialector = sqlite.Open(cfg.ConnectionString)
	default:
		return nil, fmt.Errorf("unsupported db driver: %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log.StandardLogger(), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if db.Dialector.Name() == "sqlite" {
		// sqlite allows a single writer; one connection serializes transactions instead of failing with SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &DbContext{DB: db}, nil
}

var entities = []any{
	&models.Org{},
	&models.OrgMember{},
	&models.Candidate{},
	&models.AvailabilityBlock{},
	&models.Listing{},
	&models.SavedListing{},
	&models.DismissedListing{},
	&models.Application{},
	&models.Swipe{},
	&models.Match{},
	&models.Offer{},
	&models.BorrowRequest{},
	&models.BorrowOffer{},
	&models.CircleLink{},
	&models.Circle{},
	&models.CircleMember{},
	&models.Booking{},
	&models.TelegramLink{},
}

// partial unique indexes that gorm tags can not express; both sqlite and postgres accept this syntax.
var partialIndexes = []string{
	"CREATE UNIQUE INDEX IF NOT EXISTS ux_offers_active_subject ON offers (org_id, candidate_id, subject_key) " +
		"WHERE status IN ('sent', 'accepted')",
	"CREATE UNIQUE INDEX IF NOT EXISTS ux_borrow_offers_accepted ON borrow_offers (request_id) " +
		"WHERE status = 'accepted'",
	"CREATE UNIQUE INDEX IF NOT EXISTS ux_circle_links_active_pair ON circle_links (pair_key) " +
		"WHERE status IN ('pending', 'accepted')",
}

func (c *DbContext) Migrate() error {
	for _, entity := range entities {
		if err := c.DB.AutoMigrate(entity); err != nil {
			return fmt.Errorf("failed to migrate %T entity: %w", entity, err)
		}
	}

	for _, statement := range partialIndexes {
		if err := c.DB.Exec(statement).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
