package database

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/edusuite/usafiri/core"
	"github.com/edusuite/usafiri/core/student"
	"github.com/edusuite/usafiri/core/transport"
	"github.com/edusuite/usafiri/core/user"
)

func Open(conf *core.Config) (*gorm.DB, error) {
	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		conf.Database.Host, conf.Database.Port, conf.Database.User,
		conf.Database.Password, conf.Database.Name, sslMode,
	)

	logLevel := gormlogger.Silent
	if conf.Database.LogQueries {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db); err != nil {
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "getting database handle")
	}

	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = sqlDB.Ping(); err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}
	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// Migrate brings the schema up to date with the registered models.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&user.User{},
		&student.Student{},
		&transport.Vehicle{},
		&transport.PickupPoint{},
		&transport.FeeStructure{},
		&transport.Route{},
		&transport.RouteStop{},
		&transport.VehicleAssignment{},
		&transport.Allocation{},
		&transport.StudentFeeRecord{},
	)
	return errors.Wrap(err, "migrating database")
}

// IsNotFound reports whether err is the driver's empty-result error.
func IsNotFound(err error) bool {
	return stderrors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a uniqueness-constraint violation.
func IsDuplicate(err error) bool {
	return stderrors.Is(err, gorm.ErrDuplicatedKey)
}

// IsFKViolation reports whether err is a foreign-key-constraint violation.
func IsFKViolation(err error) bool {
	return stderrors.Is(err, gorm.ErrForeignKeyViolated)
}
