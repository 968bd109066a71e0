package db

import (
	"fmt"
	"log"
	"os"

	"school_library/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func ConnectDB() *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	if err := Migrate(conn); err != nil {
		log.Fatal("Failed to migrate models: ", err)
	}
	log.Println("Database connected")
	return conn
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Title{}, &models.TitleCopy{},
		&models.Student{}, &models.StaffMember{},
		&models.StudentLoan{}, &models.StaffLoan{},
	); err != nil {
		return err
	}

	// one open student loan per copy; staff history may hold legacy duplicates,
	// and the cross-ledger rule is enforced by the checkout lock
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_open_per_copy
	  ON %s (title_id, copy_code)
	  WHERE status = 'open';
	`, models.StudentLoanTable, models.StudentLoanTable)).Error; err != nil {
		return err
	}

	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_open_by_title
	  ON %s (title_id, opened_at DESC)
	  WHERE returned_at IS NULL;
	`, models.StaffLoanTable, models.StaffLoanTable)).Error; err != nil {
		return err
	}

	return nil
}
