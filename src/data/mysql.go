package data

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/gorm"
)

// GetMySQLDSN returns the MySQL DSN configured via environment.
func GetMySQLDSN() (string, error) {
	dsn := os.Getenv("MYSQL_DSN")
	if strings.TrimSpace(dsn) == "" {
		return "", fmt.Errorf("MYSQL_DSN is not set")
	}
	return dsn, nil
}

// MustMySQL connects and migrates, or exits.
func MustMySQL(dsn string) *gorm.DB {
	db, err := ConnectMySQL(dsn)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	if err := Migrate(db); err != nil {
		log.Fatalf("mysql: migrate: %v", err)
	}
	return db
}
