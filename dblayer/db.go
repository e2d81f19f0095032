package dblayer

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

var ErrNotFound = errors.New("not found")

//go:embed init.sql
var initSQL string

// DB connection
var DB *sql.DB

func InitDB(dsn string) error {
	var err error
	DB, err = sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("Connection err: %s", err.Error())
	}

	if err := DB.Ping(); err != nil {
		return err
	}

	// Create tables if they don't exist
	return createTables()
}

// createTables creates all necessary database tables
func createTables() error {
	_, err := DB.Exec(initSQL)
	return err
}
