package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLConfig holds the connection parameters for the SQL store.
type MySQLConfig struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

// DSN builds the driver DSN.  parseTime/loc keep DATETIME columns as UTC
// time.Time, clientFoundRows makes UPDATE report matched rather than changed
// rows, and multiStatements lets migrations carry several statements.
func (c MySQLConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Pass
	cfg.Net = "tcp"
	cfg.Addr = c.Host + ":" + c.Port
	cfg.DBName = c.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	cfg.MultiStatements = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}
