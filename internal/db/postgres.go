package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Postgres is a database that stores data in a Postgres database.
type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string

	orm
}

// NewPostgres creates a new Postgres database.
func NewPostgres(host, port, user, password, database string) (Database, error) {
	if host == "" || port == "" || user == "" || password == "" || database == "" {
		return nil, fmt.Errorf("'host', 'port', 'user', 'password' and 'database' are required")
	}
	return &Postgres{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		Database: database,
	}, nil
}

// Connect connects to the database.
func (p *Postgres) Connect() (err error) {
	p.db, err = gorm.Open(postgres.Open(fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Database, p.Password,
	)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect postgres database: %w", err)
	}
	return p.migrate()
}
