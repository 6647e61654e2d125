package main

import (
	"errors"
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/mact/ops-server/internal/config"
)

func main() {
	var (
		path = flag.String("path", "migrations", "migrations directory")
		down = flag.Bool("down", false, "roll back one migration instead of applying")
	)
	flag.Parse()

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database url is not configured (set DATABASE_URL or database.url)")
	}

	m, err := migrate.New("file://"+*path, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to create migrate instance: %v", err)
	}
	defer m.Close()

	if *down {
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Failed to roll back: %v", err)
		}
		log.Println("Rolled back one migration.")
		return
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("No database migrations to apply.")
	case err != nil:
		log.Fatalf("Failed to apply migrations: %v", err)
	default:
		log.Println("Database migrations applied successfully.")
	}
}
