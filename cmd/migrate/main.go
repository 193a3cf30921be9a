package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sin3107/matching-sub001/internal/logger"
)

// Applies schema migrations up or down against DB_URL. Only the database URL
// is read from the environment so the runner works before the rest of the
// stack is configured.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	zlog, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() {
		_ = zlog.Sync()
	}()

	dbUrl := os.Getenv("DB_URL")
	if dbUrl == "" {
		zlog.Fatal("DB_URL is required")
	}

	migrationsPath, err := findMigrationsDir()
	if err != nil {
		zlog.Fatal("Failed to locate migrations: " + err.Error())
	}

	m, err := migrate.New("file://"+migrationsPath, dbUrl)
	if err != nil {
		zlog.Fatal("Failed to init migrator: " + err.Error())
	}

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	switch direction {
	case "down":
		err = m.Down()
	case "up":
		err = m.Up()
	default:
		zlog.Fatal("Unknown direction: " + direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		zlog.Fatal("Migration failed: " + err.Error())
	}

	zlog.Info("Migrations applied",
		zap.String("direction", direction),
		zap.String("path", migrationsPath))
}

// findMigrationsDir walks up from the working directory, then tries next to
// the binary, so the runner works from the repo root, a package dir, or a
// deployed artifact.
func findMigrationsDir() (string, error) {
	candidates := make([]string, 0, 9)

	if cwd, err := os.Getwd(); err == nil {
		current := cwd
		for i := 0; i < 6; i++ {
			candidates = append(candidates, filepath.Join(current, "migrations"))
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			current = parent
		}
	}
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
			filepath.Join(exeDir, "..", "..", "migrations"),
		)
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}

	return "", fmt.Errorf("no migrations directory near the working directory or binary")
}
