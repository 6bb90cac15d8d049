package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

var migrationName = regexp.MustCompile(`^[a-z0-9_]+$`)

func main() {
	name := flag.String("name", "", "migration name, e.g. add_game_results")
	dir := flag.String("dir", filepath.Join("db", "migrations"), "migrations directory")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !migrationName.MatchString(*name) {
		logger.Fatal().Str("name", *name).Msg("migration name must be lowercase snake_case")
	}

	upPath, downPath, err := createMigration(*dir, *name, time.Now().UTC())
	if err != nil {
		logger.Fatal().Err(err).Msg("create migration")
	}
	logger.Info().Str("up", upPath).Str("down", downPath).Msg("created migration")
}

func createMigration(dir, name string, now time.Time) (string, string, error) {
	base := fmt.Sprintf("%s_%s", now.Format("20060102150405"), name)
	upPath := filepath.Join(dir, base+".up.sql")
	downPath := filepath.Join(dir, base+".down.sql")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create migrations dir: %w", err)
	}
	if err := writeNew(upPath, "-- "+name+" up\n"); err != nil {
		return "", "", err
	}
	if err := writeNew(downPath, "-- "+name+" down\n"); err != nil {
		return "", "", err
	}
	return upPath, downPath, nil
}

func writeNew(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
