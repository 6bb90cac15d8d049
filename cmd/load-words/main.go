package main

import (
	"flag"
	"os"

	"github.com/codewords/codewords/internal/config"
	"github.com/codewords/codewords/internal/db"

	"github.com/rs/zerolog"
)

func main() {
	filePath := flag.String("file", "words.csv", "path to words csv")
	pack := flag.String("pack", "default", "pack for rows without a pack column")
	migrate := flag.Bool("migrate", false, "create missing tables before loading")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Warn().Err(err).Msg("failed to load .env")
	}
	cfg, err := config.Load(logger, "codewords", ".", "/etc/codewords")
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Database.URL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	conn, err := db.Open(cfg.Database.URL, db.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close(conn)

	if *migrate {
		if err := db.Migrate(conn); err != nil {
			logger.Fatal().Err(err).Msg("auto migrate failed")
		}
	}

	file, err := os.Open(*filePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open words file")
	}
	defer file.Close()

	records, err := db.ReadWordRecords(file, *pack)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read words")
	}
	inserted, err := db.LoadWords(conn, records)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load words")
	}
	logger.Info().Int("read", len(records)).Int("inserted", inserted).Msg("loaded words")
}
