package db

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Word is one codeword in a named pack.
type Word struct {
	ID        uint      `gorm:"primaryKey"`
	Pack      string    `gorm:"size:64;not null;uniqueIndex:idx_words_pack_text"`
	Text      string    `gorm:"size:64;not null;uniqueIndex:idx_words_pack_text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// WordRecord is one row of a word pack CSV.
type WordRecord struct {
	Pack string
	Text string
}

// ReadWordRecords parses a CSV of pack,word rows. A single-column row is a
// word in defaultPack. A first row naming the columns is skipped.
func ReadWordRecords(r io.Reader, defaultPack string) ([]WordRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var records []WordRecord
	for i, row := range rows {
		if len(row) == 0 || (i == 0 && isHeaderRow(row)) {
			continue
		}
		pack, text := defaultPack, ""
		if len(row) >= 2 {
			pack = strings.TrimSpace(row[0])
			text = strings.TrimSpace(row[1])
		} else {
			text = strings.TrimSpace(row[0])
		}
		if pack == "" || text == "" {
			continue
		}
		records = append(records, WordRecord{Pack: pack, Text: strings.ToUpper(text)})
	}
	return records, nil
}

func isHeaderRow(row []string) bool {
	switch strings.ToLower(strings.TrimSpace(row[0])) {
	case "pack", "text", "word":
		return true
	}
	return false
}

// LoadWords inserts records into the words table, skipping words the pack
// already has, and returns how many rows were added.
func LoadWords(conn *gorm.DB, records []WordRecord) (int, error) {
	if conn == nil {
		return 0, errors.New("db connection is nil")
	}
	inserted := 0
	for _, record := range records {
		entry := Word{Pack: record.Pack, Text: record.Text}
		result := conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pack"}, {Name: "text"}},
			DoNothing: true,
		}).Create(&entry)
		if result.Error != nil {
			return inserted, fmt.Errorf("insert word %q: %w", record.Text, result.Error)
		}
		inserted += int(result.RowsAffected)
	}
	return inserted, nil
}

// PackWords returns every word in pack, ordered by text.
func PackWords(conn *gorm.DB, pack string) ([]string, error) {
	if conn == nil {
		return nil, errors.New("db connection is nil")
	}
	var words []string
	err := conn.Model(&Word{}).Where("pack = ?", pack).Order("text").Pluck("text", &words).Error
	if err != nil {
		return nil, fmt.Errorf("load word pack %q: %w", pack, err)
	}
	return words, nil
}
