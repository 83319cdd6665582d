package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
)

// CSVStore persists the ledger as a local CSV file.
type CSVStore struct {
	Path string
}

func (s *CSVStore) Read(ctx context.Context) ([]domain.Record, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger %s: %w", s.Path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	if err := validateHeaders(header); err != nil {
		return nil, err
	}

	var records []domain.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger %s: %w", s.Path, err)
		}
		cells := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(row) {
				cells[h] = row[i]
			} else {
				cells[h] = "" // short rows are padded
			}
		}
		rec, err := recordFromRow(cells)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *CSVStore) Write(ctx context.Context, records []domain.Record) error {
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("create ledger %s: %w", s.Path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Headers); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(rowFromRecord(rec)); err != nil {
			return fmt.Errorf("write ledger row %s: %w", rec.ChannelID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger %s: %w", s.Path, err)
	}
	return f.Close()
}

// Backup copies the ledger aside before a run mutates it. A missing source
// file is not an error; any other failure is reported but callers treat the
// backup as best-effort.
func (s *CSVStore) Backup() (string, error) {
	src, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer src.Close()
	backupPath := s.Path + ".bak"
	dst, err := os.Create(backupPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return backupPath, dst.Close()
}
