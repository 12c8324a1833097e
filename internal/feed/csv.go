// Package feed supplies campaign contacts in a fixed order.
package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// reloadSettle coalesces the burst of events a single save produces.
const reloadSettle = 250 * time.Millisecond

// ErrNoContacts is returned by Reload when a previously loaded file now parses
// to no contacts, as it does mid-write after a truncate.
var ErrNoContacts = errors.New("contacts file has no contacts")

// CSVFeed reads contacts from a CSV file with a header row. Rows with a blank
// handle are skipped, so positions are stable for identical file contents.
type CSVFeed struct {
	path         string
	handleColumn string
	nameColumn   string

	mu       sync.RWMutex
	contacts []models.Contact
}

// NewCSVFeed loads path once. handleColumn is required; nameColumn may be
// missing from the file.
func NewCSVFeed(path, handleColumn, nameColumn string) (*CSVFeed, error) {
	f := &CSVFeed{path: path, handleColumn: handleColumn, nameColumn: nameColumn}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Next returns the contact at position, or false once the feed is exhausted.
func (f *CSVFeed) Next(ctx context.Context, position int) (models.Contact, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Contact{}, false, err
	}
	if position < 0 {
		return models.Contact{}, false, fmt.Errorf("negative feed position %d", position)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if position >= len(f.contacts) {
		return models.Contact{}, false, nil
	}
	return f.contacts[position], true, nil
}

// Len returns the number of usable contacts.
func (f *CSVFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.contacts)
}

// Reload re-reads the file. On error the previous contents are kept, and a
// file that empties out after a successful load is treated as an error.
func (f *CSVFeed) Reload() error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open contacts file: %w", err)
	}
	defer file.Close()

	contacts, err := parse(file, f.handleColumn, f.nameColumn)
	if err != nil {
		return fmt.Errorf("parse contacts file %s: %w", f.path, err)
	}

	f.mu.Lock()
	if len(contacts) == 0 && len(f.contacts) > 0 {
		f.mu.Unlock()
		return fmt.Errorf("reload %s: %w", f.path, ErrNoContacts)
	}
	f.contacts = contacts
	f.mu.Unlock()
	log.Info().Str("path", f.path).Int("contacts", len(contacts)).Msg("contact feed loaded")
	return nil
}

func parse(r io.Reader, handleColumn, nameColumn string) ([]models.Contact, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	handleIdx, nameIdx := -1, -1
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		switch {
		case strings.EqualFold(col, handleColumn):
			handleIdx = i
		case nameColumn != "" && strings.EqualFold(col, nameColumn):
			nameIdx = i
		}
	}
	if handleIdx < 0 {
		return nil, fmt.Errorf("column %q not found", handleColumn)
	}

	var contacts []models.Contact
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if handleIdx >= len(record) {
			continue
		}
		handle := strings.TrimSpace(record[handleIdx])
		if handle == "" {
			continue
		}
		c := models.Contact{Handle: handle}
		if nameIdx >= 0 && nameIdx < len(record) {
			c.DisplayName = strings.TrimSpace(record[nameIdx])
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

// Watch reloads the feed whenever the file is written or replaced, until ctx
// is done. The parent directory is watched so editors that swap the file in
// place are picked up too. Events are coalesced until the file has been quiet
// for reloadSettle.
func (f *CSVFeed) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(f.path)

	settle := time.NewTimer(reloadSettle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			settle.Reset(reloadSettle)
		case <-settle.C:
			if err := f.Reload(); err != nil {
				log.Warn().Err(err).Str("path", f.path).Msg("contact feed reload failed, keeping previous contents")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("contact feed watcher error")
		}
	}
}
