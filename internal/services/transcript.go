package services

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// TranscriptWriter appends conversation turns to one text file per contact.
type TranscriptWriter struct {
	dir string
	mu  sync.Mutex
}

// NewTranscriptWriter creates dir if needed.
func NewTranscriptWriter(dir string) (*TranscriptWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &TranscriptWriter{dir: dir}, nil
}

// Append writes turns to the handle's transcript. Errors are logged only.
func (w *TranscriptWriter) Append(handle string, turns ...models.ChatMessage) {
	if w == nil || len(turns) == 0 {
		return
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n\n", roleLabel(t.Role), t.Content)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path(handle), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warn().Err(err).Str("handle", handle).Msg("open transcript")
		return
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		log.Warn().Err(err).Str("handle", handle).Msg("write transcript")
	}
}

// path escapes handle reversibly so distinct handles never share a file.
func (w *TranscriptWriter) path(handle string) string {
	return filepath.Join(w.dir, url.PathEscape(handle)+".txt")
}

func roleLabel(role string) string {
	if role == "" {
		return "Unknown"
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
