package lifecycle

import (
	"archive/zip"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/islabooks/isla/internal/domain"
)

// Settings is the settings.json snapshot inside an export archive.
type Settings struct {
	AppVersion  string            `json:"app_version"`
	ExportedAt  time.Time         `json:"exported_at"`
	Preferences map[string]string `json:"preferences"`
}

// Export writes the whole library to a zip archive: one JSONL stream per
// entity kind plus a settings snapshot. The archive is staged as a temp file
// and renamed into place on success; staging is removed unconditionally.
func (m *Manager) Export(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.paths.Export, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	outPath := filepath.Join(m.paths.Export, fmt.Sprintf("isla-export-%s.zip", time.Now().UTC().Format("20060102-150405")))
	tmpPath := outPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create export staging file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	zw := zip.NewWriter(f)

	streams := []struct {
		kind  domain.EntityType
		write func(context.Context, io.Writer) error
	}{
		{domain.EntityBook, writeStream(m.store.Books.List)},
		{domain.EntityChapter, writeStream(m.store.Chapters.List)},
		{domain.EntityLibraryItem, writeStream(m.store.LibraryItems.List)},
		{domain.EntityReadingProgress, writeStream(m.store.Progress.List)},
		{domain.EntityHighlight, writeStream(m.store.Highlights.List)},
		{domain.EntityAnnotation, writeStream(m.store.Annotations.List)},
	}
	for _, s := range streams {
		name := string(s.kind) + ".jsonl"
		w, err := zw.Create(name)
		if err != nil {
			return "", fmt.Errorf("create %s: %w", name, err)
		}
		if err := s.write(ctx, w); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}

	if err := m.writeSettings(zw); err != nil {
		return "", err
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize export archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync export archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export archive: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return "", fmt.Errorf("move export archive into place: %w", err)
	}

	m.logger.Info("exported library archive", "path", outPath)
	return outPath, nil
}

// writeStream adapts an entity iterator into a JSONL stream writer.
func writeStream[T any](list func(context.Context) iter.Seq2[*T, error]) func(context.Context, io.Writer) error {
	return func(ctx context.Context, w io.Writer) error {
		for entity, err := range list(ctx) {
			if err != nil {
				return err
			}
			if err := json.MarshalWrite(w, entity); err != nil {
				return err
			}
			if _, err := w.Write([]byte{'\n'}); err != nil {
				return err
			}
		}
		return nil
	}
}

func (m *Manager) writeSettings(zw *zip.Writer) error {
	prefs, err := m.store.ListPreferences()
	if err != nil {
		return fmt.Errorf("list preferences: %w", err)
	}

	w, err := zw.Create("settings.json")
	if err != nil {
		return fmt.Errorf("create settings.json: %w", err)
	}
	settings := Settings{
		AppVersion:  m.appVersion,
		ExportedAt:  time.Now().UTC(),
		Preferences: prefs,
	}
	if err := json.MarshalWrite(w, settings); err != nil {
		return fmt.Errorf("write settings.json: %w", err)
	}
	return nil
}
