package playlist

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/snapetech/sportlist/internal/catalog"
)

// WriteFile writes the playlist to path with a UTF-8 BOM. The file is replaced
// atomically, so a failed run leaves the previous playlist untouched.
func WriteFile(path string, entries []catalog.Entry, meta Meta) error {
	var buf bytes.Buffer
	buf.WriteString(BOM)
	if err := Encode(&buf, entries, meta); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes(), ".playlist-*.m3u.tmp")
}

// sidecar is the JSON document written next to the playlist.
type sidecar struct {
	Generated string          `json:"generated"`
	Count     int             `json:"count"`
	Entries   []catalog.Entry `json:"entries"`
}

// WriteJSON writes entries as a JSON document for tools that do not read M3U.
func WriteJSON(path string, entries []catalog.Entry, meta Meta) error {
	if len(entries) == 0 {
		return ErrNoEntries
	}
	doc := sidecar{Count: len(entries), Entries: entries}
	if !meta.Generated.IsZero() {
		doc.Generated = meta.Generated.UTC().Format(time.RFC3339)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("playlist json: %w", err)
	}
	return writeAtomic(path, append(data, '\n'), ".playlist-*.json.tmp")
}

func writeAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(filepath.Clean(path))
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("playlist save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("playlist save: write: %w", writeErr)
		}
		return fmt.Errorf("playlist save: close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("playlist save: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("playlist save: rename: %w", err)
	}
	return nil
}
