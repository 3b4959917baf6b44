package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileSource reads the catalog from the JSON file the upload job writes
// (guides_map.json). It also supports push notification via fsnotify so the
// catalog picks up a rewrite within seconds instead of waiting for the next
// periodic reload.
type FileSource struct {
	path string
}

// NewFileSource returns a Source backed by a guides-map JSON file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) String() string { return "file:" + f.path }

// fileEntry is the on-disk JSON shape per guide key. The upload job writes
// RFC 3339 expiry timestamps; absent expiry means the handle does not expire.
type fileEntry struct {
	DisplayName string `json:"display_name"`
	FileURI     string `json:"file_uri"`
	MimeType    string `json:"mime_type"`
	ExpiresAt   string `json:"expires_at"`
}

// Load reads and parses the guides-map file into catalog entries.
func (f *FileSource) Load(_ context.Context) (map[string]Entry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var raw map[string]fileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	entries := make(map[string]Entry, len(raw))
	for key, fe := range raw {
		entry := Entry{
			GuideKey:    key,
			DisplayName: fe.DisplayName,
			FileURI:     fe.FileURI,
			MimeType:    fe.MimeType,
		}
		if entry.MimeType == "" {
			entry.MimeType = "application/pdf"
		}
		if fe.ExpiresAt != "" {
			expiry, err := time.Parse(time.RFC3339, fe.ExpiresAt)
			if err != nil {
				return nil, fmt.Errorf("entry %q: bad expires_at %q: %w", key, fe.ExpiresAt, err)
			}
			entry.ExpiresAt = expiry
		}
		entries[key] = entry
	}
	return entries, nil
}

// Watch blocks until ctx is done, invoking onChange whenever the guides-map
// file is written or recreated. The parent directory is watched rather than
// the file itself because the upload job replaces the file atomically
// (write-to-temp + rename), which unregisters a direct file watch.
func (f *FileSource) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("fsnotify: %w", err)
		}
	}
}
