// Package storage writes transcripts to the notes directory and keeps a
// SQLite index of their metadata.
package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/trnscrb/trnscrb/internal/errors"
	"github.com/trnscrb/trnscrb/internal/transcript"
)

const (
	fileExt     = ".txt"
	maxNameLen  = 50
	stampLayout = "2006-01-02_15-04"
)

// Entry is a transcript file in the notes directory.
type Entry struct {
	ID       string    `json:"id" yaml:"id"`
	Path     string    `json:"path" yaml:"path"`
	Name     string    `json:"name" yaml:"name"`
	Size     int64     `json:"size" yaml:"size"`
	Modified time.Time `json:"modified" yaml:"modified"`
	Meta     *Record   `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Store persists transcripts as text files. The index is optional.
type Store struct {
	dir   string
	index *Index
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, index *Index) *Store {
	return &Store{dir: dir, index: index}
}

// Dir returns the notes directory.
func (s *Store) Dir() string { return s.dir }

// Index returns the metadata index, which may be nil.
func (s *Store) Index() *Index { return s.index }

// SafeName replaces spaces and slashes with dashes and truncates to 50
// characters.
func SafeName(name string) string {
	safe := strings.NewReplacer(" ", "-", "/", "-").Replace(name)
	if r := []rune(safe); len(r) > maxNameLen {
		safe = string(r[:maxNameLen])
	}
	return safe
}

// PathFor returns the file a transcript with this name and start is saved to.
func (s *Store) PathFor(name string, startedAt time.Time) string {
	return filepath.Join(s.dir, startedAt.Format(stampLayout)+"_"+SafeName(name)+fileExt)
}

// Save writes the document and indexes it. Index failures are logged only.
func (s *Store) Save(ctx context.Context, doc transcript.Document) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.PersistenceFailed, "create notes directory").
			WithMetadata("dir", s.dir)
	}
	path := s.PathFor(doc.Name, doc.StartedAt)
	if err := os.WriteFile(path, []byte(doc.Text), 0o644); err != nil {
		return "", apperrors.Wrap(err, apperrors.PersistenceFailed, "write transcript").
			WithMetadata("path", path)
	}

	if s.index != nil {
		rec := Record{
			ID:        idOf(path),
			Name:      doc.Name,
			Path:      path,
			StartedAt: doc.StartedAt,
			Duration:  doc.Duration,
			Segments:  len(doc.Segments),
			Speakers:  doc.Speakers,
		}
		if err := s.index.Put(ctx, rec); err != nil {
			slog.Warn("transcript saved but not indexed", "path", path, "error", err)
		}
	}
	return path, nil
}

// List returns transcript files, newest first by name.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.PersistenceFailed, "create notes directory")
	}
	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+fileExt))
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	meta := map[string]Record{}
	if s.index != nil {
		recs, err := s.index.List(ctx, 0)
		if err != nil {
			slog.Warn("transcript index unavailable", "error", err)
		}
		for _, r := range recs {
			meta[r.ID] = r
		}
	}

	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		e := Entry{
			ID:       idOf(p),
			Path:     p,
			Name:     filepath.Base(p),
			Size:     info.Size(),
			Modified: info.ModTime(),
		}
		if r, ok := meta[e.ID]; ok {
			e.Meta = &r
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Read returns the transcript text for id.
func (s *Store) Read(id string) (string, error) {
	path, err := s.pathOf(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", apperrors.Newf(apperrors.NotFound, "transcript %q not found", id)
	}
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "read transcript")
	}
	return string(data), nil
}

// Write replaces the text of an existing transcript.
func (s *Store) Write(id, text string) error {
	path, err := s.pathOf(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return apperrors.Newf(apperrors.NotFound, "transcript %q not found", id)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return apperrors.Wrap(err, apperrors.PersistenceFailed, "write transcript").WithMetadata("path", path)
	}
	return nil
}

// IDFromPath returns the transcript id of a saved file.
func IDFromPath(path string) string { return idOf(path) }

func (s *Store) pathOf(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", apperrors.Newf(apperrors.InvalidArgument, "invalid transcript id %q", id)
	}
	return filepath.Join(s.dir, id+fileExt), nil
}

func idOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), fileExt)
}

// MarkEnriched flags the indexed record of id. Without an index it does
// nothing.
func (s *Store) MarkEnriched(ctx context.Context, id string) error {
	if s.index == nil {
		return nil
	}
	return s.index.MarkEnriched(ctx, id)
}
