/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package computed

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/dchest/safefile"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/classicminidiy/ultralog/corelog"
)

var (
	ErrInvalidLibraryPath = errors.New("invalid computed-channel library path")
	ErrTemplateNotFound   = errors.New("computed-channel template not found")
	ErrDuplicateName      = errors.New("a template with this name already exists")
)

// currentSchemaVersion is the document schema version this build
// writes and reads without migration, per spec.md §6's library
// document schema.
const currentSchemaVersion = 1

type templateRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Formula     string `json:"formula"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
}

type document struct {
	Version   int              `json:"version"`
	Templates []templateRecord `json:"templates"`
}

// Library is the process-wide, persisted ordered list of
// FormulaTemplates described in spec.md §4.6. All mutating operations
// serialize under a writer guard; List hands out an immutable
// snapshot without blocking on the guard, per spec.md §5's single-
// writer/multi-reader discipline.
type Library struct {
	mtx  sync.Mutex
	path string
	perm os.FileMode
	log  *corelog.Logger

	snapshot atomic.Pointer[[]FormulaTemplate]
	loaded   bool
}

// Open prepares a Library backed by the document at path (typically
// hostcfg.Config.LibraryPath()). The document is not read until the
// first List/Add/Update/Remove call, per spec.md's
// "loaded on first access."
func Open(path string, log *corelog.Logger) (*Library, error) {
	if log == nil {
		log = corelog.Discard
	}
	if pth := filepath.Clean(path); pth == "." || pth == "" {
		return nil, ErrInvalidLibraryPath
	} else {
		path = pth
	}
	return &Library{path: path, perm: 0o600, log: log}, nil
}

func (l *Library) lockFilePath() string { return l.path + ".lock" }

// ensureLoaded reads the on-disk document into the in-memory snapshot
// exactly once, tolerating a missing file (an empty library) and a
// schema-version mismatch (best-effort migration with a warning).
// Callers must hold l.mtx.
func (l *Library) ensureLoaded() error {
	if l.loaded {
		return nil
	}
	fl := flock.New(l.lockFilePath())
	if err := fl.RLock(); err == nil {
		defer fl.RUnlock()
	}

	raw, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.loaded = true
			empty := []FormulaTemplate{}
			l.snapshot.Store(&empty)
			return nil
		}
		return err
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		l.log.Warn("computed-channel library document is corrupt, starting from an empty library", "path", l.path, "error", err.Error())
		l.loaded = true
		empty := []FormulaTemplate{}
		l.snapshot.Store(&empty)
		return nil
	}
	if doc.Version != currentSchemaVersion {
		l.log.Warn("computed-channel library schema version mismatch, migrating best-effort", "found", doc.Version, "want", currentSchemaVersion)
	}

	templates := make([]FormulaTemplate, 0, len(doc.Templates))
	for _, rec := range doc.Templates {
		t, err := NewTemplate(rec.ID, rec.Name, rec.Formula, rec.Unit, rec.Description)
		if err != nil {
			l.log.Warn("dropping unreadable computed-channel template", "name", rec.Name, "error", err.Error())
			continue
		}
		templates = append(templates, t)
	}
	l.loaded = true
	l.snapshot.Store(&templates)
	return nil
}

// persistLocked writes the full document atomically (temp file, fsync
// via safefile, rename) under a cross-process file lock, mirroring the
// teacher's State.Write but with goccy/go-json in place of gob so the
// on-disk document stays human-readable per spec.md §6. Callers must
// hold l.mtx.
func (l *Library) persistLocked(templates []FormulaTemplate) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return err
	}
	fl := flock.New(l.lockFilePath())
	if err := fl.Lock(); err == nil {
		defer fl.Unlock()
	}

	doc := document{Version: currentSchemaVersion, Templates: make([]templateRecord, len(templates))}
	for i, t := range templates {
		doc.Templates[i] = templateRecord{ID: t.ID, Name: t.Name, Formula: t.Formula, Unit: t.Unit, Description: t.Description}
	}

	fout, err := safefile.Create(l.path, l.perm)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(fout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		fout.File.Close()
		os.Remove(fout.Name())
		return err
	}
	if err := fout.Commit(); err != nil {
		fout.File.Close()
		os.Remove(fout.Name())
		return err
	}
	return nil
}

// List returns an immutable snapshot of every template currently in
// the library. Once the document has been loaded, List reads the
// published snapshot without taking the writer guard.
func (l *Library) List() ([]FormulaTemplate, error) {
	if p := l.snapshot.Load(); p != nil {
		out := make([]FormulaTemplate, len(*p))
		copy(out, *p)
		return out, nil
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.ensureLoaded(); err != nil {
		return nil, err
	}
	cur := *l.snapshot.Load()
	out := make([]FormulaTemplate, len(cur))
	copy(out, cur)
	return out, nil
}

// Add appends a new template, assigning it a fresh id if t.ID is
// empty, and persists the library. Returns the assigned id.
func (l *Library) Add(t FormulaTemplate) (string, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.ensureLoaded(); err != nil {
		return "", err
	}
	cur := *l.snapshot.Load()
	for _, existing := range cur {
		if existing.Name == t.Name {
			return "", ErrDuplicateName
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	next := append(append([]FormulaTemplate{}, cur...), t)
	if err := l.persistLocked(next); err != nil {
		return "", err
	}
	l.snapshot.Store(&next)
	return t.ID, nil
}

// Update replaces the template with the given id.
func (l *Library) Update(id string, t FormulaTemplate) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.ensureLoaded(); err != nil {
		return err
	}
	cur := *l.snapshot.Load()
	next := make([]FormulaTemplate, len(cur))
	copy(next, cur)
	found := false
	for i, existing := range next {
		if existing.ID == id {
			t.ID = id
			next[i] = t
			found = true
			break
		}
	}
	if !found {
		return ErrTemplateNotFound
	}
	if err := l.persistLocked(next); err != nil {
		return err
	}
	l.snapshot.Store(&next)
	return nil
}

// Remove deletes the template with the given id.
func (l *Library) Remove(id string) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.ensureLoaded(); err != nil {
		return err
	}
	cur := *l.snapshot.Load()
	next := make([]FormulaTemplate, 0, len(cur))
	found := false
	for _, existing := range cur {
		if existing.ID == id {
			found = true
			continue
		}
		next = append(next, existing)
	}
	if !found {
		return ErrTemplateNotFound
	}
	if err := l.persistLocked(next); err != nil {
		return err
	}
	l.snapshot.Store(&next)
	return nil
}
