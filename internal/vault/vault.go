// Package vault materializes notes in the vault and reports a tagged outcome
// instead of an error for every creation attempt.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/checksum"
	"github.com/starford/almanac/internal/dateutil"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/state"
	"github.com/starford/almanac/internal/storage"
)

// Status is the closed set of results of a creation attempt.
type Status string

const (
	StatusCreated              Status = "created"
	StatusReplaced             Status = "replaced"
	StatusAlreadyExists        Status = "already_exists"
	StatusReplaceFailed        Status = "replace_failed"
	StatusCreateFailed         Status = "create_failed"
	StatusFolderCreationFailed Status = "folder_creation_failed"
)

// Written reports whether the note content was written by this attempt.
func (s Status) Written() bool {
	return s == StatusCreated || s == StatusReplaced
}

// Failed reports whether the attempt ended in an I/O failure.
func (s Status) Failed() bool {
	return s == StatusReplaceFailed || s == StatusCreateFailed || s == StatusFolderCreationFailed
}

// Outcome is the result of CreateOrReplaceNote.
type Outcome struct {
	Path   string `json:"path"`
	Status Status `json:"status"`
	Err    error  `json:"-"`
}

// Policy decides what happens when the target note already exists.
type Policy string

const (
	// ReplaceNever leaves existing notes untouched.
	ReplaceNever Policy = "never"
	// ReplaceAlways overwrites existing notes.
	ReplaceAlways Policy = "always"
	// ReplaceUnmodified overwrites a note only while its content is still
	// exactly what almanac last wrote there.
	ReplaceUnmodified Policy = "unmodified"
)

// PolicyFor maps a plain replace toggle to a policy.
func PolicyFor(replace bool) Policy {
	if replace {
		return ReplaceAlways
	}
	return ReplaceNever
}

// Fingerprints records checksums of generated notes.
type Fingerprints interface {
	Fingerprint(ctx context.Context, path string) (string, error)
	SetFingerprint(ctx context.Context, path, sum string) error
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithOpener sets the callback that focuses a note in the user's editor.
func WithOpener(fn func(path string)) Option {
	return func(a *Adapter) {
		a.open = fn
	}
}

// WithInfo seeds the file counters loaded at startup.
func WithInfo(info models.VaultInfo) Option {
	return func(a *Adapter) {
		a.info = info
	}
}

// Adapter wraps a storage.Provider with note-level semantics.
type Adapter struct {
	store  storage.Provider
	prints Fingerprints
	saver  state.Saver
	open   func(path string)
	logger *slog.Logger

	mu   sync.Mutex
	info models.VaultInfo
}

// New creates an Adapter. prints and saver may be nil.
func New(store storage.Provider, prints Fingerprints, saver state.Saver, logger *slog.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		store:  store,
		prints: prints,
		saver:  saver,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NormalizeFolder strips leading separators and guarantees a trailing one.
// The vault root ("/" or "") becomes the empty prefix.
func NormalizeFolder(folder string) string {
	folder = strings.TrimLeft(strings.TrimSpace(folder), "/")
	if folder == "" {
		return ""
	}
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	return folder
}

// JoinPath appends a file name to a folder using the normalization rules.
func JoinPath(folder, name string) string {
	return NormalizeFolder(folder) + strings.TrimLeft(name, "/")
}

// TimelySubdir is an optional dated subfolder level.
type TimelySubdir struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Format follows dateutil.Format, so fixed text needs escaping.
	Format string `yaml:"format" json:"format"`
}

// FolderPath walks base then every enabled subdir in order, formatting each
// subdir name for t. A base of "/" yields paths such as "/Year - 24/Month - Mar".
func FolderPath(base string, subdirs []TimelySubdir, t time.Time) string {
	dir := strings.TrimRight(base, "/")
	for _, sd := range subdirs {
		if !sd.Enabled || sd.Format == "" {
			continue
		}
		dir += "/" + dateutil.Format(sd.Format, t)
	}
	if dir == "" {
		return "/"
	}
	return dir
}

// EnsureFolder creates folder if needed. An existing folder is not an error.
func (a *Adapter) EnsureFolder(_ context.Context, folder string) error {
	folder = strings.TrimSuffix(NormalizeFolder(folder), "/")
	if folder == "" {
		return nil
	}
	if err := a.store.MkdirAll(folder); err != nil {
		return fmt.Errorf("vault: ensure folder %s: %w", folder, err)
	}
	return nil
}

// Exists reports whether a note is present at path.
func (a *Adapter) Exists(_ context.Context, path string) (bool, error) {
	return a.store.Exists(strings.TrimLeft(path, "/"))
}

// CreateOrReplaceNote writes name inside folder, creating the folder first.
// Existing notes are handled according to policy. Failures are reported in
// the Outcome and never as a returned error.
func (a *Adapter) CreateOrReplaceNote(ctx context.Context, folder, name, content string, policy Policy) Outcome {
	path := JoinPath(folder, name)

	if err := a.EnsureFolder(ctx, folder); err != nil {
		return Outcome{Path: path, Status: StatusFolderCreationFailed, Err: err}
	}

	exists, err := a.store.Exists(path)
	if err != nil {
		return Outcome{Path: path, Status: StatusCreateFailed, Err: err}
	}

	data := []byte(content)
	if !exists {
		if err := a.store.Create(path, data); err != nil {
			if errors.Is(err, apperr.ErrAlreadyExists) {
				return Outcome{Path: path, Status: StatusAlreadyExists}
			}
			return Outcome{Path: path, Status: StatusCreateFailed, Err: err}
		}
		a.remember(ctx, path, data)
		a.count(ctx, StatusCreated)
		return Outcome{Path: path, Status: StatusCreated}
	}

	replace, err := a.mayReplace(ctx, path, policy)
	if err != nil {
		return Outcome{Path: path, Status: StatusReplaceFailed, Err: err}
	}
	if !replace {
		return Outcome{Path: path, Status: StatusAlreadyExists}
	}
	if err := a.store.Write(path, data); err != nil {
		return Outcome{Path: path, Status: StatusReplaceFailed, Err: err}
	}
	a.remember(ctx, path, data)
	a.count(ctx, StatusReplaced)
	return Outcome{Path: path, Status: StatusReplaced}
}

func (a *Adapter) mayReplace(ctx context.Context, path string, policy Policy) (bool, error) {
	switch policy {
	case ReplaceAlways:
		return true, nil
	case ReplaceUnmodified:
		if a.prints == nil {
			return false, nil
		}
		want, err := a.prints.Fingerprint(ctx, path)
		if err != nil {
			return false, err
		}
		if want == "" {
			return false, nil
		}
		current, err := a.store.Read(path)
		if err != nil {
			return false, err
		}
		return checksum.Sum(current) == want, nil
	default:
		return false, nil
	}
}

func (a *Adapter) remember(ctx context.Context, path string, data []byte) {
	if a.prints == nil {
		return
	}
	if err := a.prints.SetFingerprint(ctx, path, checksum.Sum(data)); err != nil {
		a.logger.Warn("vault: record fingerprint failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

func (a *Adapter) count(ctx context.Context, status Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	info, err := state.Modify(ctx, a.saver, state.SectionVault, a.info, func(i *models.VaultInfo) error {
		switch status {
		case StatusCreated:
			i.FilesCreated++
		case StatusReplaced:
			i.FilesReplaced++
		}
		return nil
	})
	if err != nil {
		a.logger.Warn("vault: save info failed", slog.String("error", err.Error()))
		return
	}
	a.info = info
}

// Info returns the file counters.
func (a *Adapter) Info() models.VaultInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info
}

// ReadNote returns the content at path or apperr.ErrNotFound.
func (a *Adapter) ReadNote(_ context.Context, path string) (string, error) {
	data, err := a.store.Read(strings.TrimLeft(path, "/"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("vault: read %s: %w", path, apperr.ErrNotFound)
		}
		return "", err
	}
	return string(data), nil
}

// ModifyNote replaces the content of an existing note.
func (a *Adapter) ModifyNote(ctx context.Context, path, content string) error {
	path = strings.TrimLeft(path, "/")
	exists, err := a.store.Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("vault: modify %s: %w", path, apperr.ErrNotFound)
	}
	return a.store.Write(path, []byte(content))
}

// OpenNote asks the editor to focus path. Without an opener it does nothing.
func (a *Adapter) OpenNote(path string) {
	if a.open != nil {
		a.open(strings.TrimLeft(path, "/"))
	}
}
