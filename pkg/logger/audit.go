package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// defaultRetention mirrors the age based retention rotatelogs applies when no
// rotation count is configured.
const defaultRetention = 7 * 24 * time.Hour

// AuditEntry describes one log file written by a file sink.
type AuditEntry struct {
	Date int64  `json:"date"`
	Name string `json:"name"`
	Hash string `json:"hash"`
}

type auditKeep struct {
	Days   bool `json:"days"`
	Amount int  `json:"amount"`
}

type auditManifest struct {
	Keep     auditKeep    `json:"keep"`
	AuditLog string       `json:"auditLog"`
	Files    []AuditEntry `json:"files"`
	HashType string       `json:"hashType"`
}

// Audit maintains the JSON manifest of files written by one sink.
type Audit struct {
	mu   sync.Mutex
	path string
	keep int
}

// NewAudit creates an audit manifest stored at path. A keep of zero retains
// entries by age instead of by count.
func NewAudit(path string, keep int) *Audit {
	return &Audit{
		path: path,
		keep: keep,
	}
}

// Path returns the manifest location.
func (a *Audit) Path() string {
	return a.path
}

// Record adds file to the manifest and prunes entries beyond the retention.
// Recording a file that is already listed is a no-op.
func (a *Audit) Record(file string, at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	manifest, err := a.read()
	if err != nil {
		return err
	}

	for _, entry := range manifest.Files {
		if entry.Name == file {
			return nil
		}
	}

	manifest.Files = append(manifest.Files, AuditEntry{
		Date: at.UnixMilli(),
		Name: file,
		Hash: hashEntry(file, at),
	})

	manifest.Files = a.prune(manifest.Files, at)

	return a.write(manifest)
}

// Entries returns the files currently listed in the manifest.
func (a *Audit) Entries() ([]AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	manifest, err := a.read()
	if err != nil {
		return nil, err
	}

	return manifest.Files, nil
}

func (a *Audit) prune(files []AuditEntry, now time.Time) []AuditEntry {
	if a.keep > 0 {
		if len(files) > a.keep {
			files = files[len(files)-a.keep:]
		}

		return files
	}

	cutoff := now.Add(-defaultRetention).UnixMilli()
	kept := files[:0]

	for _, entry := range files {
		if entry.Date >= cutoff {
			kept = append(kept, entry)
		}
	}

	return kept
}

func (a *Audit) read() (*auditManifest, error) {
	manifest := &auditManifest{
		Keep:     a.keepPolicy(),
		AuditLog: a.path,
		Files:    make([]AuditEntry, 0, 8),
		HashType: "sha256",
	}

	data, err := os.ReadFile(a.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return manifest, nil
		}

		return nil, fmt.Errorf("reading audit manifest: %w", err)
	}

	if err := json.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("decoding audit manifest %s: %w", a.path, err)
	}

	manifest.Keep = a.keepPolicy()

	return manifest, nil
}

func (a *Audit) write(manifest *auditManifest) error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("creating audit directory: %w", err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding audit manifest: %w", err)
	}

	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // Log metadata is not sensitive.
		return fmt.Errorf("writing audit manifest: %w", err)
	}

	return os.Rename(tmp, a.path)
}

func (a *Audit) keepPolicy() auditKeep {
	if a.keep > 0 {
		return auditKeep{Days: false, Amount: a.keep}
	}

	return auditKeep{Days: true, Amount: int(defaultRetention / (24 * time.Hour))}
}

func hashEntry(file string, at time.Time) string {
	sum := sha256.Sum256([]byte(file + strconv.FormatInt(at.UnixMilli(), 10)))

	return hex.EncodeToString(sum[:])
}
