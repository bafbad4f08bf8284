package curation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"PadaOne/internal/domain"
	"PadaOne/internal/ports"
)

const (
	flagExt   = ".sql"
	lockShard = 64
)

// FileStore keeps one flag file per curated PMID under <root>/<outcome>/<pmid>.sql.
// Files are created exclusively and never rewritten. Marks for one PMID are
// serialised within the process so both outcomes cannot be flagged at once.
type FileStore struct {
	root  string
	locks [lockShard]sync.Mutex
}

var _ ports.CurationStore = (*FileStore)(nil)

// NewFileStore creates the outcome directories below root when missing.
func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("curation root is empty")
	}
	for _, outcome := range domain.Outcomes {
		if err := os.MkdirAll(filepath.Join(root, string(outcome)), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", outcome, err)
		}
	}
	return &FileStore{root: root}, nil
}

// Dirs returns the outcome directories, positive first.
func (s *FileStore) Dirs() []string {
	dirs := make([]string, 0, len(domain.Outcomes))
	for _, outcome := range domain.Outcomes {
		dirs = append(dirs, filepath.Join(s.root, string(outcome)))
	}
	return dirs
}

// Mark records the outcome for pmid. created is false when the same flag already existed.
func (s *FileStore) Mark(ctx context.Context, pmid int64, outcome domain.Outcome) (domain.CurationStatus, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.CurationStatus{}, false, err
	}

	mu := s.lockFor(pmid)
	mu.Lock()
	defer mu.Unlock()

	if _, err := os.Stat(s.path(pmid, outcome.Opposite())); err == nil {
		return domain.CurationStatus{}, false, fmt.Errorf("pmid %d already curated %s: %w", pmid, outcome.Opposite(), domain.ErrConflict)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return domain.CurationStatus{}, false, fmt.Errorf("stat flag: %w", err)
	}

	path := s.path(pmid, outcome)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		status, statErr := s.statusFrom(pmid, outcome)
		return status, false, statErr
	}
	if err != nil {
		return domain.CurationStatus{}, false, fmt.Errorf("create flag: %w", err)
	}

	if _, err := f.WriteString(Snippet(pmid, outcome)); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return domain.CurationStatus{}, false, fmt.Errorf("write flag: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.CurationStatus{}, false, fmt.Errorf("close flag: %w", err)
	}

	status, err := s.statusFrom(pmid, outcome)
	return status, err == nil, err
}

func (s *FileStore) lockFor(pmid int64) *sync.Mutex {
	i := pmid % lockShard
	if i < 0 {
		i = -i
	}
	return &s.locks[i]
}

// Status derives the curation state from flag presence.
func (s *FileStore) Status(ctx context.Context, pmid int64) (domain.CurationStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.CurationStatus{}, err
	}

	for _, outcome := range domain.Outcomes {
		status, err := s.statusFrom(pmid, outcome)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return status, err
	}
	return domain.CurationStatus{PMID: pmid}, nil
}

// List returns every flag for the outcome ordered by PMID. Foreign files are ignored.
func (s *FileStore) List(ctx context.Context, outcome domain.Outcome) ([]domain.CurationStatus, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, string(outcome)))
	if err != nil {
		return nil, fmt.Errorf("read %s flags: %w", outcome, err)
	}

	statuses := make([]domain.CurationStatus, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		pmid, ok := ParseFlagName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		statuses = append(statuses, domain.CurationStatus{PMID: pmid, Outcome: outcome, CuratedAt: info.ModTime().UTC()})
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].PMID < statuses[j].PMID })
	return statuses, nil
}

func (s *FileStore) statusFrom(pmid int64, outcome domain.Outcome) (domain.CurationStatus, error) {
	info, err := os.Stat(s.path(pmid, outcome))
	if err != nil {
		return domain.CurationStatus{}, err
	}
	return domain.CurationStatus{PMID: pmid, Outcome: outcome, CuratedAt: info.ModTime().UTC()}, nil
}

func (s *FileStore) path(pmid int64, outcome domain.Outcome) string {
	return filepath.Join(s.root, string(outcome), strconv.FormatInt(pmid, 10)+flagExt)
}

// ParseFlagName extracts the PMID from "<digits>.sql".
func ParseFlagName(name string) (int64, bool) {
	base, ok := strings.CutSuffix(name, flagExt)
	if !ok || base == "" {
		return 0, false
	}
	for _, r := range base {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	pmid, err := strconv.ParseInt(base, 10, 64)
	if err != nil || pmid <= 0 {
		return 0, false
	}
	return pmid, true
}

// Snippet is the SQL statement stored in a flag file.
func Snippet(pmid int64, outcome domain.Outcome) string {
	return fmt.Sprintf("INSERT INTO curation (pmid, outcome) VALUES (%d, '%s') ON CONFLICT (pmid) DO UPDATE SET outcome = EXCLUDED.outcome;\n", pmid, outcome)
}
