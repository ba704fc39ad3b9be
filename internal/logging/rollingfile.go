package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// rollPolicy bounds a rollingFile. Zero maxBytes means 10 MB; zero
// keep or maxAge disables that limit.
type rollPolicy struct {
	maxBytes int64
	keep     int
	maxAge   time.Duration
}

// rollingFile is an io.Writer over a log file that rolls on size
// overflow and on calendar day change. Archives sit next to the live
// file as <name>.<stamp>; prune enforces the retention policy on them.
//
// Safe for concurrent writers.
type rollingFile struct {
	path   string
	policy rollPolicy

	mu      sync.Mutex
	f       *os.File
	written int64
	opened  string // date the current file was opened, "2006-01-02"
}

func openRollingFile(path string, policy rollPolicy) (*rollingFile, error) {
	if policy.maxBytes <= 0 {
		policy.maxBytes = 10 * 1024 * 1024
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	r := &rollingFile{path: path, policy: policy}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

// open attaches to the live file, appending to leftovers from the
// previous run. Caller holds mu.
func (r *rollingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.f = f
	r.written = st.Size()
	r.opened = time.Now().Format(time.DateOnly)
	return nil
}

func (r *rollingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		// Closed or never opened; come back up transparently.
		if err := r.open(); err != nil {
			return 0, err
		}
	}

	overflow := r.written+int64(len(p)) > r.policy.maxBytes
	dayChanged := time.Now().Format(time.DateOnly) != r.opened
	if overflow || dayChanged {
		if err := r.roll(); err != nil {
			return 0, fmt.Errorf("roll log file: %w", err)
		}
	}

	n, err := r.f.Write(p)
	r.written += int64(n)
	return n, err
}

// roll archives the live file under a timestamped name and starts a
// fresh one. Caller holds mu.
func (r *rollingFile) roll() error {
	if r.f != nil {
		if err := r.f.Close(); err != nil {
			return err
		}
		r.f = nil
	}

	stamp := time.Now().Format("20060102-150405.000")
	archived := fmt.Sprintf("%s.%s", r.path, stamp)
	if err := os.Rename(r.path, archived); err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}
	r.prune()
	return nil
}

// prune applies the retention policy to the archives: newest keep
// survive, and nothing older than maxAge survives.
func (r *rollingFile) prune() {
	archives, err := filepath.Glob(r.path + ".*")
	if err != nil {
		return
	}

	type archive struct {
		path string
		mod  time.Time
	}
	found := make([]archive, 0, len(archives))
	for _, p := range archives {
		st, err := os.Stat(p)
		if err != nil {
			continue
		}
		found = append(found, archive{p, st.ModTime()})
	}
	// Newest first, so the survivors are a prefix.
	sort.Slice(found, func(i, j int) bool {
		return found[i].mod.After(found[j].mod)
	})

	var cutoff time.Time
	if r.policy.maxAge > 0 {
		cutoff = time.Now().Add(-r.policy.maxAge)
	}
	for i, a := range found {
		tooMany := r.policy.keep > 0 && i >= r.policy.keep
		tooOld := !cutoff.IsZero() && a.mod.Before(cutoff)
		if tooMany || tooOld {
			os.Remove(a.path)
		}
	}
}

func (r *rollingFile) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	return r.f.Sync()
}

func (r *rollingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
