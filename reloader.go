// reloader.go: Polling reload of layered configuration files
//
// A Reloader watches the files of one merge and rebuilds the merged
// configuration whenever any of them changes. Change detection polls
// os.Stat (modification time, size, existence) which works the same on every
// platform; stat results are cached for CacheTTL so several pollers over the
// same files do not multiply syscalls.
//
// Example Usage:
//   r, err := cascade.NewReloader(opts, []string{"config/defaults.yml", "config/app.yml"},
//       cascade.ReloaderConfig{PollInterval: 2 * time.Second},
//       func(event cascade.ReloadEvent) {
//           applyConfig(event.Config)
//       })
//   if err != nil {
//       log.Fatal(err)
//   }
//   r.Start()
//   defer r.Close()
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cascade

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// Error codes for the reloader lifecycle
const (
	ErrCodeReloaderRunning = "CASCADE_RELOADER_RUNNING"
	ErrCodeReloaderStopped = "CASCADE_RELOADER_STOPPED"
)

// ReloadEvent describes one rebuilt configuration.
type ReloadEvent struct {
	// Config is the merged configuration. It is shared with every consumer
	// of the event and must be treated as read-only.
	Config      map[string]any
	Fingerprint uint64
	Changed     []string // files whose state changed, in layer order
	ReloadedAt  time.Time
}

// ReloadCallback receives every rebuilt configuration whose content differs
// from the previous one.
type ReloadCallback func(event ReloadEvent)

// ReloaderConfig configures polling.
type ReloaderConfig struct {
	// Default: 5s
	PollInterval time.Duration `validate:"gte=0"`

	// CacheTTL bounds how long os.Stat results are reused.
	// Default: PollInterval / 2
	CacheTTL time.Duration `validate:"gte=0"`

	// Audit, when set, receives the decisions of every rebuild instead of a
	// logger opened from Options.Audit. The reloader never closes it.
	Audit *AuditLogger `validate:"-"`
}

func (c ReloaderConfig) withDefaults() ReloaderConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.CacheTTL <= 0 || c.CacheTTL > c.PollInterval {
		c.CacheTTL = c.PollInterval / 2
	}
	return c
}

// fileStat is the cached state of one watched file.
type fileStat struct {
	modTime  time.Time
	size     int64
	exists   bool
	cachedAt int64 // timecache nanoseconds
}

func (fs fileStat) isExpired(ttl time.Duration) bool {
	return timecache.CachedTimeNano()-fs.cachedAt > int64(ttl)
}

func (fs fileStat) differs(other fileStat) bool {
	return fs.exists != other.exists || fs.size != other.size || !fs.modTime.Equal(other.modTime)
}

// Reloader rebuilds a merged configuration when its source files change.
type Reloader struct {
	opts     Options
	config   ReloaderConfig
	files    []string
	callback ReloadCallback

	audit     *AuditLogger
	ownsAudit bool
	auditOnce sync.Once

	statCache atomic.Pointer[map[string]fileStat]
	current   atomic.Pointer[ReloadEvent]

	// rebuildMu serialises rebuilds and guards lastStats
	rebuildMu sync.Mutex
	lastStats []fileStat

	running   atomic.Bool
	stopped   atomic.Bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewReloader validates the files, merges them once and returns a reloader
// that is not polling yet. The initial merge must succeed; later failures
// keep the last good configuration and are reported through
// Options.ErrorHandler. A failed rebuild is retried only after the files
// change again.
func NewReloader(opts Options, files []string, config ReloaderConfig, callback ReloadCallback) (*Reloader, error) {
	if callback == nil {
		return nil, errors.New(ErrCodeInvalidOptions, "reload callback cannot be nil")
	}
	if len(files) == 0 {
		return nil, errors.New(ErrCodeInvalidOptions, "at least one configuration file is required")
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := optionsValidator().Struct(config); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidOptions, "invalid reloader configuration")
	}

	absFiles := make([]string, 0, len(files))
	for _, f := range files {
		abs, err := watchPath(f)
		if err != nil {
			return nil, err
		}
		absFiles = append(absFiles, abs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reloader{
		config:    config.withDefaults(),
		files:     absFiles,
		callback:  callback,
		lastStats: make([]fileStat, len(absFiles)),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	initialCache := make(map[string]fileStat)
	r.statCache.Store(&initialCache)

	// rebuilt sessions share one logger instead of opening their own
	switch {
	case config.Audit != nil:
		r.audit = config.Audit
	case opts.Audit.Enabled:
		logger, err := NewAuditLogger(opts.Audit)
		if err != nil {
			cancel()
			return nil, err
		}
		r.audit = logger
		r.ownsAudit = true
	}
	opts.Audit = AuditConfig{}
	r.opts = opts

	for i, path := range r.files {
		r.lastStats[i] = r.getStat(path)
	}
	if err := r.rebuild(r.Files()); err != nil {
		_ = r.closeAudit()
		cancel()
		return nil, err
	}
	return r, nil
}

// watchPath resolves path and rejects paths that cannot name a regular
// configuration file.
func watchPath(path string) (string, error) {
	if path == "" {
		return "", errors.New(ErrCodeInvalidOptions, "empty path not allowed")
	}
	if strings.ContainsRune(path, 0) {
		return "", errors.New(ErrCodeInvalidOptions, "null byte in path not allowed")
	}
	for _, char := range path {
		if char < 32 && char != '\t' {
			return "", errors.New(ErrCodeInvalidOptions, fmt.Sprintf("control character in path not allowed: %d", char))
		}
	}
	if len(path) > 4096 {
		return "", errors.New(ErrCodeInvalidOptions, fmt.Sprintf("path too long (max 4096 characters): %d", len(path)))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, ErrCodeInvalidOptions, fmt.Sprintf("invalid file path %q", path))
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return "", errors.New(ErrCodeInvalidOptions, fmt.Sprintf("%s is a directory", abs))
	}
	return abs, nil
}

// Files returns the watched files, absolute, in layer order.
func (r *Reloader) Files() []string {
	out := make([]string, len(r.files))
	copy(out, r.files)
	return out
}

// Current returns the last successfully merged configuration.
func (r *Reloader) Current() ReloadEvent {
	return *r.current.Load()
}

// Start begins polling in a background goroutine.
func (r *Reloader) Start() error {
	if r.stopped.Load() {
		return errors.New(ErrCodeReloaderStopped, "reloader has been stopped")
	}
	if !r.running.CompareAndSwap(false, true) {
		return errors.New(ErrCodeReloaderRunning, "reloader is already running")
	}
	go r.watchLoop()
	return nil
}

// Stop stops polling, waits for the loop to exit and closes the audit
// logger opened from Options.Audit. A stopped reloader cannot be restarted.
func (r *Reloader) Stop() error {
	if !r.running.CompareAndSwap(true, false) {
		return errors.New(ErrCodeReloaderStopped, "reloader is not running")
	}
	r.stopped.Store(true)
	r.cancel()
	close(r.stopCh)
	<-r.stoppedCh
	return r.closeAudit()
}

// IsRunning reports whether the polling loop is active.
func (r *Reloader) IsRunning() bool {
	return r.running.Load()
}

// Close stops the reloader if it is running. Safe to call more than once.
func (r *Reloader) Close() error {
	if r.running.Load() {
		return r.Stop()
	}
	r.stopped.Store(true)
	r.cancel()
	return r.closeAudit()
}

func (r *Reloader) closeAudit() error {
	var err error
	r.auditOnce.Do(func() {
		if r.ownsAudit {
			err = r.audit.Close()
		}
	})
	return err
}

// Reload merges the files now, regardless of their state. The event lists
// every file as changed.
func (r *Reloader) Reload() error {
	r.rebuildMu.Lock()
	defer r.rebuildMu.Unlock()
	for i, path := range r.files {
		r.lastStats[i] = r.statNow(path)
	}
	return r.rebuild(r.Files())
}

// Poll checks the files once and rebuilds when any changed.
func (r *Reloader) Poll() error {
	r.rebuildMu.Lock()
	defer r.rebuildMu.Unlock()

	var changed []string
	for i, path := range r.files {
		stat := r.getStat(path)
		if stat.differs(r.lastStats[i]) {
			changed = append(changed, path)
			r.lastStats[i] = stat
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return r.rebuild(changed)
}

// rebuild merges every file into a fresh session (caller must hold
// rebuildMu, except during construction).
func (r *Reloader) rebuild(changed []string) error {
	s, err := NewSession(r.opts)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if r.audit != nil {
		if err := s.UseAudit(r.audit); err != nil {
			return err
		}
	}
	if err := s.AddFiles(r.files...); err != nil {
		return err
	}

	event := &ReloadEvent{
		Config:      s.Config(),
		Fingerprint: s.Fingerprint(),
		Changed:     changed,
		ReloadedAt:  timecache.CachedTime(),
	}
	previous := r.current.Swap(event)
	if previous == nil || previous.Fingerprint == event.Fingerprint {
		return nil
	}

	r.audit.LogConfigReloaded(changed, len(event.Config))
	r.notify(*event)
	return nil
}

// notify runs the callback, turning a panic into an error for the handler.
func (r *Reloader) notify(event ReloadEvent) {
	defer func() {
		if p := recover(); p != nil {
			if r.opts.ErrorHandler != nil {
				r.opts.ErrorHandler(errors.New(ErrCodeInvalidOptions, fmt.Sprintf("reload callback panicked: %v", p)), "reload")
			}
		}
	}()
	r.callback(event)
}

func (r *Reloader) watchLoop() {
	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			_ = r.Poll() // failures reach Options.ErrorHandler
		}
	}
}

// getStat returns a cached stat younger than CacheTTL or stats the file.
func (r *Reloader) getStat(path string) fileStat {
	cache := *r.statCache.Load()
	if cached, ok := cache[path]; ok && !cached.isExpired(r.config.CacheTTL) {
		return cached
	}
	return r.statNow(path)
}

func (r *Reloader) statNow(path string) fileStat {
	stat := fileStat{cachedAt: timecache.CachedTimeNano()}
	if info, err := os.Stat(path); err == nil {
		stat.exists = true
		stat.modTime = info.ModTime()
		stat.size = info.Size()
	}
	r.updateCache(path, stat)
	return stat
}

// updateCache replaces the cache map copy-on-write.
func (r *Reloader) updateCache(path string, stat fileStat) {
	for {
		oldPtr := r.statCache.Load()
		newMap := make(map[string]fileStat, len(*oldPtr)+1)
		for k, v := range *oldPtr {
			newMap[k] = v
		}
		newMap[path] = stat
		if r.statCache.CompareAndSwap(oldPtr, &newMap) {
			return
		}
	}
}

// ClearCache drops all cached stat results.
func (r *Reloader) ClearCache() {
	empty := make(map[string]fileStat)
	r.statCache.Store(&empty)
}
