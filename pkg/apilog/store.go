package apilog

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getmockd/apidiag/pkg/kvstore"
	"github.com/getmockd/apidiag/pkg/logging"
	"github.com/getmockd/apidiag/pkg/redact"
)

// Defaults for a new Store.
const (
	DefaultMaxLogs      = 100
	DefaultMaxBodyBytes = 64 << 10
)

// Persistence keys.
const (
	KeyEnabled = "apidiag.enabled"
	KeyLogs    = "apidiag.logs"
)

// Store is the bounded, persisted capture log. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries []*Entry // newest first
	byID    map[string]*Entry
	enabled bool
	version uint64

	kv             kvstore.Store
	writer         *snapshotWriter
	maxLogs        int
	maxBodyBytes   int
	defaultEnabled bool
	redactor       *redact.Redactor
	log            *slog.Logger
	now            func() time.Time
	newID          func() string
}

// Option configures a Store.
type Option func(*Store)

// WithMaxLogs sets the maximum number of retained entries.
func WithMaxLogs(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxLogs = n
		}
	}
}

// WithMaxBodyBytes sets the size above which captured bodies are truncated
// (after redaction). Zero disables truncation.
func WithMaxBodyBytes(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithDefaultEnabled sets the enabled flag used when storage holds no flag yet.
func WithDefaultEnabled(enabled bool) Option {
	return func(s *Store) {
		s.defaultEnabled = enabled
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRedactor replaces the default redactor.
func WithRedactor(r *redact.Redactor) Option {
	return func(s *Store) {
		if r != nil {
			s.redactor = r
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the entry ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// New creates a Store mirrored to kv. A nil kv keeps everything in memory.
// The store starts disabled and empty; call Initialize to load saved state.
func New(kv kvstore.Store, opts ...Option) *Store {
	if kv == nil {
		kv = kvstore.NewMemory()
	}
	s := &Store{
		byID:         make(map[string]*Entry),
		kv:           kv,
		maxLogs:      DefaultMaxLogs,
		maxBodyBytes: DefaultMaxBodyBytes,
		redactor:     redact.Default(),
		log:          logging.Nop(),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "apilog")
	s.writer = newSnapshotWriter(kv, s.log)
	return s
}

// MaxLogs returns the retention bound.
func (s *Store) MaxLogs() int {
	return s.maxLogs
}

// Initialize loads the enabled flag and the entry list from storage. Any
// failure leaves the store disabled and empty; the failure is logged, never
// returned.
func (s *Store) Initialize(ctx context.Context) {
	enabled, entries, err := load(ctx, s.kv, s.defaultEnabled)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.log.Warn("failed to load api logs, starting empty", "error", err)
		enabled, entries = false, nil
	}

	s.enabled = enabled
	s.entries = s.entries[:0]
	s.byID = make(map[string]*Entry, len(entries))
	for _, e := range entries {
		if e == nil || e.ID == "" {
			continue
		}
		if _, dup := s.byID[e.ID]; dup {
			continue
		}
		if e.Attempts == nil {
			e.Attempts = []Attempt{}
		}
		s.entries = append(s.entries, e)
		s.byID[e.ID] = e
	}
	s.evictLocked()
	s.log.Debug("api logs loaded", "enabled", s.enabled, "count", len(s.entries))
}

// SetEnabled turns capture on or off. Existing entries are kept.
func (s *Store) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	s.persistLocked()
}

// IsEnabled reports whether capture is on.
func (s *Store) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Begin creates an entry for req and returns its id. When capture is
// disabled it returns ("", false) and records nothing.
func (s *Store) Begin(req Request, retryHint int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return "", false
	}
	if retryHint < 0 {
		retryHint = 0
	}

	e := &Entry{
		ID:        s.newID(),
		Timestamp: s.now(),
		Request:   s.sanitizeRequest(req),
		Attempts:  []Attempt{},
		Retries:   retryHint,
	}

	s.entries = append(s.entries, nil)
	copy(s.entries[1:], s.entries)
	s.entries[0] = e
	s.byID[e.ID] = e
	s.evictLocked()
	s.persistLocked()
	return e.ID, true
}

// AttemptOption configures RecordAttempt.
type AttemptOption func(*attemptOptions)

type attemptOptions struct {
	start time.Time
}

// WithAttemptStart measures the attempt from start instead of from the
// previous attempt's completion (or the entry creation for the first).
func WithAttemptStart(start time.Time) AttemptOption {
	return func(o *attemptOptions) {
		o.start = start
	}
}

// RecordAttempt appends an attempt to the entry. It is a no-op when capture
// is disabled, the id is unknown, or the entry is already finished.
//
// Without WithAttemptStart the duration is measured from a rolling cursor:
// the later of the entry creation and the previous attempt's completion.
// Callers that wait between attempts should pass the attempt start time.
func (s *Store) RecordAttempt(id string, attemptNumber int, outcome Outcome, opts ...AttemptOption) {
	var o attemptOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}
	e, ok := s.byID[id]
	if !ok {
		s.log.Debug("attempt for unknown entry ignored", "id", id)
		return
	}
	if e.Finished() {
		s.log.Debug("attempt for finished entry ignored", "id", id)
		return
	}

	now := s.now()
	start := e.Timestamp
	if n := len(e.Attempts); n > 0 {
		start = e.Attempts[n-1].Timestamp
	}
	if !o.start.IsZero() {
		start = o.start
	}

	next := len(e.Attempts) + 1
	if attemptNumber != next {
		s.log.Debug("attempt number out of sequence", "id", id, "got", attemptNumber, "using", next)
	}

	a := Attempt{
		AttemptNumber: next,
		Timestamp:     now,
		DurationMs:    millisSince(start, now),
	}
	a.Response, a.Error = s.sanitizeOutcome(outcome)
	e.Attempts = append(e.Attempts, a)
	s.persistLocked()
}

// Finish records the final outcome and total duration. It is a no-op when
// capture is disabled, the id is unknown, or the entry is already finished.
func (s *Store) Finish(id string, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}
	e, ok := s.byID[id]
	if !ok {
		s.log.Debug("finish for unknown entry ignored", "id", id)
		return
	}
	if e.Finished() {
		s.log.Debug("entry already finished", "id", id)
		return
	}

	d := millisSince(e.Timestamp, s.now())
	e.DurationMs = &d
	e.Response, e.Error = s.sanitizeOutcome(outcome)
	if n := len(e.Attempts); n > 0 {
		e.Retries = n - 1
	}
	s.persistLocked()
}

// Logs returns a deep copy of all entries, most recent first.
func (s *Store) Logs() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Get returns a deep copy of the entry with the given id.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return Entry{}, false
	}
	return e.Clone(), true
}

// Revision increases with every change to the enabled flag or the entries.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Count returns the number of entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries. The enabled flag is kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		s.entries[i] = nil
	}
	s.entries = s.entries[:0]
	s.byID = make(map[string]*Entry)
	s.persistLocked()
}

// Flush waits until the state as of this call has been written to storage
// and returns the error of that write, if any.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	v := s.version
	s.mu.RUnlock()
	return s.writer.flush(ctx, v)
}

// Close flushes pending state and stops the writer. The kvstore.Store is
// not closed; it belongs to the caller.
func (s *Store) Close(ctx context.Context) error {
	return s.writer.close(ctx)
}

// evictLocked drops entries beyond maxLogs from the tail.
func (s *Store) evictLocked() {
	for len(s.entries) > s.maxLogs {
		last := len(s.entries) - 1
		delete(s.byID, s.entries[last].ID)
		s.entries[last] = nil
		s.entries = s.entries[:last]
	}
}

// persistLocked hands the current state to the writer. Entries are copied
// by value: stored entries are only ever modified by appending attempts or
// setting fields, neither of which is visible through an earlier copy.
func (s *Store) persistLocked() {
	s.version++
	snap := snapshot{
		version: s.version,
		enabled: s.enabled,
		entries: make([]Entry, len(s.entries)),
	}
	for i, e := range s.entries {
		snap.entries[i] = *e
	}
	s.writer.enqueue(snap)
}

func (s *Store) sanitizeRequest(req Request) Request {
	headers := s.redactor.Headers(req.Headers)
	if headers == nil {
		headers = map[string]string{}
	}
	return Request{
		Method:  strings.ToUpper(strings.TrimSpace(req.Method)),
		URL:     req.URL,
		Headers: headers,
		Params:  cloneMap(req.Params),
		Body:    s.sanitizeBody(req.Body),
	}
}

func (s *Store) sanitizeOutcome(o Outcome) (*Response, *ErrorInfo) {
	resp, errInfo := o.normalize()
	s.sanitizeResponse(resp)
	if errInfo != nil {
		s.sanitizeResponse(errInfo.Response)
	}
	return resp, errInfo
}

// sanitizeResponse redacts r in place; r is always a private copy.
func (s *Store) sanitizeResponse(r *Response) {
	if r == nil {
		return
	}
	r.Headers = s.redactor.Headers(r.Headers)
	r.Data = s.sanitizeBody(r.Data)
}

func (s *Store) sanitizeBody(b Body) Body {
	if b.Kind() == BodyText && b.Len() > 0 && !redact.ParseJSON([]byte(b.String())) {
		s.log.Debug("body is not JSON, stored without field redaction", "bytes", b.Len())
	}
	return truncateBody(redactBody(s.redactor, b), s.maxBodyBytes)
}

func millisSince(start, now time.Time) int64 {
	d := now.Sub(start).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}

// Recorder is the capture API an HTTP client drives.
type Recorder interface {
	Begin(req Request, retryHint int) (string, bool)
	RecordAttempt(id string, attemptNumber int, outcome Outcome, opts ...AttemptOption)
	Finish(id string, outcome Outcome)
}

// Ensure Store implements Recorder.
var _ Recorder = (*Store)(nil)
