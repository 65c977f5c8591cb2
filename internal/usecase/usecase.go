// Package usecase implements the shortcode store: the component that owns
// shortened URLs, enforces short code uniqueness and expiry, and records a
// click for every redirect.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const (
	defaultMaxRetries = 10
	// maxValidity bounds the validity so that ExpiresAt cannot overflow.
	maxValidity = 10 * 365 * 24 * 60

	urlTag       = "required,http_url"
	shortCodeTag = "alphanum,max=64"
)

// snapshotRepository persists the full set of URLs.
//
// SaveAll must not retain or modify urls after it returns.
type snapshotRepository interface {
	LoadAll(ctx context.Context) (map[string]*entity.URL, error)
	SaveAll(ctx context.Context, urls map[string]*entity.URL) error
}

// codeGenerator produces candidate short codes.
type codeGenerator interface {
	Generate() (string, error)
}

// GeneratorFunc adapts a function to the code generator contract.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Generate() (string, error) { return f() }

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Option configures a ShortcodeStore.
type Option func(*ShortcodeStore)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *ShortcodeStore) {
		s.clock = c
	}
}

// WithLogger sets the logger used to report persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *ShortcodeStore) {
		s.logger = l
	}
}

// WithMaxRetries sets how many generated codes are tried before giving up.
func WithMaxRetries(n int) Option {
	return func(s *ShortcodeStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithExpiredReuse controls whether the short code of an expired URL may be
// given to a new URL. When disabled, short codes are never reused.
func WithExpiredReuse(allow bool) Option {
	return func(s *ShortcodeStore) {
		s.reuseExpired = allow
	}
}

// ShortcodeStore owns the mapping from short code to URL.
//
// Every read-modify-write sequence, including the call to SaveAll, runs
// under mu, so operations on a short code are linearizable and the in-memory
// state never runs ahead of the last successful save except for clicks whose
// save failed.
type ShortcodeStore struct {
	mu   sync.RWMutex
	urls map[string]*entity.URL

	repo     snapshotRepository
	gen      codeGenerator
	clock    Clock
	logger   *slog.Logger
	validate *validator.Validate

	maxRetries   int
	reuseExpired bool
}

// New loads the stored URLs from repo and returns a ready ShortcodeStore.
// It fails with entity.ErrStorageUnavailable if the URLs cannot be loaded.
func New(ctx context.Context, repo snapshotRepository, gen codeGenerator, opts ...Option) (*ShortcodeStore, error) {
	const op = "usecase.New"

	s := &ShortcodeStore{
		repo:       repo,
		gen:        gen,
		clock:      ClockFunc(time.Now),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		validate:   validator.New(),
		maxRetries: defaultMaxRetries,
	}

	for _, opt := range opts {
		opt(s)
	}

	urls, err := repo.LoadAll(ctx)
	if err != nil {
		if errors.Is(err, entity.ErrStorageUnavailable) {
			return nil, fmt.Errorf("%s: failed to load urls: %w", op, err)
		}
		return nil, fmt.Errorf("%s: failed to load urls: %w: %w", op, entity.ErrStorageUnavailable, err)
	}
	if urls == nil {
		urls = make(map[string]*entity.URL)
	}

	for code, url := range urls {
		url.ShortCode = code
	}
	s.urls = urls

	return s, nil
}

func (s *ShortcodeStore) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

// Create shortens params.OriginalURL.
//
// A requested short code that is in use fails with entity.ErrShortCodeTaken.
// Generated codes that collide are silently replaced by new ones.
// If the new URL cannot be saved it is discarded and the error wraps
// entity.ErrPersistenceFailed.
func (s *ShortcodeStore) Create(ctx context.Context, params entity.CreateParams) (*entity.URL, error) {
	const op = "usecase.ShortcodeStore.Create"

	if err := s.validate.Var(params.OriginalURL, urlTag); err != nil {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidURL)
	}

	validity := entity.DefaultValidity
	if params.Validity != nil {
		if *params.Validity <= 0 || *params.Validity > maxValidity {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidValidity)
		}
		validity = time.Duration(*params.Validity) * time.Minute
	}

	if params.ShortCode != "" {
		if err := s.validate.Var(params.ShortCode, shortCodeTag); err != nil {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidShortCode)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	code, err := s.pickCode(params.ShortCode, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	url := &entity.URL{
		ShortCode:   code,
		OriginalURL: params.OriginalURL,
		CreatedAt:   now,
		ExpiresAt:   now.Add(validity),
		Clicks:      []entity.Click{},
	}

	prev, replaced := s.urls[code]
	s.urls[code] = url

	if err := s.repo.SaveAll(ctx, s.urls); err != nil {
		if replaced {
			s.urls[code] = prev
		} else {
			delete(s.urls, code)
		}

		s.logger.Error("failed to save created url",
			slog.String("op", op),
			slog.String("short_code", code),
			slog.Any("err", err),
		)

		return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrPersistenceFailed, err)
	}

	return url.Clone(), nil
}

// pickCode returns a free short code. It must be called with mu held.
func (s *ShortcodeStore) pickCode(requested string, now time.Time) (string, error) {
	if requested != "" {
		if s.taken(requested, now) {
			return "", entity.ErrShortCodeTaken
		}
		return requested, nil
	}

	for range s.maxRetries {
		code, err := s.gen.Generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}

		if err := s.validate.Var(code, shortCodeTag); err != nil {
			continue
		}
		if !s.taken(code, now) {
			return code, nil
		}
	}

	return "", entity.ErrGenerationExhausted
}

func (s *ShortcodeStore) taken(code string, now time.Time) bool {
	url, ok := s.urls[code]
	if !ok {
		return false
	}

	return !s.reuseExpired || url.IsLive(now)
}

// Resolve returns the original URL for shortCode and records a click with
// the given referrer. An empty referrer is recorded as entity.DirectReferrer.
//
// If the click cannot be saved it is still kept in memory, and Resolve
// returns the original URL together with an error wrapping
// entity.ErrPersistenceFailed.
func (s *ShortcodeStore) Resolve(ctx context.Context, shortCode, referrer string) (string, error) {
	const op = "usecase.ShortcodeStore.Resolve"

	if referrer == "" {
		referrer = entity.DirectReferrer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	url, ok := s.urls[shortCode]
	if !ok {
		return "", fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	now := s.now()
	if !url.IsLive(now) {
		return "", fmt.Errorf("%s: %w", op, entity.ErrURLExpired)
	}

	url.Clicks = append(url.Clicks, entity.Click{
		Timestamp: now,
		Referrer:  referrer,
	})

	if err := s.repo.SaveAll(ctx, s.urls); err != nil {
		s.logger.Error("failed to save click",
			slog.String("op", op),
			slog.String("short_code", shortCode),
			slog.Any("err", err),
		)

		return url.OriginalURL, fmt.Errorf("%s: %w: %w", op, entity.ErrPersistenceFailed, err)
	}

	return url.OriginalURL, nil
}

// Stats returns a copy of the URL stored under shortCode, expired or not.
func (s *ShortcodeStore) Stats(_ context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.ShortcodeStore.Stats"

	s.mu.RLock()
	defer s.mu.RUnlock()

	url, ok := s.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return url.Clone(), nil
}
