package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError       ErrorCode = "InputError"
	NetworkError     ErrorCode = "NetworkError"
	ParseError       ErrorCode = "ParseError"
	ValidationError  ErrorCode = "ValidationError"
	UnsupportedError ErrorCode = "UnsupportedError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL, with :line:col when known
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

var (
	errNotAMapping    = errors.New("spec: document root is not a mapping")
	errUnknownVersion = errors.New("spec: missing or unknown version (expected 'openapi: 3.x')")
)

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// AllowFileRefs permits file-based external references. They are always allowed
	// when the root input is a local file.
	AllowFileRefs bool
	Logger        *slog.Logger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
		Logger:      slog.New(slog.DiscardHandler),
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option            { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option    { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithLogger(l *slog.Logger) Option {
	return func(s *Settings) {
		if l != nil {
			s.Logger = l
		}
	}
}

// Source is a loaded input document together with the key index of the bytes it was
// decoded from. The index restores the declaration order kin-openapi maps discard.
type Source struct {
	Doc      *openapi3.T
	Index    *KeyIndex
	Location string
}

// Load reads an OpenAPI 3.x document from a filesystem path or an http/https URL.
// Swagger 2.0 input is rejected with an UnsupportedError. file:// URLs are blocked.
func Load(ctx context.Context, input string, opts ...Option) (*Source, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}
	settings := newSettings(opts)

	u, uerr := url.Parse(input)
	if uerr == nil && u.Scheme != "" && u.Host != "" {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		raw, err := fetchWithRetry(ctx, input, settings)
		if err != nil {
			return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
		}
		return decode(raw, input, u, settings)
	}
	if uerr == nil && strings.EqualFold(u.Scheme, "file") {
		return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return decode(raw, abs, &url.URL{Path: filepath.ToSlash(abs)}, settings)
}

// LoadBytes decodes an in-memory document. location is only used in error messages.
func LoadBytes(data []byte, location string, opts ...Option) (*Source, error) {
	return decode(data, location, nil, newSettings(opts))
}

func newSettings(opts []Option) Settings {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	return settings
}

func decode(raw []byte, location string, base *url.URL, settings Settings) (*Source, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse spec: %v", err), Location: location, Cause: err}
	}
	version, err := detectSpecVersion(&root)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}
	if version == 2 {
		return nil, &SpecError{Code: UnsupportedError, Message: "spec: Swagger 2.0 documents are not supported, convert to OpenAPI 3.x first", Location: location}
	}
	if rewriteLegacyRequired(&root) {
		settings.Logger.Debug("rewrote property-level required flags", "location", location)
		if raw, err = yaml.Marshal(&root); err != nil {
			return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("re-encode spec: %v", err), Location: location, Cause: err}
		}
	}
	index := NewKeyIndex(&root)

	loader := newLoader(settings, base == nil || base.Scheme == "")
	var doc *openapi3.T
	if base != nil {
		doc, err = loader.LoadFromDataWithPath(raw, base)
	} else {
		doc, err = loader.LoadFromData(raw)
	}
	if err != nil {
		return nil, mapLoadErr(err, location, index)
	}
	return &Source{Doc: doc, Index: index, Location: location}, nil
}

func newLoader(settings Settings, rootIsFile bool) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	client := &http.Client{Timeout: settings.HTTPTimeout}
	allowFile := settings.AllowFileRefs || rootIsFile
	loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !allowFile {
				return nil, fmt.Errorf("blocked file ref: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(filepath.FromSlash(path))
		case "http", "https":
			resp, err := client.Get(uri.String())
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
			}
			return io.ReadAll(resp.Body)
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

func hasVersionPrefix(v, prefix string) bool {
	return strings.HasPrefix(strings.TrimSpace(v), prefix)
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := &http.Client{Timeout: settings.HTTPTimeout}
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		body, retry, err := fetchOnce(ctx, client, rawURL)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		settings.Logger.Debug("fetch failed, retrying", "url", rawURL, "attempt", i+1, "err", err)
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

// fetchOnce performs a single GET and reports whether a failure is transient.
func fetchOnce(ctx context.Context, client *http.Client, rawURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		return body, err != nil, err
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("transient http error %d", resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, false, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func mapLoadErr(err error, location string, index *KeyIndex) error {
	pointer := extractJSONPointer(err)
	code := ValidationError
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "parse") || strings.Contains(lower, "unmarshal") || strings.Contains(lower, "invalid character") {
		code = ParseError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: locate(location, pointer, index), JSONPointer: pointer, Cause: err}
}

// locate appends :line:col to location when pointer is known to the index.
func locate(location, pointer string, index *KeyIndex) string {
	if pointer == "" || index == nil {
		return location
	}
	if p, ok := index.Locate(pointer); ok {
		return location + ":" + p.String()
	}
	return location
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	var me openapi3.MultiError
	if errors.As(err, &me) && len(me) > 0 {
		return extractJSONPointer(me[0])
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return strings.TrimRight(m, ".,:;)")
	}
	return ""
}
