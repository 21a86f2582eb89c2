package spec

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var (
	ErrMissingTags    = errors.New("operation has no tags")
	ErrInvalidPattern = errors.New("invalid path pattern")
)

// Mode decides what happens to an operation that declares no tags.
type Mode string

const (
	ModeStrict  Mode = "strict"  // fail the run
	ModeLenient Mode = "lenient" // skip the operation
)

// BodyRequirement decides when a declared request body becomes a required argument.
type BodyRequirement string

const (
	BodyDeclared BodyRequirement = "declared" // the body's own required flag
	BodyPresence BodyRequirement = "presence" // any declared body
)

// Policy holds the knobs that change how operations are interpreted.
type Policy struct {
	Mode            Mode
	BodyRequirement BodyRequirement
}

func DefaultPolicy() Policy {
	return Policy{Mode: ModeStrict, BodyRequirement: BodyDeclared}
}

// BodyRequired applies the policy to a resolved request body.
func (p Policy) BodyRequired(rb *RequestBody) bool {
	if rb == nil {
		return false
	}
	if p.BodyRequirement == BodyPresence {
		return true
	}
	return rb.Required
}

// OperationError ties a failure to the operation it was raised for.
type OperationError struct {
	Method  HttpMethod
	Path    string
	Pointer string
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s: %v", strings.ToUpper(string(e.Method)), e.Path, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// OperationEntry is one operation found under a tag.
type OperationEntry struct {
	Path      string
	Operation *Operation
}

// OperationGroup holds one tag's operations bucketed by verb. Buckets are created on
// first use and keep path declaration order.
type OperationGroup struct {
	Tag     string
	buckets map[HttpMethod][]OperationEntry
}

// At returns the entries found at verb m.
func (g *OperationGroup) At(m HttpMethod) []OperationEntry { return g.buckets[m] }

// Entries returns every entry in verb order, then path order within a verb.
func (g *OperationGroup) Entries() []OperationEntry {
	var out []OperationEntry
	for _, m := range Methods {
		out = append(out, g.buckets[m]...)
	}
	return out
}

func (g *OperationGroup) Len() int {
	n := 0
	for _, b := range g.buckets {
		n += len(b)
	}
	return n
}

func (g *OperationGroup) add(m HttpMethod, e OperationEntry) {
	if g.buckets == nil {
		g.buckets = make(map[HttpMethod][]OperationEntry)
	}
	g.buckets[m] = append(g.buckets[m], e)
}

// OperationTable maps tags to their groups, in order of first appearance.
type OperationTable struct {
	tags   []string
	groups map[string]*OperationGroup
}

func (t *OperationTable) Tags() []string { return append([]string(nil), t.tags...) }

func (t *OperationTable) Group(tag string) (*OperationGroup, bool) {
	g, ok := t.groups[tag]
	return g, ok
}

// Groups returns every group in tag order.
func (t *OperationTable) Groups() []*OperationGroup {
	out := make([]*OperationGroup, 0, len(t.tags))
	for _, tag := range t.tags {
		out = append(out, t.groups[tag])
	}
	return out
}

func (t *OperationTable) Len() int { return len(t.tags) }

func (t *OperationTable) bucket(tag string) *OperationGroup {
	if t.groups == nil {
		t.groups = make(map[string]*OperationGroup)
	}
	g, ok := t.groups[tag]
	if !ok {
		g = &OperationGroup{Tag: tag}
		t.groups[tag] = g
		t.tags = append(t.tags, tag)
	}
	return g
}

// GroupOption configures which operations Group keeps.
type GroupOption func(*groupConfig)

type groupConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	pathRes     []*regexp.Regexp
	badPatterns []string
	logger      *slog.Logger
}

// WithIncludeTags keeps only the named tags. An operation tagged with an included
// and an excluded tag appears under the included one only.
func WithIncludeTags(tags []string) GroupOption {
	return func(c *groupConfig) {
		c.includeTags = addTags(c.includeTags, tags)
	}
}

// WithExcludeTags drops the named tags.
func WithExcludeTags(tags []string) GroupOption {
	return func(c *groupConfig) {
		c.excludeTags = addTags(c.excludeTags, tags)
	}
}

func addTags(set map[string]struct{}, tags []string) map[string]struct{} {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(tags))
		}
		set[t] = struct{}{}
	}
	return set
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) GroupOption {
	return func(c *groupConfig) {
		for _, m := range methods {
			if c.methods == nil {
				c.methods = make(map[HttpMethod]struct{}, len(methods))
			}
			c.methods[HttpMethod(strings.ToLower(string(m)))] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only operations whose path matches at least one regular
// expression. An invalid pattern makes Group fail with ErrInvalidPattern.
func WithPathPatterns(patterns []string) GroupOption {
	return func(c *groupConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				c.badPatterns = append(c.badPatterns, p)
				continue
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// WithGroupLogger receives a debug record for every skipped operation.
func WithGroupLogger(l *slog.Logger) GroupOption {
	return func(c *groupConfig) { c.logger = l }
}

func (c *groupConfig) allowPath(path string) bool {
	if len(c.pathRes) == 0 {
		return true
	}
	for _, re := range c.pathRes {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func (c *groupConfig) allowMethod(m HttpMethod) bool {
	if len(c.methods) == 0 {
		return true
	}
	_, ok := c.methods[m]
	return ok
}

func (c *groupConfig) allowTag(tag string) bool {
	if len(c.includeTags) > 0 {
		if _, ok := c.includeTags[tag]; !ok {
			return false
		}
	}
	_, blocked := c.excludeTags[tag]
	return !blocked
}

// Group partitions the document's operations by tag. Paths are walked in declared
// order and verbs in the fixed order of Methods; an operation with several tags
// lands in each tag's group at the same verb.
func Group(doc *Document, policy Policy, opts ...GroupOption) (*OperationTable, error) {
	cfg := &groupConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if len(cfg.badPatterns) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPattern, strings.Join(cfg.badPatterns, ", "))
	}
	table := &OperationTable{}
	if doc == nil {
		return table, nil
	}
	for _, item := range doc.Paths {
		if !cfg.allowPath(item.Path) {
			continue
		}
		for _, m := range Methods {
			op := item.Operations[m]
			if op == nil || !cfg.allowMethod(m) {
				continue
			}
			if len(op.Tags) == 0 {
				if policy.Mode == ModeLenient {
					cfg.logger.Debug("skipping untagged operation", "method", m, "path", item.Path)
					continue
				}
				return nil, &OperationError{Method: m, Path: item.Path, Pointer: op.Pointer, Err: ErrMissingTags}
			}
			for _, tag := range op.Tags {
				if !cfg.allowTag(tag) {
					continue
				}
				table.bucket(tag).add(m, OperationEntry{Path: item.Path, Operation: op})
			}
		}
	}
	return table, nil
}
