// Package encoder holds the label encoders that translate categorical values
// into the integer indices the regressor was trained on.
//
// A Registry is loaded once at startup and shared by every request. Under the
// strict policy it is read-only. Under the permissive policy unseen labels are
// appended to the in-memory vocabulary behind a per-field lock; appended
// labels are not written back to the artifact.
package encoder

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

// Policy decides what happens to a value outside the trained vocabulary.
type Policy string

const (
	// Strict rejects unseen values with UnknownCategoryError.
	Strict Policy = "strict"
	// Permissive appends unseen values and assigns the next index.
	Permissive Policy = "permissive"
)

// ParsePolicy validates a policy name from configuration.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Strict:
		return Strict, nil
	case Permissive:
		return Permissive, nil
	default:
		return "", errors.NewConfigError("encoder", fmt.Sprintf("unknown policy %q", s), nil)
	}
}

// vocabulary is one field's ordered class list plus its reverse index.
type vocabulary struct {
	mu       sync.RWMutex
	classes  []string
	index    map[string]int
	appended []string
}

func newVocabulary(field string, classes []string) (*vocabulary, error) {
	v := &vocabulary{
		classes: append([]string(nil), classes...),
		index:   make(map[string]int, len(classes)),
	}
	for i, c := range classes {
		if _, dup := v.index[c]; dup {
			return nil, errors.NewConfigError("encoder", fmt.Sprintf("duplicate class %q in field %s", c, field), nil)
		}
		v.index[c] = i
	}
	return v, nil
}

// Registry maps categorical field names to their encoders.
type Registry struct {
	policy Policy
	vocab  map[string]*vocabulary
	log    zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report vocabulary extensions.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = logger
	}
}

// New builds a registry from field -> ordered classes.
func New(classes map[string][]string, policy Policy, opts ...Option) (*Registry, error) {
	if policy != Strict && policy != Permissive {
		return nil, errors.NewConfigError("encoder", fmt.Sprintf("unknown policy %q", policy), nil)
	}
	r := &Registry{
		policy: policy,
		vocab:  make(map[string]*vocabulary, len(classes)),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for field, list := range classes {
		v, err := newVocabulary(field, list)
		if err != nil {
			return nil, err
		}
		r.vocab[field] = v
	}
	return r, nil
}

// Load reads an encoder artifact: a JSON object of field -> class list.
func Load(rd io.Reader, policy Policy, opts ...Option) (*Registry, error) {
	var classes map[string][]string
	if err := json.NewDecoder(rd).Decode(&classes); err != nil {
		return nil, fmt.Errorf("decode encoder artifact: %w", err)
	}
	return New(classes, policy, opts...)
}

// LoadFile reads an encoder artifact from disk.
func LoadFile(path string, policy Policy, opts ...Option) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewModelNotFoundError("encoder artifact", path)
		}
		return nil, err
	}
	defer f.Close()
	return Load(f, policy, opts...)
}

// Policy returns the active unseen-label policy.
func (r *Registry) Policy() Policy {
	return r.policy
}

// Fields returns the registered field names, sorted.
func (r *Registry) Fields() []string {
	fields := make([]string, 0, len(r.vocab))
	for f := range r.vocab {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Has reports whether an encoder exists for field.
func (r *Registry) Has(field string) bool {
	_, ok := r.vocab[field]
	return ok
}

// ClassesFor returns a copy of the field's vocabulary in index order.
func (r *Registry) ClassesFor(field string) ([]string, error) {
	v, ok := r.vocab[field]
	if !ok {
		return nil, errors.NewUnknownFieldError(field)
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.classes...), nil
}

// Encode returns the index of value in the field's vocabulary.
func (r *Registry) Encode(field, value string) (int, error) {
	v, ok := r.vocab[field]
	if !ok {
		return 0, errors.NewUnknownFieldError(field)
	}

	v.mu.RLock()
	idx, found := v.index[value]
	v.mu.RUnlock()
	if found {
		return idx, nil
	}

	if r.policy != Permissive {
		return 0, errors.NewUnknownCategoryError(field, value)
	}
	return r.extend(field, v, value), nil
}

// extend appends value under the field's write lock. Membership is checked
// again because another request may have appended it since the read.
func (r *Registry) extend(field string, v *vocabulary, value string) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	if idx, ok := v.index[value]; ok {
		return idx
	}
	idx := len(v.classes)
	v.classes = append(v.classes, value)
	v.index[value] = idx
	v.appended = append(v.appended, value)

	r.log.Info().
		Str("field", field).
		Str("label", value).
		Int("index", idx).
		Msg("Extended encoder vocabulary")
	return idx
}

// Decode returns the class at index.
func (r *Registry) Decode(field string, index int) (string, error) {
	v, ok := r.vocab[field]
	if !ok {
		return "", errors.NewUnknownFieldError(field)
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if index < 0 || index >= len(v.classes) {
		return "", errors.NewUnknownCategoryError(field, fmt.Sprintf("#%d", index))
	}
	return v.classes[index], nil
}

// Extensions returns labels appended at runtime, per field. Fields without
// extensions are omitted.
func (r *Registry) Extensions() map[string][]string {
	out := make(map[string][]string)
	for field, v := range r.vocab {
		v.mu.RLock()
		if len(v.appended) > 0 {
			out[field] = append([]string(nil), v.appended...)
		}
		v.mu.RUnlock()
	}
	return out
}
