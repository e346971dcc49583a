package triggers

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed entities.yaml
var defaultEntities []byte

const (
	defaultRole       = "person"
	defaultDescriptor = "an organization"
)

var defaultConnectors = []string{"plays for", "playing for", "of", "from", "at", "with", "for"}

// Registry is the declarative table of sensitive entities and brands.
type Registry struct {
	Connectors []string `yaml:"connectors"`
	Entities   []Entity `yaml:"entities"`
	Brands     []Brand  `yaml:"brands"`
}

// Entity describes one restricted real-world identity.
type Entity struct {
	Key           string      `yaml:"key"`
	Exact         []string    `yaml:"exact"`
	ExactSeverity Severity    `yaml:"exact_severity"`
	Partial       string      `yaml:"partial"`
	Qualifiers    []Qualifier `yaml:"qualifiers"`
	Role          string      `yaml:"role"`
	Locale        string      `yaml:"locale"`
	Descriptor    string      `yaml:"descriptor"`
	Aliases       []string    `yaml:"aliases"`

	exact      *Matcher
	partial    *Matcher
	identifier *Matcher
}

// Qualifier is a term that, next to the partial identifier, reconstructs
// the identity (a team, a nationality, a title).
type Qualifier struct {
	Term       string   `yaml:"term"`
	Severity   Severity `yaml:"severity"`
	Descriptor string   `yaml:"descriptor"`

	bare   *Matcher
	phrase *Matcher
}

// Brand is a low-value commercial term retained for telemetry.
type Brand struct {
	Term       string   `yaml:"term"`
	Severity   Severity `yaml:"severity"`
	Descriptor string   `yaml:"descriptor"`

	matcher *Matcher
}

// UnmarshalYAML accepts either a bare term or a mapping.
func (q *Qualifier) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		q.Term = node.Value
		return nil
	}
	type plain Qualifier
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*q = Qualifier(decoded)
	return nil
}

var loadDefault = sync.OnceValues(func() (*Registry, error) {
	return ParseRegistry(defaultEntities)
})

// DefaultRegistry returns the embedded entity table.
func DefaultRegistry() (*Registry, error) {
	return loadDefault()
}

// LoadRegistry reads an entity table from path. An empty path or a missing
// file yields the embedded default.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultRegistry()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultRegistry()
		}
		return nil, fmt.Errorf("read entities file: %w", err)
	}
	registry, err := ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("parse entities file %s: %w", path, err)
	}
	return registry, nil
}

// ParseRegistry decodes, validates, and compiles a YAML entity table.
func ParseRegistry(data []byte) (*Registry, error) {
	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, err
	}
	if err := registry.compile(); err != nil {
		return nil, err
	}
	return &registry, nil
}

// Entity returns the entity registered under key.
func (r *Registry) Entity(key string) (*Entity, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Entities {
		if r.Entities[i].Key == key {
			return &r.Entities[i], true
		}
	}
	return nil, false
}

func (r *Registry) compile() error {
	if len(r.Connectors) == 0 {
		r.Connectors = append([]string(nil), defaultConnectors...)
	}
	seen := make(map[string]struct{}, len(r.Entities))
	for i := range r.Entities {
		entity := &r.Entities[i]
		entity.Key = strings.TrimSpace(entity.Key)
		if entity.Key == "" {
			return fmt.Errorf("entity %d: key is required", i)
		}
		if _, dup := seen[entity.Key]; dup {
			return fmt.Errorf("entity %q: duplicate key", entity.Key)
		}
		seen[entity.Key] = struct{}{}
		if err := entity.compile(r.Connectors); err != nil {
			return fmt.Errorf("entity %q: %w", entity.Key, err)
		}
	}
	for i := range r.Brands {
		brand := &r.Brands[i]
		brand.Term = strings.TrimSpace(brand.Term)
		if brand.Term == "" {
			return fmt.Errorf("brand %d: term is required", i)
		}
		if brand.Severity == SeverityUnknown {
			brand.Severity = SeverityLow
		}
		matcher, err := NewMatcher(nil, brand.Term)
		if err != nil {
			return fmt.Errorf("brand %q: %w", brand.Term, err)
		}
		brand.matcher = matcher
	}
	return nil
}

func (e *Entity) compile(connectors []string) error {
	e.Partial = strings.TrimSpace(e.Partial)
	exact := make([]string, 0, len(e.Exact))
	for _, name := range e.Exact {
		if name = strings.TrimSpace(name); name != "" {
			exact = append(exact, name)
		}
	}
	e.Exact = exact
	if len(e.Exact) == 0 && e.Partial == "" {
		return errors.New("exact or partial identifier is required")
	}
	if e.ExactSeverity == SeverityUnknown {
		e.ExactSeverity = SeverityCritical
	}
	if strings.TrimSpace(e.Role) == "" {
		e.Role = defaultRole
	}
	if strings.TrimSpace(e.Descriptor) == "" {
		e.Descriptor = defaultDescriptor
	}
	var err error
	if len(e.Exact) > 0 {
		if e.exact, err = NewMatcher(nil, e.Exact...); err != nil {
			return err
		}
	}
	if e.Partial != "" {
		if e.partial, err = NewMatcher(nil, e.Partial); err != nil {
			return err
		}
	}
	if e.identifier, err = NewMatcher(nil, append(append([]string(nil), e.Exact...), e.Partial)...); err != nil {
		return err
	}
	for i := range e.Qualifiers {
		q := &e.Qualifiers[i]
		q.Term = strings.TrimSpace(q.Term)
		if q.Term == "" {
			return fmt.Errorf("qualifier %d: term is required", i)
		}
		if q.Severity == SeverityUnknown {
			q.Severity = SeverityHigh
		}
		if strings.TrimSpace(q.Descriptor) == "" {
			q.Descriptor = e.Descriptor
		}
		if q.bare, err = NewMatcher(nil, q.Term); err != nil {
			return err
		}
		if q.phrase, err = NewMatcher(connectors, q.Term); err != nil {
			return err
		}
	}
	return nil
}

// ExactMatcher matches any full identifier; nil when none is registered.
func (e *Entity) ExactMatcher() *Matcher { return e.exact }

// PartialMatcher matches the partial identifier; nil when none is registered.
func (e *Entity) PartialMatcher() *Matcher { return e.partial }

// IdentifierMatcher matches any full or partial identifier.
func (e *Entity) IdentifierMatcher() *Matcher { return e.identifier }

// Matcher matches the qualifier term alone.
func (q *Qualifier) Matcher() *Matcher { return q.bare }

// PhraseMatcher matches the qualifier together with a leading connector
// ("plays for Team"), falling back to the bare term.
func (q *Qualifier) PhraseMatcher() *Matcher { return q.phrase }

// Matcher matches the brand term.
func (b *Brand) Matcher() *Matcher { return b.matcher }
