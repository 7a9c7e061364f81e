package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/litlmike/anthropic-api-server/pkg/api"
)

// ModelTypeText is the only model type the gateway currently serves.
const ModelTypeText = "text"

// Model describes one catalog entry in the provider's wire shape.
type Model struct {
	// ID is the model identifier clients pass in message requests.
	ID string `json:"id" yaml:"id"`

	// Type is the model kind. Defaults to "text" when omitted from a
	// catalog file.
	Type string `json:"type" yaml:"type"`

	// DisplayName is the human-readable model name.
	DisplayName string `json:"display_name" yaml:"display_name"`

	// CreatedAt is the provider's model release timestamp.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// catalogFile is the on-disk YAML shape.
type catalogFile struct {
	Models []Model `yaml:"models"`
}

// builtin returns the shipped model set, ordered newest generation first.
func builtin() []Model {
	return []Model{
		{
			ID:          "claude-3-5-sonnet-20241022",
			Type:        ModelTypeText,
			DisplayName: "Claude 3.5 Sonnet",
			CreatedAt:   time.Date(2024, time.October, 22, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "claude-3-5-haiku-20241022",
			Type:        ModelTypeText,
			DisplayName: "Claude 3.5 Haiku",
			CreatedAt:   time.Date(2024, time.October, 22, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "claude-3-opus-20240229",
			Type:        ModelTypeText,
			DisplayName: "Claude 3 Opus",
			CreatedAt:   time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "claude-3-sonnet-20240229",
			Type:        ModelTypeText,
			DisplayName: "Claude 3 Sonnet",
			CreatedAt:   time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "claude-3-haiku-20240307",
			Type:        ModelTypeText,
			DisplayName: "Claude 3 Haiku",
			CreatedAt:   time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC),
		},
	}
}

// Catalog is a read-mostly model registry. The serving snapshot is replaced
// wholesale on reload; readers always see a complete, consistent set.
type Catalog struct {
	logger *slog.Logger

	mu     sync.RWMutex
	models []Model
	byID   map[string]Model
	source string
}

// New returns a catalog serving the built-in model set.
func New(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Catalog{logger: logger.With("component", "catalog")}
	c.swap(builtin())
	return c
}

// NewFromFile returns a catalog serving the models listed in the YAML file
// at path. The file replaces the built-in set entirely.
func NewFromFile(path string, logger *slog.Logger) (*Catalog, error) {
	c := New(logger)
	c.source = path
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns the catalog entries in their declared order.
func (c *Catalog) List() []Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Model, len(c.models))
	copy(out, c.models)
	return out
}

// Get returns the model with the given id.
func (c *Catalog) Get(id string) (Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.byID[id]
	if !ok {
		return Model{}, api.Errorf(api.KindNotFound, "model %s not found", id)
	}
	return m, nil
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

// Reload re-reads the catalog source file and swaps the serving snapshot.
// On any failure the current snapshot keeps serving.
func (c *Catalog) Reload() error {
	c.mu.RLock()
	source := c.source
	c.mu.RUnlock()

	if source == "" {
		return fmt.Errorf("catalog has no source file")
	}

	raw, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse catalog file %s: %w", source, err)
	}

	models, err := normalize(file.Models)
	if err != nil {
		return fmt.Errorf("catalog file %s: %w", source, err)
	}

	c.swap(models)
	c.logger.Info("model catalog loaded", "path", source, "models", len(models))
	return nil
}

// normalize validates entries and fills defaults.
func normalize(models []Model) ([]Model, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("no models defined")
	}

	seen := make(map[string]struct{}, len(models))
	out := make([]Model, 0, len(models))
	for i, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("model %d has no id", i)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", m.ID)
		}
		seen[m.ID] = struct{}{}

		if m.Type == "" {
			m.Type = ModelTypeText
		}
		if m.DisplayName == "" {
			m.DisplayName = m.ID
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *Catalog) swap(models []Model) {
	byID := make(map[string]Model, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}

	c.mu.Lock()
	c.models = models
	c.byID = byID
	c.mu.Unlock()
}
