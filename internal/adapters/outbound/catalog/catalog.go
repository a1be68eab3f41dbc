package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/skillcoder/sandboxd/internal/logic/instance"
)

// Catalog resolves image templates from a JSON file loaded once at startup.
// The file is the source of truth for which sandbox images students may
// request; editing it requires a restart.
type Catalog struct {
	logger    *slog.Logger
	templates map[string]instance.Template
	order     []string
}

// Load reads and validates the template file.
func Load(logger *slog.Logger, path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template catalog %s: %w", path, err)
	}

	var templates []instance.Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parse template catalog %s: %w", path, err)
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("template catalog %s is empty", path)
	}

	byID := make(map[string]instance.Template, len(templates))
	order := make([]string, 0, len(templates))

	for _, template := range templates {
		if template.ID == "" || template.BaseImage == "" {
			return nil, fmt.Errorf("template catalog %s: entry missing id or baseImage", path)
		}

		if _, ok := byID[template.ID]; ok {
			return nil, fmt.Errorf("template catalog %s: duplicate id %s", path, template.ID)
		}

		byID[template.ID] = template
		order = append(order, template.ID)
	}

	logger.Info("template catalog loaded", "path", path, "templates", len(templates))

	return &Catalog{
		logger:    logger,
		templates: byID,
		order:     order,
	}, nil
}

var _ instance.Catalog = (*Catalog)(nil)

func (c *Catalog) ResolveTemplateQuery(
	_ context.Context,
	templateID string,
) (*instance.Template, error) {
	template, ok := c.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", templateID, errTemplateNotFound)
	}

	return &template, nil
}

// ListTemplatesQuery returns every template in file order.
func (c *Catalog) ListTemplatesQuery(_ context.Context) []instance.Template {
	out := make([]instance.Template, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.templates[id])
	}

	return out
}
