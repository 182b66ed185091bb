package reminder

import (
	"fmt"

	"FriendReminder/internal/domain"
)

// Registry keeps a mapping from categories to their pipelines.
type Registry struct {
	pipelines map[domain.Category]Pipeline
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{pipelines: map[domain.Category]Pipeline{}}
}

// Register adds or replaces a pipeline.
func (r *Registry) Register(p Pipeline) {
	if r.pipelines == nil {
		r.pipelines = map[domain.Category]Pipeline{}
	}
	r.pipelines[p.Category()] = p
}

// Resolve returns the pipeline for a category or an error if it is absent.
func (r *Registry) Resolve(c domain.Category) (Pipeline, error) {
	if p, ok := r.pipelines[c]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("pipeline %s is not registered", c)
}

// Select resolves the given categories in order. An empty list selects every
// registered pipeline in the canonical category order.
func (r *Registry) Select(categories []domain.Category) ([]Pipeline, error) {
	if len(categories) == 0 {
		var all []Pipeline
		for _, c := range domain.Categories {
			if p, ok := r.pipelines[c]; ok {
				all = append(all, p)
			}
		}
		return all, nil
	}

	out := make([]Pipeline, 0, len(categories))
	for _, c := range categories {
		p, err := r.Resolve(c)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
