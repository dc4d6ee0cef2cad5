package intent

import (
	"context"

	"github.com/wallybot/wally-agent/internal/domain"
	"github.com/wallybot/wally-agent/internal/observability"
)

// Resolver turns free text into a structured Intent. The remote model is the
// primary path; any failure or unparseable response routes to the
// deterministic fallback, so Resolve never errors and the orchestrator always
// receives some Intent.
type Resolver struct {
	model domain.IntentModel
}

func NewResolver(model domain.IntentModel) *Resolver {
	return &Resolver{model: model}
}

func (r *Resolver) Resolve(ctx context.Context, command string) domain.Intent {
	log := observability.LoggerFromContext(ctx)

	if r.model != nil {
		parsed, err := r.model.ClassifyIntent(ctx, command)
		if err == nil {
			return normalize(parsed)
		}
		log.Warn("intent model failed, using fallback parser", "error", err)
	}

	return normalize(fallbackParse(command))
}

// normalize enforces the intent invariants regardless of which path produced
// the raw intent:
//   - reorder discards any literal items; history expansion replaces them
//   - item quantities are clamped to at least 1, empty names dropped
//   - add_items with nothing left to add demotes to unknown
func normalize(in domain.Intent) domain.Intent {
	switch in.Type {
	case domain.IntentReorder:
		return domain.Intent{Type: domain.IntentReorder}
	case domain.IntentListItems:
		return domain.Intent{Type: domain.IntentListItems}
	case domain.IntentAddItems:
		items := make([]domain.ItemRequest, 0, len(in.Items))
		for _, it := range in.Items {
			if it.Name == "" {
				continue
			}
			if it.Quantity < 1 {
				it.Quantity = 1
			}
			items = append(items, it)
		}
		if len(items) == 0 {
			return domain.Intent{Type: domain.IntentUnknown}
		}
		return domain.Intent{Type: domain.IntentAddItems, Items: items}
	default:
		return domain.Intent{Type: domain.IntentUnknown}
	}
}
