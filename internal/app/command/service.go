package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/wallybot/wally-agent/internal/app/intent"
	"github.com/wallybot/wally-agent/internal/domain"
	"github.com/wallybot/wally-agent/internal/observability"
)

const defaultHistoryLimit = 10

// Service is the command orchestrator: audio or text in, exactly one
// ExecutionReport (or one fatal pre-automation error) out.
//
// The error contract is asymmetric on purpose: failures before automation
// starts (transcription, history lookup) are pipeline-fatal, while a single
// item's failure during automation is item-local and never aborts the
// remaining items.
type Service struct {
	transcriber domain.Transcriber
	resolver    *intent.Resolver
	orders      domain.OrderStore
	sessions    domain.SessionProvider
}

func NewService(
	transcriber domain.Transcriber,
	resolver *intent.Resolver,
	orders domain.OrderStore,
	sessions domain.SessionProvider,
) *Service {
	return &Service{
		transcriber: transcriber,
		resolver:    resolver,
		orders:      orders,
		sessions:    sessions,
	}
}

// Input carries one command. Audio takes precedence when both are set.
type Input struct {
	Audio    []byte
	MIMEType string
	Text     string
}

// Handle runs the full pipeline: transcribe, resolve, expand, automate.
func (s *Service) Handle(ctx context.Context, in Input) (*domain.ExecutionReport, error) {
	log := observability.LoggerFromContext(ctx)

	report := &domain.ExecutionReport{}

	command := in.Text
	if len(in.Audio) > 0 {
		tr, err := s.transcriber.Transcribe(ctx, in.Audio, in.MIMEType)
		if err != nil {
			// Surfaced, not retried: the caller decides whether to resubmit.
			log.Error("transcription failed", "error", err)
			var terr *domain.TranscriptionError
			if errors.As(err, &terr) {
				return nil, err
			}
			return nil, &domain.TranscriptionError{Err: err}
		}
		command = tr.Text
		report.Transcription = tr.Text
		log.Info("audio transcribed", "text", tr.Text, "language", tr.Language)
	}
	report.Command = command

	it := s.resolver.Resolve(ctx, command)
	report.Intent = it.Type
	log.Info("intent resolved", "intent", it.Type, "item_count", len(it.Items))

	switch it.Type {
	case domain.IntentListItems:
		orders, err := s.orders.List(ctx, defaultHistoryLimit, 0)
		if err != nil {
			return nil, fmt.Errorf("listing order history: %w", err)
		}
		report.Orders = orders
		report.Overall = domain.OverallSuccess
		return report, nil

	case domain.IntentUnknown:
		report.Overall = domain.OverallFailed
		report.Detail = "unrecognized command"
		return report, nil

	case domain.IntentReorder:
		last, err := s.orders.MostRecent(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading most recent order: %w", err)
		}
		if last == nil {
			// Normal terminal outcome, not an error. Automation is never touched.
			report.Overall = domain.OverallFailed
			report.Detail = "no history"
			return report, nil
		}
		it.Items = last.Items
		log.Info("reorder expanded from history", "order_id", last.ID, "item_count", len(it.Items))

	case domain.IntentAddItems:
		// Items come straight from the intent.
	}

	s.runItems(ctx, report, it.Items)
	return report, nil
}

// ReorderByID drives automation from a specific past order instead of the
// most recent one. ErrOrderNotFound when the id is unknown.
func (s *Service) ReorderByID(ctx context.Context, id domain.OrderID) (*domain.ExecutionReport, error) {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &domain.ExecutionReport{
		Command: fmt.Sprintf("reorder %s", id),
		Intent:  domain.IntentReorder,
	}
	s.runItems(ctx, report, order.Items)
	return report, nil
}

// SaveCompleted persists a cart as a new immutable order. Reports are never
// auto-persisted; this is the one explicit save path.
func (s *Service) SaveCompleted(ctx context.Context, items []domain.ItemRequest, total *float64) (*domain.Order, error) {
	return s.orders.Save(ctx, items, total)
}

// History lists past orders most-recent-first.
func (s *Service) History(ctx context.Context, limit, offset int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.orders.List(ctx, limit, offset)
}

// GetOrder fetches one order by id.
func (s *Service) GetOrder(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return s.orders.Get(ctx, id)
}

// runItems drives the automation session through the item list sequentially.
// The single physical device cannot perform two UI interactions at once, and
// ordering keeps reports reproducible.
func (s *Service) runItems(ctx context.Context, report *domain.ExecutionReport, items []domain.ItemRequest) {
	log := observability.LoggerFromContext(ctx)

	driver, err := s.sessions.Ensure(ctx)
	if err != nil {
		// Pre-item failure: the whole command fails with zero attempts made.
		log.Error("automation session unavailable", "error", err)
		report.Overall = domain.OverallFailed
		report.Detail = "automation unavailable: " + err.Error()
		return
	}

	added := 0
	for _, item := range items {
		outcome := driver.AddItem(ctx, item)
		report.Items = append(report.Items, domain.AttemptedItem{Item: item, Outcome: outcome})
		if outcome.Status == domain.ItemAdded {
			added++
		}
	}

	switch {
	case added == len(items):
		report.Overall = domain.OverallSuccess
	case added == 0:
		report.Overall = domain.OverallFailed
	default:
		report.Overall = domain.OverallPartial
	}
	log.Info("command execution finished", "overall", report.Overall, "added", added, "attempted", len(items))
}
