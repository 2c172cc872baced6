package workorder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/shared"
	"github.com/dcasset/backend/internal/domain/workorder"
	"github.com/dcasset/backend/internal/infrastructure/telemetry"
)

// maxEffectRetries bounds how often an item effect is recomputed after a
// version conflict before the item is marked failed
const maxEffectRetries = 3

type eventCarrier interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// WorkOrderService drives the work-order lifecycle: creation with
// precondition checks and target claims, execution, settlement of ledger
// effects, and cancellation.
type WorkOrderService struct {
	workOrders     workorder.Repository
	assets         asset.Repository
	claims         workorder.ClaimRepository
	registry       *workorder.Registry
	numbers        *workorder.NumberGenerator
	txnScope       TransactionScope
	eventPublisher shared.EventPublisher
}

// NewWorkOrderService creates a new WorkOrderService
func NewWorkOrderService(
	workOrders workorder.Repository,
	assets asset.Repository,
	claims workorder.ClaimRepository,
	registry *workorder.Registry,
	txnScope TransactionScope,
) *WorkOrderService {
	return &WorkOrderService{
		workOrders: workOrders,
		assets:     assets,
		claims:     claims,
		registry:   registry,
		numbers:    workorder.NewNumberGenerator(),
		txnScope:   txnScope,
	}
}

// SetEventPublisher sets the publisher for domain events
func (s *WorkOrderService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Types returns the registered work order type tags
func (s *WorkOrderService) Types() []string {
	return s.registry.Types()
}

// Create validates the payload and current ledger state, then persists a new
// work order in CREATED. For exclusive types the targets are claimed in the
// same transaction, so two concurrent creations over a shared target cannot
// both succeed.
func (s *WorkOrderService) Create(ctx context.Context, req CreateWorkOrderRequest) (*WorkOrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "work_order", "create",
		attribute.String(telemetry.SpanAttrWorkOrderType, req.Type))
	defer span.End()

	behavior, err := s.registry.Get(req.Type)
	if err != nil {
		return nil, err
	}

	payload := []byte(req.Payload)
	if err := behavior.ValidatePayload(payload); err != nil {
		return nil, err
	}

	specs, err := behavior.ExpandItems(req.Targets, payload)
	if err != nil {
		return nil, err
	}

	if err := behavior.CheckPreconditions(ctx, s.assets, req.Targets, payload); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	items := make([]workorder.WorkOrderItem, 0, len(specs))
	for _, spec := range specs {
		items = append(items, workorder.WorkOrderItem{
			BaseEntity:    shared.NewBaseEntity(),
			AssetTag:      spec.AssetTag,
			SerialNumber:  spec.SerialNumber,
			OperationData: spec.OperationData,
		})
	}

	wo, err := workorder.NewWorkOrder(s.numbers.Next(req.Type), req.Type, req.Title,
		req.Description, req.Creator, payload, items)
	if err != nil {
		return nil, err
	}
	wo.Assignee = req.Assignee
	wo.Reviewer = req.Reviewer
	span.SetAttributes(attribute.String(telemetry.SpanAttrWorkOrderNumber, wo.Number))

	err = s.txnScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if behavior.ExclusiveTargets() {
			if err := repos.Claims().ClaimTargets(ctx, wo.ID, wo.TargetTags()); err != nil {
				return err
			}
		}
		return repos.WorkOrders().Create(ctx, wo)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishDomainEvents(ctx, wo)
	response := ToWorkOrderResponse(wo)
	return &response, nil
}

// Execute moves a work order from CREATED to EXECUTING. Preconditions are
// re-checked against the live ledger; when they no longer hold the work
// order rolls back to CREATED and the caller gets the precondition error.
func (s *WorkOrderService) Execute(ctx context.Context, id uuid.UUID, req ExecuteWorkOrderRequest) (*WorkOrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "work_order", "execute")
	defer span.End()

	wo, err := s.workOrders.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String(telemetry.SpanAttrWorkOrderNumber, wo.Number),
		attribute.String(telemetry.SpanAttrWorkOrderType, wo.Type),
	)

	behavior, err := s.registry.Get(wo.Type)
	if err != nil {
		return nil, err
	}

	if err := wo.BeginExecution(req.Operator); err != nil {
		return nil, err
	}
	// The optimistic save serializes competing executors: the loser sees a
	// version conflict instead of double-executing.
	if err := s.workOrders.SaveWithLock(ctx, wo); err != nil {
		return nil, err
	}

	if err := behavior.CheckPreconditions(ctx, s.assets, wo.TargetTags(), []byte(wo.Payload)); err != nil {
		telemetry.RecordError(span, err)
		if revertErr := wo.RevertToCreated(); revertErr == nil {
			if saveErr := s.workOrders.SaveWithLock(ctx, wo); saveErr != nil {
				return nil, saveErr
			}
		}
		return nil, err
	}

	s.publishDomainEvents(ctx, wo)
	response := ToWorkOrderResponse(wo)
	return &response, nil
}

// Complete applies each pending item's ledger effect and settles the work
// order. Item failures are isolated: one item failing never blocks its
// siblings, and the work order lands in COMPLETED as long as at least one
// item succeeded. The ledger mutations, status change, item outcomes, and
// claim release commit in one transaction. When a version conflict survives
// the retry budget the transaction rolls back and the work order stays
// EXECUTING, so the caller can retry the completion.
func (s *WorkOrderService) Complete(ctx context.Context, id uuid.UUID, req CompleteWorkOrderRequest) (*WorkOrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "work_order", "complete")
	defer span.End()

	wo, err := s.workOrders.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String(telemetry.SpanAttrWorkOrderNumber, wo.Number),
		attribute.String(telemetry.SpanAttrWorkOrderType, wo.Type),
	)
	if wo.Status != workorder.StatusExecuting {
		return nil, shared.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("Cannot complete work order in status %s", wo.Status))
	}

	behavior, err := s.registry.Get(wo.Type)
	if err != nil {
		return nil, err
	}

	var touched []*asset.Asset
	err = s.txnScope.Execute(ctx, func(repos TransactionalRepositories) error {
		touched = touched[:0]
		for i := range wo.Items {
			item := &wo.Items[i]
			if item.Status != workorder.ItemStatusPending {
				continue
			}
			mutated, effErr := s.applyItemEffect(ctx, repos.Assets(), behavior, wo, item)
			if effErr != nil {
				if shared.IsDomainError(effErr, "VERSION_CONFLICT") {
					// contention outlived the retry budget: roll everything
					// back and leave the order EXECUTING for a manual retry
					return shared.NewDomainError("CONFLICT",
						fmt.Sprintf("Ledger contention while completing work order %s, retry the completion", wo.Number))
				}
				item.MarkFailed(effErr)
				continue
			}
			item.MarkSucceeded()
			touched = append(touched, mutated...)
		}

		if err := wo.FinishCompletion(req.Operator); err != nil {
			return err
		}
		if err := repos.WorkOrders().SaveWithLock(ctx, wo); err != nil {
			return err
		}
		if err := repos.WorkOrders().SaveItems(ctx, wo.Items); err != nil {
			return err
		}
		if behavior.ExclusiveTargets() {
			return repos.Claims().ReleaseByWorkOrder(ctx, wo.ID)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	for _, a := range touched {
		s.publishDomainEvents(ctx, a)
	}
	s.publishDomainEvents(ctx, wo)
	response := ToWorkOrderResponse(wo)
	return &response, nil
}

// Cancel cancels a work order from CREATED or EXECUTING without touching the
// ledger, and releases any target claims it held.
func (s *WorkOrderService) Cancel(ctx context.Context, id uuid.UUID, req CancelWorkOrderRequest) (*WorkOrderResponse, error) {
	wo, err := s.workOrders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	behavior, err := s.registry.Get(wo.Type)
	if err != nil {
		return nil, err
	}

	if err := wo.Cancel(req.Operator, req.Reason); err != nil {
		return nil, err
	}

	err = s.txnScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.WorkOrders().SaveWithLock(ctx, wo); err != nil {
			return err
		}
		if behavior.ExclusiveTargets() {
			return repos.Claims().ReleaseByWorkOrder(ctx, wo.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishDomainEvents(ctx, wo)
	response := ToWorkOrderResponse(wo)
	return &response, nil
}

// GetByID retrieves a work order with its items
func (s *WorkOrderService) GetByID(ctx context.Context, id uuid.UUID) (*WorkOrderResponse, error) {
	wo, err := s.workOrders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToWorkOrderResponse(wo)
	return &response, nil
}

// GetByNumber retrieves a work order by its business number
func (s *WorkOrderService) GetByNumber(ctx context.Context, number string) (*WorkOrderResponse, error) {
	wo, err := s.workOrders.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	response := ToWorkOrderResponse(wo)
	return &response, nil
}

// List retrieves work orders matching the filter
func (s *WorkOrderService) List(ctx context.Context, filter WorkOrderListFilter) (*shared.Paginated[WorkOrderResponse], error) {
	repoFilter := filter.toSharedFilter()

	orders, err := s.workOrders.FindAll(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.workOrders.Count(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	responses := make([]WorkOrderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, ToWorkOrderResponse(&orders[i]))
	}
	result := shared.NewPaginated(responses, total, repoFilter.Page, repoFilter.PageSize)
	return &result, nil
}

// applyItemEffect applies one item's ledger mutations through the given
// repository, which must be scoped to the settlement transaction. After a
// version conflict the effect is recomputed from the freshly loaded asset,
// bounded by maxEffectRetries. Returns the assets it mutated so their domain
// events can be published once the transaction commits.
func (s *WorkOrderService) applyItemEffect(ctx context.Context, assets asset.Repository, behavior workorder.TypeBehavior, wo *workorder.WorkOrder, item *workorder.WorkOrderItem) ([]*asset.Asset, error) {
	var lastErr error
	for attempt := 0; attempt < maxEffectRetries; attempt++ {
		mutations, err := behavior.ItemEffect(item, []byte(wo.Payload))
		if err != nil {
			return nil, err
		}
		var mutated []*asset.Asset
		mutated, lastErr = applyMutations(ctx, assets, mutations)
		if lastErr == nil {
			return mutated, nil
		}
		if !shared.IsDomainError(lastErr, "VERSION_CONFLICT") {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func applyMutations(ctx context.Context, assets asset.Repository, mutations []workorder.Mutation) ([]*asset.Asset, error) {
	mutated := make([]*asset.Asset, 0, len(mutations))
	for _, m := range mutations {
		if m.Create != nil {
			if err := assets.Create(ctx, m.Create); err != nil {
				return nil, err
			}
			mutated = append(mutated, m.Create)
			continue
		}

		a, err := assets.FindByTag(ctx, m.Tag)
		if err != nil {
			return nil, err
		}
		if err := m.Apply(a); err != nil {
			return nil, err
		}
		if err := assets.SaveWithLock(ctx, a); err != nil {
			return nil, err
		}
		mutated = append(mutated, a)
	}
	return mutated, nil
}

// publishDomainEvents publishes and clears the aggregate's pending events.
// Publish errors are handled by the event bus, not propagated.
func (s *WorkOrderService) publishDomainEvents(ctx context.Context, carrier eventCarrier) {
	if s.eventPublisher == nil {
		return
	}
	events := carrier.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	carrier.ClearDomainEvents()
}
