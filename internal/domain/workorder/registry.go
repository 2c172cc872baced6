package workorder

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/shared"
)

// Mutation is one ledger change produced by applying an item's effect.
// Exactly one of Create or Apply is set: Create introduces a new asset,
// Apply mutates an existing one identified by Tag. Apply receives the asset
// as loaded at execution time, so an effect stays correct when it is
// recomputed against refreshed state after a version conflict.
type Mutation struct {
	Create *asset.Asset
	Tag    string
	Apply  func(a *asset.Asset) error
}

// ItemSpec describes one item to create alongside a new work order
type ItemSpec struct {
	AssetTag      *string
	SerialNumber  string
	OperationData string
}

// TypeBehavior is the pluggable contract a work order type implements. The
// lifecycle engine is type-agnostic; everything type-specific lives here.
type TypeBehavior interface {
	// ValidatePayload performs structural validation of the payload at
	// creation time. Returns shared.ErrValidation-coded errors.
	ValidatePayload(payload []byte) error

	// ExpandItems derives the per-target items from the targets and
	// payload. Called once at creation time.
	ExpandItems(targets []string, payload []byte) ([]ItemSpec, error)

	// CheckPreconditions verifies current ledger state admits the
	// operation. Called at creation AND re-checked at execution; it must
	// name the offending asset in the error.
	CheckPreconditions(ctx context.Context, ledger asset.Reader, targets []string, payload []byte) error

	// ItemEffect computes the ledger mutations for one item against the
	// asset state loaded at execution time
	ItemEffect(item *WorkOrderItem, payload []byte) ([]Mutation, error)

	// ExclusiveTargets reports whether targets of this type may appear in
	// at most one active work order at a time
	ExclusiveTargets() bool
}

// Registry holds the known work order types. Registration happens at
// startup; lookups are concurrent.
type Registry struct {
	mu        sync.RWMutex
	behaviors map[string]TypeBehavior
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{behaviors: make(map[string]TypeBehavior)}
}

// Register adds a type behavior under its tag. Registering a tag twice is a
// programming error and fails.
func (r *Registry) Register(typeTag string, behavior TypeBehavior) error {
	if typeTag == "" {
		return shared.NewDomainError("INVALID_TYPE", "Type tag cannot be empty")
	}
	if behavior == nil {
		return shared.NewDomainError("INVALID_TYPE", "Type behavior cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.behaviors[typeTag]; exists {
		return shared.NewDomainError("CONFLICT", fmt.Sprintf("Work order type already registered: %s", typeTag))
	}
	r.behaviors[typeTag] = behavior
	return nil
}

// Get returns the behavior for a type tag, shared.ErrNotFound for unknown tags
func (r *Registry) Get(typeTag string) (TypeBehavior, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	behavior, ok := r.behaviors[typeTag]
	if !ok {
		return nil, shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Unknown work order type: %s", typeTag))
	}
	return behavior, nil
}

// Types returns the registered type tags in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.behaviors))
	for tag := range r.behaviors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
