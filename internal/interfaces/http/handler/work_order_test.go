package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	workorderapp "github.com/dcasset/backend/internal/application/workorder"
	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/shared"
	"github.com/dcasset/backend/internal/domain/workorder"
)

// stubWorkOrderRepo is an in-memory workorder.Repository
type stubWorkOrderRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]workorder.WorkOrder
}

func newStubWorkOrderRepo() *stubWorkOrderRepo {
	return &stubWorkOrderRepo{byID: map[uuid.UUID]workorder.WorkOrder{}}
}

func cloneWorkOrder(wo workorder.WorkOrder) workorder.WorkOrder {
	items := make([]workorder.WorkOrderItem, len(wo.Items))
	copy(items, wo.Items)
	wo.Items = items
	return wo
}

func (r *stubWorkOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*workorder.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wo, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := cloneWorkOrder(wo)
	return &cp, nil
}

func (r *stubWorkOrderRepo) FindByNumber(_ context.Context, number string) (*workorder.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, wo := range r.byID {
		if wo.Number == number {
			cp := cloneWorkOrder(wo)
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *stubWorkOrderRepo) FindAll(context.Context, shared.Filter) ([]workorder.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]workorder.WorkOrder, 0, len(r.byID))
	for _, wo := range r.byID {
		out = append(out, cloneWorkOrder(wo))
	}
	return out, nil
}

func (r *stubWorkOrderRepo) Count(context.Context, shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byID)), nil
}

func (r *stubWorkOrderRepo) FindActiveByTargetTag(_ context.Context, tag string) ([]workorder.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]workorder.WorkOrder, 0)
	for _, wo := range r.byID {
		if wo.Status.IsTerminal() {
			continue
		}
		for _, item := range wo.Items {
			if item.AssetTag != nil && *item.AssetTag == tag {
				out = append(out, cloneWorkOrder(wo))
				break
			}
		}
	}
	return out, nil
}

func (r *stubWorkOrderRepo) Create(_ context.Context, wo *workorder.WorkOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Number == wo.Number {
			return shared.ErrConflict
		}
	}
	cp := cloneWorkOrder(*wo)
	cp.MarkPersisted()
	cp.ClearDomainEvents()
	r.byID[cp.ID] = cp
	wo.MarkPersisted()
	return nil
}

func (r *stubWorkOrderRepo) SaveWithLock(_ context.Context, wo *workorder.WorkOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[wo.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != wo.StoredVersion() {
		return shared.ErrVersionConflict
	}
	cp := cloneWorkOrder(*wo)
	cp.MarkPersisted()
	cp.ClearDomainEvents()
	r.byID[cp.ID] = cp
	wo.MarkPersisted()
	return nil
}

func (r *stubWorkOrderRepo) SaveItems(_ context.Context, items []workorder.WorkOrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		wo, ok := r.byID[item.WorkOrderID]
		if !ok {
			continue
		}
		for i := range wo.Items {
			if wo.Items[i].ID == item.ID {
				wo.Items[i] = item
			}
		}
		r.byID[item.WorkOrderID] = wo
	}
	return nil
}

var _ workorder.Repository = (*stubWorkOrderRepo)(nil)

// stubClaimRepo is an in-memory workorder.ClaimRepository
type stubClaimRepo struct {
	mu    sync.Mutex
	byTag map[string]workorder.TargetClaim
}

func newStubClaimRepo() *stubClaimRepo {
	return &stubClaimRepo{byTag: map[string]workorder.TargetClaim{}}
}

func (r *stubClaimRepo) ClaimTargets(_ context.Context, workOrderID uuid.UUID, tags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tag := range tags {
		if _, claimed := r.byTag[tag]; claimed {
			return shared.ErrTargetLocked
		}
	}
	for _, tag := range tags {
		r.byTag[tag] = workorder.NewTargetClaim(workOrderID, tag)
	}
	return nil
}

func (r *stubClaimRepo) ReleaseByWorkOrder(_ context.Context, workOrderID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tag, claim := range r.byTag {
		if claim.WorkOrderID == workOrderID {
			delete(r.byTag, tag)
		}
	}
	return nil
}

func (r *stubClaimRepo) FindByTags(_ context.Context, tags []string) ([]workorder.TargetClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]workorder.TargetClaim, 0)
	for _, tag := range tags {
		if claim, ok := r.byTag[tag]; ok {
			out = append(out, claim)
		}
	}
	return out, nil
}

var _ workorder.ClaimRepository = (*stubClaimRepo)(nil)

func setupWorkOrderTestRouter(t *testing.T, assets *writableAssetRepo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry, err := workorder.NewDefaultRegistry(validator.New())
	require.NoError(t, err)

	orders := newStubWorkOrderRepo()
	claims := newStubClaimRepo()
	svc := workorderapp.NewWorkOrderService(orders, assets, claims, registry,
		workorderapp.NewNoOpTransactionScope(orders, assets, claims))
	h := NewWorkOrderHandler(svc)

	router := gin.New()
	router.POST("/work-orders", h.Create)
	router.GET("/work-orders", h.List)
	router.GET("/work-orders/types", h.Types)
	router.GET("/work-orders/number/:number", h.GetByNumber)
	router.GET("/work-orders/:id", h.GetByID)
	router.POST("/work-orders/:id/execute", h.Execute)
	router.POST("/work-orders/:id/complete", h.Complete)
	router.POST("/work-orders/:id/cancel", h.Cancel)
	return router
}

func seedReceivedAsset(t *testing.T, assets *writableAssetRepo, tag, serial string) {
	t.Helper()
	a, err := asset.NewAsset(tag, serial, "server "+tag, "server")
	require.NoError(t, err)
	require.NoError(t, a.AdvanceStage(asset.StageReceived, ""))
	require.NoError(t, assets.Create(context.Background(), a))
}

func postJSON(t *testing.T, router *gin.Engine, path string, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var rackingBody = map[string]interface{}{
	"type":    workorder.TypeRacking,
	"title":   "rack new arrivals",
	"creator": "alice",
	"targets": []string{"DC1-SRV-001"},
	"payload": map[string]interface{}{
		"datacenter":       "dc1",
		"room":             "r2",
		"cabinet":          "c17",
		"u_position_start": 10,
		"u_position_end":   12,
	},
}

func TestWorkOrderHandler_Create(t *testing.T) {
	t.Run("creates a racking work order", func(t *testing.T) {
		assets := newWritableAssetRepo()
		router := setupWorkOrderTestRouter(t, assets)
		seedReceivedAsset(t, assets, "DC1-SRV-001", "SN-001")

		w := postJSON(t, router, "/work-orders", rackingBody)

		require.Equal(t, http.StatusCreated, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["success"])
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, string(workorder.StatusCreated), data["status"])
		assert.True(t, strings.HasPrefix(data["number"].(string), "RACK-"))
	})

	t.Run("rejects a body without creator", func(t *testing.T) {
		assets := newWritableAssetRepo()
		router := setupWorkOrderTestRouter(t, assets)

		w := postJSON(t, router, "/work-orders", map[string]interface{}{
			"type": workorder.TypeRacking,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects a racking order over an unknown target", func(t *testing.T) {
		assets := newWritableAssetRepo()
		router := setupWorkOrderTestRouter(t, assets)

		w := postJSON(t, router, "/work-orders", rackingBody)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		errInfo := resp["error"].(map[string]interface{})
		assert.Equal(t, "ERR_PRECONDITION_FAILED", errInfo["code"])
	})
}

func TestWorkOrderHandler_Lifecycle(t *testing.T) {
	assets := newWritableAssetRepo()
	router := setupWorkOrderTestRouter(t, assets)
	seedReceivedAsset(t, assets, "DC1-SRV-001", "SN-001")

	w := postJSON(t, router, "/work-orders", rackingBody)
	require.Equal(t, http.StatusCreated, w.Code)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["data"].(map[string]interface{})["id"].(string)

	w = postJSON(t, router, "/work-orders/"+id+"/execute", map[string]interface{}{"operator": "bob"})
	require.Equal(t, http.StatusOK, w.Code)
	var executed map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &executed))
	assert.Equal(t, string(workorder.StatusExecuting), executed["data"].(map[string]interface{})["status"])

	w = postJSON(t, router, "/work-orders/"+id+"/complete", map[string]interface{}{"operator": "bob"})
	require.Equal(t, http.StatusOK, w.Code)
	var completed map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &completed))
	assert.Equal(t, string(workorder.StatusCompleted), completed["data"].(map[string]interface{})["status"])

	// a settled work order cannot be cancelled
	w = postJSON(t, router, "/work-orders/"+id+"/cancel", map[string]interface{}{
		"operator": "bob",
		"reason":   "too late",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestWorkOrderHandler_GetByID(t *testing.T) {
	assets := newWritableAssetRepo()
	router := setupWorkOrderTestRouter(t, assets)

	t.Run("unknown id returns 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/work-orders/"+uuid.NewString(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/work-orders/not-a-uuid", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestWorkOrderHandler_Types(t *testing.T) {
	assets := newWritableAssetRepo()
	router := setupWorkOrderTestRouter(t, assets)

	req := httptest.NewRequest(http.MethodGet, "/work-orders/types", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	types := resp["data"].([]interface{})
	assert.Contains(t, types, workorder.TypeRacking)
	assert.Contains(t, types, workorder.TypeReceiving)
}
