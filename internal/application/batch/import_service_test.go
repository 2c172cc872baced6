package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/batch"
	"github.com/dcasset/backend/internal/domain/shared"
)

// memLedger is an in-memory asset.Repository for import tests. failEvery
// injects an infrastructure error on every n-th create.
type memLedger struct {
	mu        sync.Mutex
	byTag     map[string]asset.Asset
	creates   int
	failEvery int
}

func newMemLedger() *memLedger {
	return &memLedger{byTag: map[string]asset.Asset{}}
}

func (r *memLedger) FindByTag(_ context.Context, tag string) (*asset.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byTag[tag]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := a
	return &cp, nil
}

func (r *memLedger) FindBySerialNumber(_ context.Context, serial string) (*asset.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byTag {
		if a.SerialNumber == serial {
			cp := a
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memLedger) FindAll(context.Context, shared.Filter) ([]asset.Asset, error) {
	return nil, nil
}

func (r *memLedger) Count(context.Context, shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byTag)), nil
}

func (r *memLedger) Create(_ context.Context, a *asset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.failEvery > 0 && r.creates%r.failEvery == 0 {
		return errors.New("connection refused")
	}
	if _, exists := r.byTag[a.Tag]; exists {
		return shared.ErrConflict
	}
	for _, existing := range r.byTag {
		if existing.SerialNumber == a.SerialNumber {
			return shared.ErrConflict
		}
	}
	r.byTag[a.Tag] = *a
	return nil
}

func (r *memLedger) SaveWithLock(_ context.Context, a *asset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTag[a.Tag] = *a
	return nil
}

var _ asset.Repository = (*memLedger)(nil)

// memJobRepo is an in-memory batch.Repository
type memJobRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]batch.BatchJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{byID: map[uuid.UUID]batch.BatchJob{}}
}

func (r *memJobRepo) FindByID(_ context.Context, id uuid.UUID) (*batch.BatchJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := job
	return &cp, nil
}

func (r *memJobRepo) FindAll(context.Context, shared.Filter) ([]batch.BatchJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]batch.BatchJob, 0, len(r.byID))
	for _, job := range r.byID {
		out = append(out, job)
	}
	return out, nil
}

func (r *memJobRepo) Count(context.Context, shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byID)), nil
}

func (r *memJobRepo) Create(_ context.Context, job *batch.BatchJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = *job
	return nil
}

func (r *memJobRepo) Save(_ context.Context, job *batch.BatchJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = *job
	return nil
}

var _ batch.Repository = (*memJobRepo)(nil)

type importFixture struct {
	ledger  *memLedger
	jobs    *memJobRepo
	reports *MemoryReportStore
	svc     *ImportService
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	ledger := newMemLedger()
	jobs := newMemJobRepo()
	reports := NewMemoryReportStore()
	svc := NewImportService(jobs, ledger, reports)
	svc.SetWorkers(2)
	return &importFixture{ledger: ledger, jobs: jobs, reports: reports, svc: svc}
}

func (f *importFixture) importCSV(t *testing.T, content string) *BatchJobResponse {
	t.Helper()
	resp, err := f.svc.Import(context.Background(), ImportRequest{
		FileName:   "assets.csv",
		ImportedBy: "alice",
		Content:    []byte(content),
	})
	require.NoError(t, err)
	return resp
}

const header = "serial_number,tag,name,category,model,datacenter,room,purchase_price\n"

func TestImportService_Import(t *testing.T) {
	t.Run("imports every valid row", func(t *testing.T) {
		f := newImportFixture(t)
		resp := f.importCSV(t, header+
			"SN-1,DC-SRV-0001,web-1,server,R740,dc1,r1,1200.50\n"+
			"SN-2,DC-SRV-0002,web-2,server,R740,dc1,r1,\n"+
			"SN-3,DC-SW-0001,tor-1,switch,,dc1,r1,\n")

		assert.Equal(t, string(batch.JobStatusCompleted), resp.Status)
		assert.Equal(t, 3, resp.TotalRows)
		assert.Equal(t, 3, resp.SuccessRows)
		assert.Equal(t, 0, resp.ErrorRows)
		assert.Empty(t, resp.ReportKey)

		a, err := f.ledger.FindByTag(context.Background(), "DC-SRV-0001")
		require.NoError(t, err)
		assert.Equal(t, "SN-1", a.SerialNumber)
		assert.Equal(t, asset.StageRegistered, a.LifecycleStage)
		assert.Equal(t, "1200.5", a.PurchasePrice.String())
	})

	t.Run("rejects the later in-file duplicate and keeps the rest", func(t *testing.T) {
		f := newImportFixture(t)
		resp := f.importCSV(t, header+
			"SN-1,DC-SRV-0001,web-1,server,,,,\n"+
			"SN-2,DC-SRV-0002,web-2,server,,,,\n"+
			"SN-1,DC-SRV-0003,web-3,server,,,,\n"+
			"SN-4,DC-SRV-0004,web-4,server,,,,\n"+
			"SN-5,DC-SRV-0005,web-5,server,,,,\n")

		assert.Equal(t, string(batch.JobStatusCompletedWithErrors), resp.Status)
		assert.Equal(t, 5, resp.TotalRows)
		assert.Equal(t, 4, resp.SuccessRows)
		assert.Equal(t, 1, resp.ErrorRows)
		require.Len(t, resp.RowErrors, 1)
		assert.Equal(t, 3, resp.RowErrors[0].Row)
		assert.Equal(t, "SN-1", resp.RowErrors[0].SerialNumber)
		assert.Equal(t, "DUPLICATE_IN_FILE", resp.RowErrors[0].Code)

		// row 1 won the duplicate, row 3 never reached the ledger
		a, err := f.ledger.FindBySerialNumber(context.Background(), "SN-1")
		require.NoError(t, err)
		assert.Equal(t, "DC-SRV-0001", a.Tag)
		_, err = f.ledger.FindByTag(context.Background(), "DC-SRV-0003")
		assert.Error(t, err)
	})

	t.Run("writes an error report when rows fail", func(t *testing.T) {
		f := newImportFixture(t)
		resp := f.importCSV(t, header+
			"SN-1,DC-SRV-0001,web-1,server,,,,\n"+
			",DC-SRV-0002,web-2,server,,,,\n")

		assert.Equal(t, string(batch.JobStatusCompletedWithErrors), resp.Status)
		require.NotEmpty(t, resp.ReportKey)

		body, ok := f.reports.Get(resp.ReportKey)
		require.True(t, ok)
		report := string(body)
		assert.Contains(t, report, "row,serial_number,tag,name,category,model,datacenter,room,purchase_price,power_draw_w,error_code,error_message")
		assert.Contains(t, report, "REQUIRED_FIELD")
	})

	t.Run("error report carries the failed row for re-submission", func(t *testing.T) {
		f := newImportFixture(t)
		resp := f.importCSV(t, header+
			"SN-1,DC-SRV-0001,web-1,server,R740,dc1,r1,\n"+
			"SN-1,DC-SRV-0002,web-2,server,M2,dc2,r2,42.50\n")

		require.NotEmpty(t, resp.ReportKey)
		body, ok := f.reports.Get(resp.ReportKey)
		require.True(t, ok)

		// the rejected row's original values, plus the reason, in one line
		report := string(body)
		assert.Contains(t, report, "2,SN-1,DC-SRV-0002,web-2,server,M2,dc2,r2,42.50,,DUPLICATE_IN_FILE")
		assert.NotContains(t, report, "web-1")
	})

	t.Run("records a success outcome per imported row", func(t *testing.T) {
		f := newImportFixture(t)
		resp := f.importCSV(t, header+
			"SN-1,DC-SRV-0001,web-1,server,,,,\n"+
			",DC-SRV-0002,web-2,server,,,,\n"+
			"SN-3,DC-SW-0001,tor-1,switch,,,,\n")

		require.Len(t, resp.RowSuccesses, 2)
		assert.Equal(t, 1, resp.RowSuccesses[0].Row)
		assert.Equal(t, "DC-SRV-0001", resp.RowSuccesses[0].AssetTag)
		assert.Equal(t, 3, resp.RowSuccesses[1].Row)
		assert.Equal(t, "SN-3", resp.RowSuccesses[1].SerialNumber)

		fetched, err := f.svc.GetByID(context.Background(), resp.ID)
		require.NoError(t, err)
		require.Len(t, fetched.RowSuccesses, 2)
		assert.Equal(t, "DC-SW-0001", fetched.RowSuccesses[1].AssetTag)
	})

	t.Run("isolates validation failures per row", func(t *testing.T) {
		f := newImportFixture(t)
		resp := f.importCSV(t, header+
			"SN-1,DC-SRV-0001,web-1,server,,,,not-a-price\n"+
			"SN-2,DC-SRV-0002,web-2,server,,,,\n"+
			"SN-3,,web-3,server,,,,\n")

		assert.Equal(t, 3, resp.TotalRows)
		assert.Equal(t, 1, resp.SuccessRows)
		assert.Equal(t, 2, resp.ErrorRows)

		codes := map[int]string{}
		for _, detail := range resp.RowErrors {
			codes[detail.Row] = detail.Code
		}
		assert.Equal(t, "INVALID_FORMAT", codes[1])
		assert.Equal(t, "REQUIRED_FIELD", codes[3])
	})

	t.Run("marks rows conflicting with the ledger", func(t *testing.T) {
		f := newImportFixture(t)
		existing, err := asset.NewAsset("DC-SRV-0001", "SN-1", "old", "server")
		require.NoError(t, err)
		require.NoError(t, f.ledger.Create(context.Background(), existing))

		resp := f.importCSV(t, header+
			"SN-1,DC-SRV-0009,web-1,server,,,,\n"+
			"SN-2,DC-SRV-0002,web-2,server,,,,\n")

		assert.Equal(t, 1, resp.SuccessRows)
		require.Len(t, resp.RowErrors, 1)
		assert.Equal(t, "DUPLICATE_IN_DB", resp.RowErrors[0].Code)
	})

	t.Run("aborts on an empty file", func(t *testing.T) {
		f := newImportFixture(t)
		resp := f.importCSV(t, "")

		assert.Equal(t, string(batch.JobStatusAborted), resp.Status)
		assert.Contains(t, resp.AbortReason, "empty")
	})

	t.Run("aborts when required columns are missing", func(t *testing.T) {
		f := newImportFixture(t)
		resp := f.importCSV(t, "serial_number,tag\nSN-1,DC-1\n")

		assert.Equal(t, string(batch.JobStatusAborted), resp.Status)
		assert.Contains(t, resp.AbortReason, "missing required columns")
	})

	t.Run("aborts on infrastructure failure but keeps written rows", func(t *testing.T) {
		f := newImportFixture(t)
		f.svc.SetWorkers(1)
		f.ledger.failEvery = 3 // every third create blows up

		var rows strings.Builder
		rows.WriteString(header)
		for i := 1; i <= 6; i++ {
			rows.WriteString(fmt.Sprintf("SN-%d,DC-SRV-%04d,web-%d,server,,,,\n", i, i, i))
		}
		resp := f.importCSV(t, rows.String())

		assert.Equal(t, string(batch.JobStatusAborted), resp.Status)
		assert.Contains(t, resp.AbortReason, "pipeline failure")
		assert.GreaterOrEqual(t, resp.SuccessRows, 2)

		// the rows written before the failure survive
		count, err := f.ledger.Count(context.Background(), shared.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(resp.SuccessRows), count)
	})
}

func TestImportService_Queries(t *testing.T) {
	t.Run("GetByID returns the settled job", func(t *testing.T) {
		f := newImportFixture(t)
		resp := f.importCSV(t, header+"SN-1,DC-SRV-0001,web-1,server,,,,\n")

		fetched, err := f.svc.GetByID(context.Background(), resp.ID)

		require.NoError(t, err)
		assert.Equal(t, string(batch.JobStatusCompleted), fetched.Status)
		assert.Equal(t, 1, fetched.TotalRows)
	})

	t.Run("List returns pagination metadata", func(t *testing.T) {
		f := newImportFixture(t)
		f.importCSV(t, header+"SN-1,DC-SRV-0001,web-1,server,,,,\n")

		page, err := f.svc.List(context.Background(), BatchJobListFilter{Page: 1, PageSize: 10})

		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
		require.Len(t, page.Items, 1)
	})
}
