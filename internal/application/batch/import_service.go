package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/batch"
	"github.com/dcasset/backend/internal/domain/shared"
	"github.com/dcasset/backend/internal/infrastructure/csvimport"
	"github.com/dcasset/backend/internal/infrastructure/telemetry"
)

// DefaultWorkers is the default size of the import worker pool
const DefaultWorkers = 4

var requiredColumns = []string{"serial_number", "tag", "name", "category"}

// ImportService runs bulk asset imports. Rows are validated and written
// concurrently; a bad row is recorded and skipped, never aborting the batch.
// Only an infrastructure failure aborts, and rows already written stay
// written.
type ImportService struct {
	jobs           batch.Repository
	assets         asset.Repository
	reports        ReportStore
	eventPublisher shared.EventPublisher
	workers        int
}

// NewImportService creates a new ImportService
func NewImportService(jobs batch.Repository, assets asset.Repository, reports ReportStore) *ImportService {
	return &ImportService{
		jobs:    jobs,
		assets:  assets,
		reports: reports,
		workers: DefaultWorkers,
	}
}

// SetEventPublisher sets the publisher for domain events
func (s *ImportService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetWorkers overrides the worker pool size
func (s *ImportService) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// assetRow is one parsed data row awaiting insertion
type assetRow struct {
	dataRow       int
	serialNumber  string
	tag           string
	name          string
	category      string
	model         string
	datacenter    string
	room          string
	purchasePrice string
	powerDrawW    string
}

// reportColumns is the input column order reproduced in the error report
var reportColumns = []string{
	"serial_number", "tag", "name", "category", "model",
	"datacenter", "room", "purchase_price", "power_draw_w",
}

// values returns the row as it appeared in the input, keyed by column
func (r assetRow) values() map[string]string {
	return map[string]string{
		"serial_number":  r.serialNumber,
		"tag":            r.tag,
		"name":           r.name,
		"category":       r.category,
		"model":          r.model,
		"datacenter":     r.datacenter,
		"room":           r.room,
		"purchase_price": r.purchasePrice,
		"power_draw_w":   r.powerDrawW,
	}
}

// rowResult is the outcome of one data row
type rowResult struct {
	row assetRow
	err error
}

// Import parses the uploaded file and writes each valid row into the asset
// ledger. The returned response reflects the settled job, including row
// errors and the error report key when any row failed.
func (s *ImportService) Import(ctx context.Context, req ImportRequest) (*BatchJobResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "batch_import", "import")
	defer span.End()

	job, err := batch.NewBatchJob(req.FileName, int64(len(req.Content)), req.ImportedBy)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.SpanAttrBatchJobID, job.ID.String()))
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, job)

	rows, parseErrors, err := s.parseRows(req.Content)
	if err != nil {
		// file-level failure: nothing was written, the job settles aborted
		if abortErr := job.Abort(err.Error(), 0, nil, nil); abortErr != nil {
			return nil, abortErr
		}
		if saveErr := s.jobs.Save(ctx, job); saveErr != nil {
			return nil, saveErr
		}
		s.publishDomainEvents(ctx, job)
		response := ToBatchJobResponse(job)
		return &response, nil
	}

	deduped, dupErrors := dedupeRows(rows)

	writeErrors, successes, fatal := s.writeRows(ctx, deduped)
	rowErrors := append(parseErrors, dupErrors...)
	rowErrors = append(rowErrors, writeErrors...)
	sort.Slice(rowErrors, func(i, j int) bool { return rowErrors[i].Row < rowErrors[j].Row })
	sort.Slice(successes, func(i, j int) bool { return successes[i].Row < successes[j].Row })

	total := len(rows) + len(parseErrors)
	span.SetAttributes(attribute.Int(telemetry.SpanAttrRowCount, total))

	if fatal != nil {
		telemetry.RecordError(span, fatal)
		reason := fmt.Sprintf("pipeline failure: %v", fatal)
		if abortErr := job.Abort(reason, total, successes, rowErrors); abortErr != nil {
			return nil, abortErr
		}
	} else {
		reportKey := s.storeErrorReport(ctx, job.ID, rowErrors)
		if completeErr := job.Complete(total, successes, rowErrors, reportKey); completeErr != nil {
			return nil, completeErr
		}
	}

	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, job)

	response := ToBatchJobResponse(job)
	return &response, nil
}

// GetByID retrieves a batch job
func (s *ImportService) GetByID(ctx context.Context, id uuid.UUID) (*BatchJobResponse, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToBatchJobResponse(job)
	return &response, nil
}

// List retrieves batch jobs matching the filter
func (s *ImportService) List(ctx context.Context, filter BatchJobListFilter) (*shared.Paginated[BatchJobResponse], error) {
	repoFilter := filter.toSharedFilter()

	jobs, err := s.jobs.FindAll(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.jobs.Count(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	responses := make([]BatchJobResponse, 0, len(jobs))
	for i := range jobs {
		responses = append(responses, ToBatchJobResponse(&jobs[i]))
	}
	result := shared.NewPaginated(responses, total, repoFilter.Page, repoFilter.PageSize)
	return &result, nil
}

// ErrorReport regenerates the error-report CSV for a settled job from its
// stored row outcomes, so the download works even when the object store
// copy is gone.
func (s *ImportService) ErrorReport(ctx context.Context, id uuid.UUID) (string, []byte, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return "", nil, err
	}
	rowErrors, err := job.RowErrors()
	if err != nil {
		return "", nil, fmt.Errorf("decode row errors for job %s: %w", id, err)
	}
	if len(rowErrors) == 0 {
		return "", nil, shared.ErrNotFound
	}
	fileName := fmt.Sprintf("batch_%s_errors.csv", id)
	return fileName, renderErrorReport(rowErrors), nil
}

// parseRows reads the whole file. Malformed rows become row errors; only
// file-level problems (encoding, missing columns) fail the parse.
func (s *ImportService) parseRows(content []byte) ([]assetRow, []batch.RowErrorDetail, error) {
	parser, err := csvimport.NewParser(bytes.NewReader(content))
	if err != nil {
		return nil, nil, err
	}
	if err := parser.RequireHeaders(requiredColumns...); err != nil {
		return nil, nil, err
	}

	rows := make([]assetRow, 0)
	rowErrors := make([]batch.RowErrorDetail, 0)
	for {
		row, err := parser.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			if rowErr, ok := err.(csvimport.RowError); ok {
				rowErrors = append(rowErrors, batch.RowErrorDetail{
					Row: rowErr.Row, Code: rowErr.Code, Message: rowErr.Message,
				})
				continue
			}
			return nil, nil, err
		}
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, assetRow{
			dataRow:       row.DataRow,
			serialNumber:  row.Get("serial_number"),
			tag:           row.Get("tag"),
			name:          row.Get("name"),
			category:      row.Get("category"),
			model:         row.Get("model"),
			datacenter:    row.Get("datacenter"),
			room:          row.Get("room"),
			purchasePrice: row.Get("purchase_price"),
			powerDrawW:    row.Get("power_draw_w"),
		})
	}
	return rows, rowErrors, nil
}

// dedupeRows rejects rows whose serial number or tag repeats an earlier row
// in the same file. The earlier row wins; the later one becomes a row error
// without ever touching the ledger.
func dedupeRows(rows []assetRow) ([]assetRow, []batch.RowErrorDetail) {
	serials := make(map[string]int, len(rows))
	tags := make(map[string]int, len(rows))
	kept := make([]assetRow, 0, len(rows))
	dupErrors := make([]batch.RowErrorDetail, 0)

	for _, row := range rows {
		if row.serialNumber != "" {
			if first, dup := serials[row.serialNumber]; dup {
				dupErrors = append(dupErrors, batch.RowErrorDetail{
					Row: row.dataRow, SerialNumber: row.serialNumber,
					Code:    csvimport.ErrCodeDuplicateInFile,
					Message: fmt.Sprintf("serial number repeats row %d", first),
					Values:  row.values(),
				})
				continue
			}
		}
		if row.tag != "" {
			if first, dup := tags[row.tag]; dup {
				dupErrors = append(dupErrors, batch.RowErrorDetail{
					Row: row.dataRow, SerialNumber: row.serialNumber,
					Code:    csvimport.ErrCodeDuplicateInFile,
					Message: fmt.Sprintf("tag repeats row %d", first),
					Values:  row.values(),
				})
				continue
			}
		}
		if row.serialNumber != "" {
			serials[row.serialNumber] = row.dataRow
		}
		if row.tag != "" {
			tags[row.tag] = row.dataRow
		}
		kept = append(kept, row)
	}
	return kept, dupErrors
}

// writeRows pushes the rows through the worker pool. The first
// infrastructure error cancels the remaining work; row-level rejections and
// successful writes are collected per row and returned.
func (s *ImportService) writeRows(ctx context.Context, rows []assetRow) ([]batch.RowErrorDetail, []batch.RowSuccessDetail, error) {
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan assetRow)
	results := make(chan rowResult, len(rows))

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range work {
				results <- rowResult{
					row: row,
					err: s.writeRow(workCtx, row),
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, row := range rows {
			select {
			case work <- row:
			case <-workCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	rowErrors := make([]batch.RowErrorDetail, 0)
	successes := make([]batch.RowSuccessDetail, 0, len(rows))
	var fatal error
	for result := range results {
		if result.err == nil {
			successes = append(successes, batch.RowSuccessDetail{
				Row:          result.row.dataRow,
				SerialNumber: result.row.serialNumber,
				AssetTag:     result.row.tag,
			})
			continue
		}
		switch e := result.err.(type) {
		case csvimport.RowError:
			rowErrors = append(rowErrors, batch.RowErrorDetail{
				Row: e.Row, SerialNumber: result.row.serialNumber,
				Code: e.Code, Message: e.Message,
				Values: result.row.values(),
			})
		case *shared.DomainError:
			rowErrors = append(rowErrors, batch.RowErrorDetail{
				Row: result.row.dataRow, SerialNumber: result.row.serialNumber,
				Code: e.Code, Message: e.Message,
				Values: result.row.values(),
			})
		default:
			// not a row problem: the ledger itself failed
			if fatal == nil {
				fatal = result.err
				cancel()
			}
		}
	}
	return rowErrors, successes, fatal
}

// writeRow validates one row and creates the asset
func (s *ImportService) writeRow(ctx context.Context, row assetRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if row.serialNumber == "" {
		return csvimport.NewRowError(row.dataRow, "serial_number", csvimport.ErrCodeRequiredField, "serial_number is required")
	}
	if row.tag == "" {
		return csvimport.NewRowError(row.dataRow, "tag", csvimport.ErrCodeRequiredField, "tag is required")
	}

	a, err := asset.NewAsset(row.tag, row.serialNumber, row.name, row.category)
	if err != nil {
		return err
	}
	a.Model = row.model
	a.Datacenter = row.datacenter
	a.Room = row.room

	if row.purchasePrice != "" {
		price, err := decimal.NewFromString(row.purchasePrice)
		if err != nil {
			return csvimport.NewRowError(row.dataRow, "purchase_price", csvimport.ErrCodeInvalidFormat,
				fmt.Sprintf("invalid purchase price: %s", row.purchasePrice))
		}
		a.PurchasePrice = price
	}
	if row.powerDrawW != "" {
		power, err := decimal.NewFromString(row.powerDrawW)
		if err != nil {
			return csvimport.NewRowError(row.dataRow, "power_draw_w", csvimport.ErrCodeInvalidFormat,
				fmt.Sprintf("invalid power draw: %s", row.powerDrawW))
		}
		a.PowerDrawW = power
	}

	if err := s.assets.Create(ctx, a); err != nil {
		if shared.IsDomainError(err, "CONFLICT") {
			return csvimport.NewRowError(row.dataRow, "serial_number", csvimport.ErrCodeDuplicateInDB,
				fmt.Sprintf("asset already registered: %s", row.serialNumber))
		}
		return err
	}

	s.publishDomainEvents(ctx, a)
	return nil
}

// storeErrorReport writes a CSV report of the failed rows. A store failure
// is not fatal: the details stay on the job either way.
func (s *ImportService) storeErrorReport(ctx context.Context, jobID uuid.UUID, rowErrors []batch.RowErrorDetail) string {
	if len(rowErrors) == 0 || s.reports == nil {
		return ""
	}

	key := fmt.Sprintf("reports/batch_%s_errors.csv", jobID)
	stored, err := s.reports.Put(ctx, key, "text/csv", renderErrorReport(rowErrors))
	if err != nil {
		return ""
	}
	return stored
}

// renderErrorReport writes the failed rows as CSV in the input's column
// order, annotated with the failure reason, so the caller can correct the
// values and re-submit exactly those rows.
func renderErrorReport(rowErrors []batch.RowErrorDetail) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"row"}, reportColumns...)
	header = append(header, "error_code", "error_message")
	_ = w.Write(header)

	for _, detail := range rowErrors {
		record := make([]string, 0, len(header))
		record = append(record, strconv.Itoa(detail.Row))
		for _, col := range reportColumns {
			v := detail.Values[col]
			if col == "serial_number" && v == "" {
				v = detail.SerialNumber
			}
			record = append(record, v)
		}
		record = append(record, detail.Code, detail.Message)
		_ = w.Write(record)
	}
	w.Flush()
	return buf.Bytes()
}

type eventCarrier interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

func (s *ImportService) publishDomainEvents(ctx context.Context, carrier eventCarrier) {
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
