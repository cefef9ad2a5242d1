package api

import (
	"bytes"
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/leave-engine/attendance"
	"github.com/warp/leave-engine/core"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxUploadBytes bounds multipart workbook uploads.
const maxUploadBytes = 16 << 20

// =============================================================================
// CLOCK HANDLERS
// =============================================================================

func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	h.clock(w, r, h.Attendance.ClockIn)
}

func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	h.clock(w, r, h.Attendance.ClockOut)
}

func (h *Handler) clock(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, employeeID core.EmployeeID, date, at time.Time) (*attendance.Record, error)) {
	var req ClockRequest
	if !h.decode(w, r, &req) {
		return
	}
	var date, at time.Time
	if req.At != nil {
		at = *req.At
	}
	if req.Date != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		date = d
	}
	rec, err := op(r.Context(), core.EmployeeID(req.EmployeeID), date, at)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

// =============================================================================
// CAPTURE HANDLERS
// =============================================================================

func (h *Handler) ManualEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := h.toEntryInput(req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	source := attendance.SourceAdmin
	if req.SelfService {
		source = attendance.SourceSelfService
	}
	rec, err := h.Attendance.ManualEntry(r.Context(), in, source)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

// BulkEntry upserts every entry independently and reports each outcome.
func (h *Handler) BulkEntry(w http.ResponseWriter, r *http.Request) {
	var req BulkEntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	entries := make([]attendance.EntryInput, 0, len(req.Entries))
	var invalid []attendance.EntryResult
	rows := make([]int, 0, len(req.Entries))
	for i, e := range req.Entries {
		in, err := h.toEntryInput(e)
		if err != nil {
			invalid = append(invalid, attendance.EntryResult{Row: i + 1, EmployeeID: in.EmployeeID, Err: err})
			continue
		}
		entries = append(entries, in)
		rows = append(rows, i+1)
	}
	results := h.Attendance.BulkUpload(r.Context(), entries)
	for i := range results {
		results[i].Row = rows[i]
	}
	all := append(invalid, results...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Row < all[j].Row })
	writeJSON(w, http.StatusOK, toBulkResult(all))
}

// ImportWorkbook accepts a multipart upload with the workbook in "file".
func (h *Handler) ImportWorkbook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing workbook upload in field \"file\"", err)
		return
	}
	defer file.Close()

	results, err := h.Attendance.ImportWorkbook(r.Context(), file)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkResult(results))
}

// ImportTemplate downloads an empty workbook with the import header row.
func (h *Handler) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := attendance.WriteImportTemplate(&buf); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeXLSX(w, "attendance-import.xlsx", buf.Bytes())
}

func (h *Handler) toEntryInput(req EntryRequest) (attendance.EntryInput, error) {
	in := attendance.EntryInput{
		EmployeeID: core.EmployeeID(req.EmployeeID),
		Status:     attendance.Status(req.Status),
		Remarks:    req.Remarks,
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return in, err
	}
	in.Date = date
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, h.Attendance.Location())
	if req.ClockIn != nil {
		t := req.ClockIn.On(day)
		in.ClockIn = &t
	}
	if req.ClockOut != nil {
		t := req.ClockOut.On(day)
		in.ClockOut = &t
	}
	return in, nil
}

func toBulkResult(results []attendance.EntryResult) BulkResultDTO {
	out := BulkResultDTO{Total: len(results), Results: make([]ItemResultDTO, len(results))}
	for i, res := range results {
		item := ItemResultDTO{Row: res.Row, EmployeeID: string(res.EmployeeID)}
		if !res.Date.IsZero() {
			item.Date = core.FormatDate(res.Date)
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
			out.Failed++
		} else if res.Record != nil {
			dto := toRecordDTO(*res.Record)
			item.ID = dto.ID
			item.Record = &dto
			out.Succeeded++
		}
		out.Results[i] = item
	}
	return out
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListRecords filters by ?employee_id, ?from, ?to, ?approval_status.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := attendance.RecordFilter{
		EmployeeID:     core.EmployeeID(q.Get("employee_id")),
		ApprovalStatus: attendance.ApprovalStatus(q.Get("approval_status")),
	}
	var err error
	if filter.From, err = queryDate(r, "from"); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	records, err := h.Attendance.ListRecords(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]RecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Attendance.GetRecord(r.Context(), core.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

func (h *Handler) ApproveRecord(w http.ResponseWriter, r *http.Request) {
	h.reviewRecord(w, r, h.Attendance.Approve)
}

func (h *Handler) RejectRecord(w http.ResponseWriter, r *http.Request) {
	h.reviewRecord(w, r, h.Attendance.Reject)
}

func (h *Handler) reviewRecord(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id core.RecordID, approverID core.EmployeeID, note string) (*attendance.Record, error)) {
	var req ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := op(r.Context(), core.RecordID(chi.URLParam(r, "id")), core.EmployeeID(req.ApproverID), req.Note)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*rec))
}

func (h *Handler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var req BulkApproveRequest
	if !h.decode(w, r, &req) {
		return
	}
	ids := make([]core.RecordID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = core.RecordID(id)
	}
	results := h.Attendance.BulkApprove(r.Context(), ids, core.EmployeeID(req.ApproverID), req.Note)

	out := BulkResultDTO{Total: len(results), Results: make([]ItemResultDTO, len(results))}
	for i, res := range results {
		item := ItemResultDTO{Row: i + 1, ID: string(res.RecordID)}
		if res.Err != nil {
			item.Error = res.Err.Error()
			out.Failed++
		} else {
			dto := toRecordDTO(*res.Record)
			item.EmployeeID = dto.EmployeeID
			item.Date = dto.Date
			item.Record = &dto
			out.Succeeded++
		}
		out.Results[i] = item
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary aggregates approved attendance over ?from..?to for ?employee_id, or
// for every active employee when it is omitted. ?format=xlsx downloads a
// workbook instead of JSON.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryPeriod(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var summaries []attendance.Summary
	if emp := r.URL.Query().Get("employee_id"); emp != "" {
		sum, err := h.Attendance.Summarize(r.Context(), core.EmployeeID(emp), from, to)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		summaries = []attendance.Summary{*sum}
	} else {
		summaries, err = h.Attendance.SummarizeAll(r.Context(), from, to)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}

	if r.URL.Query().Get("format") == "xlsx" {
		var buf bytes.Buffer
		if err := attendance.WriteSummaryWorkbook(&buf, summaries); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeXLSX(w, "attendance-summary.xlsx", buf.Bytes())
		return
	}

	dtos := make([]SummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func writeXLSX(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Attendance.ListRules(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	rule, err := h.Attendance.CreateRule(r.Context(), req.toRule(""))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleDTO(*rule))
}

func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	get := func() (*attendance.Rule, error) {
		if id == "default" {
			return h.Attendance.DefaultRule(r.Context())
		}
		return h.Attendance.GetRule(r.Context(), core.RuleID(id))
	}
	rule, err := get()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(*rule))
}

func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	rule, err := h.Attendance.UpdateRule(r.Context(), req.toRule(core.RuleID(chi.URLParam(r, "id"))))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(*rule))
}

func (h *Handler) SetDefaultRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Attendance.SetDefaultRule(r.Context(), core.RuleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(*rule))
}
