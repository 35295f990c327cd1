package handlers

import (
	"log/slog"
	"net/http"

	"github.com/calmspace/practice/libs/httpx"
	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
	"github.com/calmspace/practice/services/scheduling-service/internal/scheduling"
)

// ScheduleHandler serves the admin schedule endpoints.
type ScheduleHandler struct {
	svc    *scheduling.Service
	logger *slog.Logger
}

func NewScheduleHandler(svc *scheduling.Service, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, logger: logger}
}

type weeklyItem struct {
	ID        string `json:"id,omitempty"`
	DayOfWeek int    `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Active    bool   `json:"active"`
}

type exceptionItem struct {
	Date        string `json:"date"`
	StartTime   string `json:"startTime,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
	IsAvailable bool   `json:"isAvailable"`
	Reason      string `json:"reason,omitempty"`
}

type blockItem struct {
	ID          string `json:"id,omitempty"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

func toWeekly(items []model.WeeklySchedule) []weeklyItem {
	out := make([]weeklyItem, 0, len(items))
	for _, w := range items {
		out = append(out, weeklyItem{ID: w.ID, DayOfWeek: w.DayOfWeek, StartTime: w.Start.String(), EndTime: w.End.String(), Active: w.Active})
	}
	return out
}

func toException(ex model.ScheduleException) exceptionItem {
	item := exceptionItem{Date: clock.FormatDate(ex.Date), IsAvailable: ex.Available, Reason: ex.Reason}
	if ex.Start != nil {
		item.StartTime = ex.Start.String()
	}
	if ex.End != nil {
		item.EndTime = ex.End.String()
	}
	return item
}

func toBlock(b model.ManualBlock) blockItem {
	return blockItem{
		ID:          b.ID,
		Date:        clock.FormatDate(b.Date),
		StartTime:   b.Start.String(),
		EndTime:     b.End.String(),
		Type:        b.Type,
		Description: b.Description,
	}
}

func (h *ScheduleHandler) ListWeekly(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListWeeklySchedule(r.Context(), r.URL.Query().Get("all") == "true")
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": toWeekly(items)})
}

func (h *ScheduleHandler) ReplaceWeekly(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []weeklyItem `json:"items"`
	}
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	in := make([]scheduling.WeeklyInput, 0, len(req.Items))
	for _, it := range req.Items {
		in = append(in, scheduling.WeeklyInput{DayOfWeek: it.DayOfWeek, Start: it.StartTime, End: it.EndTime})
	}
	items, err := h.svc.ReplaceWeeklySchedule(r.Context(), in)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": toWeekly(items)})
}

func (h *ScheduleHandler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.ListExceptions(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	out := make([]exceptionItem, 0, len(items))
	for _, ex := range items {
		out = append(out, toException(ex))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

// PutException upserts the exception of the date in the path.
func (h *ScheduleHandler) PutException(w http.ResponseWriter, r *http.Request) {
	var req exceptionItem
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	ex, err := h.svc.UpsertException(r.Context(), scheduling.ExceptionInput{
		Date:      r.PathValue("date"),
		Start:     req.StartTime,
		End:       req.EndTime,
		Available: req.IsAvailable,
		Reason:    req.Reason,
	})
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toException(ex))
}

func (h *ScheduleHandler) DeleteException(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteException(r.Context(), r.PathValue("date")); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.ListBlocks(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	out := make([]blockItem, 0, len(items))
	for _, b := range items {
		out = append(out, toBlock(b))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *ScheduleHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req blockItem
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	b, err := h.svc.CreateBlock(r.Context(), scheduling.BlockInput{
		Date:        req.Date,
		Start:       req.StartTime,
		End:         req.EndTime,
		Type:        req.Type,
		Description: req.Description,
	})
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toBlock(b))
}

func (h *ScheduleHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBlock(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
