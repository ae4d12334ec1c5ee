package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"telephone-billing/internal/bills"
	"telephone-billing/internal/calls"
	"telephone-billing/internal/pipeline"
	"telephone-billing/internal/tasks"
	"telephone-billing/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, call internal services, return JSON.
type Handlers struct {
	Tracker   *tasks.Tracker
	Publisher pipeline.Publisher
	Calls     *calls.Service
	Bills     *bills.Service
}

type taskView struct {
	JobID  string          `json:"job_id"`
	Status tasks.Status    `json:"status"`
	Data   json.RawMessage `json:"data"`
	Result json.RawMessage `json:"result"`
}

func newTaskView(t tasks.Task) taskView {
	v := taskView{JobID: t.URL(), Status: t.Status, Data: t.Data, Result: t.Result}
	if len(v.Data) == 0 {
		v.Data = json.RawMessage("null")
	}
	if len(v.Result) == 0 {
		v.Result = json.RawMessage("null")
	}
	return v
}

// --- Registry ---

// PostRegistry accepts a raw registry event and queues it. Field validation
// happens in the pipeline; only a body that is not a JSON object is refused.
func (h Handlers) PostRegistry(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
		return
	}

	ctx := c.Request.Context()
	jobID := uuid.NewString()
	payload := json.RawMessage(body)

	task, err := h.Tracker.Open(ctx, jobID, payload, calls.RegistryServiceName)
	if err != nil {
		writeError(c, err)
		return
	}
	msg := pipeline.Message{Payload: payload, Trigger: pipeline.TriggerRegistry, JobID: jobID}
	if err := h.Publisher.Publish(ctx, msg); err != nil {
		logger.FromGin(c).Error("enqueue failed", "job_id", jobID, "err", err)
		if _, ferr := h.Tracker.Finish(ctx, task, json.RawMessage(`{"error":"enqueue failed"}`), true); ferr != nil {
			logger.FromGin(c).Error("task finish failed", "job_id", jobID, "err", ferr)
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job_id": tasks.URL(jobID), "data": payload})
}

func (h Handlers) GetRegistry(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	r, err := h.Calls.GetRegistry(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// --- Tasks ---

func (h Handlers) GetTask(c *gin.Context) {
	t, err := h.Tracker.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskView(t))
}

// ListTasks lists the newest tasks, optionally filtered by ?status=.
func (h Handlers) ListTasks(c *gin.Context) {
	list, err := h.Tracker.List(c.Request.Context(), tasks.Status(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]taskView, 0, len(list))
	for _, t := range list {
		out = append(out, newTaskView(t))
	}
	c.JSON(http.StatusOK, out)
}

// --- Calls ---

func (h Handlers) ListCalls(c *gin.Context) {
	list, err := h.Calls.ListConsolidated(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []calls.Call{}
	}
	c.JSON(http.StatusOK, list)
}

func (h Handlers) GetCall(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("call_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	call, err := h.Calls.GetConsolidated(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

// --- Bills ---

// GetBill serves /bills, /bills/:subscriber, /bills/:subscriber/:month and
// /bills/:subscriber/:month/:year.
func (h Handlers) GetBill(c *gin.Context) {
	st, err := h.Bills.GetBill(c.Request.Context(), c.Param("subscriber"), c.Param("month"), c.Param("year"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func writeError(c *gin.Context, err error) {
	var verr *calls.ValidationError
	switch {
	case errors.Is(err, tasks.ErrNotFound), errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, bills.ErrNoCalls):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, bills.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, bills.ErrBadPeriod), errors.Is(err, bills.ErrPeriodNotClosed), errors.Is(err, tasks.ErrInvalidStatus):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, verr.Fields)
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
