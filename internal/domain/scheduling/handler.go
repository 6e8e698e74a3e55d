package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/slotbook/slotbook/internal/platform/auth"
	"github.com/slotbook/slotbook/pkg/pagination"
	"github.com/slotbook/slotbook/pkg/timewindow"
)

type Handler struct {
	scheduler *Scheduler
	generator *Generator
	calc      *Calculator
}

func NewHandler(scheduler *Scheduler, generator *Generator, calc *Calculator) *Handler {
	return &Handler{scheduler: scheduler, generator: generator, calc: calc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/appointments", h.CreateAppointment)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PATCH("/appointments/:id", h.UpdateAppointment)
	api.POST("/appointments/:id/cancel", h.CancelAppointment)
	api.POST("/appointments/:id/reschedule", h.RescheduleAppointment)
	api.POST("/appointments/:id/convert", h.ConvertWalkIn)

	api.GET("/availability", h.Availability)
	api.GET("/conflicts", h.FindConflicts)

	api.POST("/shifts", h.CreateShift)
	api.GET("/shifts", h.ListShifts)
	api.GET("/shifts/:id", h.GetShift)
	api.DELETE("/shifts/:id", h.DeleteShift)
	api.PATCH("/shifts/:id/status", h.UpdateShiftStatus)
	api.POST("/shifts/recurring", h.CreateRecurringShift)
	api.POST("/shifts/bulk", h.BulkUpdateShifts)
	api.POST("/shifts/bulk-delete", h.BulkDeleteShifts)
	api.POST("/shifts/copy", h.CopyShifts)
}

// httpError maps the engine's error taxonomy onto status codes. Everything
// in the taxonomy is a terminal, user-facing failure.
func httpError(err error) error {
	var (
		vErr *ValidationError
		cErr *ConflictError
		tErr *InvalidTransitionError
		sErr *InvalidStateError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &cErr):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInactive), errors.As(err, &tErr), errors.As(err, &sErr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &vErr):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func tenant(c echo.Context) (auth.TenantContext, error) {
	tc, err := auth.FromEchoContext(c)
	if err != nil {
		return auth.TenantContext{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return tc, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Appointments --

func (h *Handler) CreateAppointment(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	var in CreateAppointmentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.scheduler.CreateAppointment(c.Request().Context(), tc, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	appt, err := h.scheduler.GetAppointment(c.Request().Context(), tc, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	f, err := appointmentFilterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.scheduler.ListAppointments(c.Request().Context(), tc, f, pg.Limit, pg.Offset())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func appointmentFilterFromQuery(c echo.Context) (AppointmentFilter, error) {
	var f AppointmentFilter
	if v := c.QueryParam("member_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid member_id")
		}
		f.MemberID = id
	}
	if v := c.QueryParam("client_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid client_id")
		}
		f.ClientID = id
	}
	if v := c.QueryParam("status"); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Status = st
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "from must be RFC 3339")
		}
		f.From = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "to must be RFC 3339")
		}
		f.To = t
	}
	return f, nil
}

type updateAppointmentRequest struct {
	Status        *string `json:"status,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	InternalNotes *string `json:"internal_notes,omitempty"`
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in := UpdateAppointmentInput{Notes: req.Notes, InternalNotes: req.InternalNotes}
	if req.Status != nil {
		st, err := ParseStatus(*req.Status)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		in.Status = &st
	}
	appt, err := h.scheduler.UpdateAppointment(c.Request().Context(), tc, id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.scheduler.CancelAppointment(c.Request().Context(), tc, id, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

type rescheduleRequest struct {
	StartTime time.Time `json:"start_time"`
	Notes     string    `json:"notes,omitempty"`
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.StartTime.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "start_time is required")
	}
	appt, err := h.scheduler.RescheduleAppointment(c.Request().Context(), tc, id, req.StartTime, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

type convertRequest struct {
	ClientID uuid.UUID `json:"client_id"`
}

func (h *Handler) ConvertWalkIn(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req convertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ClientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id is required")
	}
	appt, err := h.scheduler.ConvertWalkIn(c.Request().Context(), tc, id, req.ClientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// -- Availability / conflicts --

func (h *Handler) Availability(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	memberID, err := uuid.Parse(c.QueryParam("member_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid member_id")
	}
	serviceID, err := uuid.Parse(c.QueryParam("service_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid service_id")
	}
	avail, err := h.calc.IsAvailable(c.Request().Context(), tc, memberID, serviceID, c.QueryParam("date"), c.QueryParam("time"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, avail)
}

func (h *Handler) FindConflicts(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	memberID, err := uuid.Parse(c.QueryParam("member_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid member_id")
	}
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start must be RFC 3339")
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "end must be RFC 3339")
	}
	conflicts, err := h.scheduler.FindConflicts(c.Request().Context(), tc, memberID, start, end)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"conflicts": conflicts})
}

// -- Shifts --

func (h *Handler) CreateShift(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	var in ShiftInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	shift, err := h.generator.CreateShift(c.Request().Context(), tc, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, shift)
}

type recurringShiftRequest struct {
	ShiftInput
	Recurrence recurrenceRequest `json:"recurrence"`
}

type recurrenceRequest struct {
	Pattern        string  `json:"pattern"`
	EndDate        *string `json:"end_date,omitempty"`
	MaxOccurrences *int    `json:"max_occurrences,omitempty"`
	Interval       int     `json:"interval,omitempty"`
	DaysOfWeek     []int   `json:"days_of_week,omitempty"`
}

func (h *Handler) CreateRecurringShift(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	var req recurringShiftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	spec := RecurrenceSpec{
		MaxOccurrences: req.Recurrence.MaxOccurrences,
		Interval:       req.Recurrence.Interval,
		DaysOfWeek:     req.Recurrence.DaysOfWeek,
	}
	pattern, err := timewindow.ParsePattern(req.Recurrence.Pattern)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	spec.Pattern = pattern
	if req.Recurrence.EndDate != nil {
		end, err := parseDate(*req.Recurrence.EndDate)
		if err != nil {
			return httpError(err)
		}
		spec.EndDate = &end
	}
	result, err := h.generator.CreateRecurringShift(c.Request().Context(), tc, req.ShiftInput, spec)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetShift(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	shift, err := h.generator.GetShift(c.Request().Context(), tc, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, shift)
}

func (h *Handler) ListShifts(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	var f ShiftFilter
	if v := c.QueryParam("member_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid member_id")
		}
		f.MemberID = id
	}
	if v := c.QueryParam("from"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			return httpError(err)
		}
		f.From = d
	}
	if v := c.QueryParam("to"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			return httpError(err)
		}
		f.To = d
	}
	pg := pagination.FromContext(c)
	items, total, err := h.generator.ListShifts(c.Request().Context(), tc, f, pg.Limit, pg.Offset())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) DeleteShift(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.generator.DeleteShift(c.Request().Context(), tc, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type shiftStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateShiftStatus(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req shiftStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := ParseStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	shift, err := h.generator.UpdateShiftStatus(c.Request().Context(), tc, id, st)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, shift)
}

type bulkUpdateRequest struct {
	Updates []BulkShiftUpdate `json:"updates"`
}

func (h *Handler) BulkUpdateShifts(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	var req bulkUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.generator.BulkUpdateShifts(c.Request().Context(), tc, req.Updates)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type bulkDeleteRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

func (h *Handler) BulkDeleteShifts(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	var req bulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.generator.BulkDeleteShifts(c.Request().Context(), tc, req.IDs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) CopyShifts(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	var in CopyShiftsInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.generator.CopyShifts(c.Request().Context(), tc, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}
