package directory

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/slotbook/slotbook/internal/platform/auth"
	"github.com/slotbook/slotbook/internal/platform/db"
	"github.com/slotbook/slotbook/pkg/pagination"
)

type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/members", h.CreateMember)
	api.GET("/members", h.ListMembers)
	api.GET("/members/:id", h.GetMember)
	api.PUT("/members/:id", h.UpdateMember)
	api.DELETE("/members/:id", h.DeactivateMember)
	api.PUT("/members/external/:external_id", h.UpsertExternalMember)

	api.POST("/services", h.CreateService)
	api.GET("/services", h.ListServices)
	api.GET("/services/:id", h.GetService)
	api.PUT("/services/:id", h.UpdateService)
	api.DELETE("/services/:id", h.DeactivateService)

	api.POST("/clients", h.CreateClient)
	api.GET("/clients", h.ListClients)
	api.GET("/clients/:id", h.GetClient)
	api.PUT("/clients/:id", h.UpdateClient)
	api.DELETE("/clients/:id", h.DeactivateClient)
	api.PUT("/clients/external/:external_id", h.UpsertExternalClient)
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

// -- Members --

func (h *Handler) CreateMember(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	var m Member
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.mgr.CreateMember(c.Request().Context(), tc, &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMember(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	m, err := h.mgr.GetMember(c.Request().Context(), tc, id)
	if err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "member not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMembers(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("active") == "true"
	items, total, err := h.mgr.ListMembers(c.Request().Context(), tc, activeOnly, pg.Limit, pg.Offset())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateMember(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var m Member
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = id
	if err := h.mgr.UpdateMember(c.Request().Context(), tc, &m); err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "member not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeactivateMember(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.mgr.DeactivateMember(c.Request().Context(), tc, id); err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "member not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type upsertMemberRequest struct {
	DisplayName string  `json:"display_name"`
	Email       *string `json:"email"`
}

func (h *Handler) UpsertExternalMember(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	var req upsertMemberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.mgr.UpsertExternalMember(c.Request().Context(), tc, c.Param("external_id"), req.DisplayName, req.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

// -- Services --

func (h *Handler) CreateService(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	var s Service
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.mgr.CreateService(c.Request().Context(), tc, &s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetService(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	s, err := h.mgr.GetService(c.Request().Context(), tc, id)
	if err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "service not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListServices(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("active") == "true"
	items, total, err := h.mgr.ListServices(c.Request().Context(), tc, activeOnly, pg.Limit, pg.Offset())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateService(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var s Service
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.ID = id
	if err := h.mgr.UpdateService(c.Request().Context(), tc, &s); err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "service not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) DeactivateService(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.mgr.DeactivateService(c.Request().Context(), tc, id); err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "service not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Clients --

func (h *Handler) CreateClient(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	var cl Client
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.mgr.CreateClient(c.Request().Context(), tc, &cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) GetClient(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	cl, err := h.mgr.GetClient(c.Request().Context(), tc, id)
	if err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "client not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) ListClients(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("active") == "true"
	items, total, err := h.mgr.ListClients(c.Request().Context(), tc, activeOnly, pg.Limit, pg.Offset())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateClient(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var cl Client
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl.ID = id
	if err := h.mgr.UpdateClient(c.Request().Context(), tc, &cl); err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "client not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) DeactivateClient(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.mgr.DeactivateClient(c.Request().Context(), tc, id); err != nil {
		if db.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "client not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type upsertClientRequest struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

func (h *Handler) UpsertExternalClient(c echo.Context) error {
	tc, err := tenant(c)
	if err != nil {
		return err
	}
	var req upsertClientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.mgr.UpsertExternalClient(c.Request().Context(), tc, c.Param("external_id"), req.Name, req.Phone, req.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, cl)
}
