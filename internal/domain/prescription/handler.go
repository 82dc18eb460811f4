package prescription

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/pkg/apperror"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/prescriptions", h.compose)
	g.GET("/prescriptions/:id", h.get)
	g.GET("/prescriptions/:id/document", h.document)
	g.GET("/prescriptions/:id/document.txt", h.documentText)
	g.GET("/patients/:id/prescriptions", h.listByPatient)
	g.POST("/drug-interactions", h.addInteraction)
	g.GET("/drug-interactions", h.listInteractions)
}

func httpError(err error) error {
	return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) compose(c echo.Context) error {
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Compose(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) render(c echo.Context) (*Document, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	if c.QueryParam("resolved") == "true" {
		return h.svc.RenderResolved(c.Request().Context(), id)
	}
	return h.svc.Render(c.Request().Context(), id)
}

func (h *Handler) document(c echo.Context) error {
	doc, err := h.render(c)
	if err != nil {
		if _, ok := err.(*echo.HTTPError); ok {
			return err
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) documentText(c echo.Context) error {
	doc, err := h.render(c)
	if err != nil {
		if _, ok := err.(*echo.HTTPError); ok {
			return err
		}
		return httpError(err)
	}
	return c.String(http.StatusOK, doc.Text())
}

func (h *Handler) addInteraction(c echo.Context) error {
	var i DrugInteraction
	if err := c.Bind(&i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddInteraction(c.Request().Context(), &i); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, i)
}

func (h *Handler) listInteractions(c echo.Context) error {
	items, err := h.svc.ListInteractions(c.Request().Context(), c.QueryParam("drug"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) listByPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}
