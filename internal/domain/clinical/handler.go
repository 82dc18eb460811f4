package clinical

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/pkg/apperror"
	"github.com/clinicdesk/clinicdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/appointments", h.scheduleAppointment)
	g.GET("/appointments/today", h.todaysAppointments)
	g.GET("/appointments/upcoming", h.upcomingAppointments)
	g.GET("/appointments/:id", h.getAppointment)
	g.POST("/appointments/:id/complete", h.completeAppointment)
	g.POST("/appointments/:id/cancel", h.cancelAppointment)
	g.POST("/appointments/:id/no-show", h.markNoShow)
	g.POST("/appointments/:id/reminder-sent", h.markReminderSent)
	g.GET("/patients/:id/appointments", h.listAppointments)

	g.POST("/medications", h.addMedication)
	g.GET("/medications/:id", h.getMedication)
	g.PUT("/medications/:id", h.updateMedication)
	g.PATCH("/medications/:id/status", h.updateMedicationStatus)
	g.GET("/patients/:id/medications", h.listMedications)

	g.POST("/allergies", h.addAllergy)
	g.DELETE("/allergies/:id", h.removeAllergy)
	g.GET("/patients/:id/allergies", h.listAllergies)

	g.POST("/visit-notes", h.addVisitNote)
	g.GET("/patients/:id/visit-notes", h.listVisitNotes)

	g.GET("/patients/:id/summary", h.patientSummary)
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

func (h *Handler) scheduleAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Schedule(c.Request().Context(), &a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) getAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	appt, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) todaysAppointments(c echo.Context) error {
	appts, err := h.svc.TodaysAppointments(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) upcomingAppointments(c echo.Context) error {
	appts, err := h.svc.UpcomingAppointments(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) transitionHandler(c echo.Context, fn func(echo.Context, uuid.UUID) (*Appointment, error)) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	appt, err := fn(c, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) completeAppointment(c echo.Context) error {
	return h.transitionHandler(c, func(c echo.Context, id uuid.UUID) (*Appointment, error) {
		return h.svc.Complete(c.Request().Context(), id)
	})
}

func (h *Handler) cancelAppointment(c echo.Context) error {
	return h.transitionHandler(c, func(c echo.Context, id uuid.UUID) (*Appointment, error) {
		return h.svc.Cancel(c.Request().Context(), id)
	})
}

func (h *Handler) markNoShow(c echo.Context) error {
	return h.transitionHandler(c, func(c echo.Context, id uuid.UUID) (*Appointment, error) {
		return h.svc.MarkNoShow(c.Request().Context(), id)
	})
}

func (h *Handler) markReminderSent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.SetReminderSent(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listAppointments(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), id, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) addMedication(c echo.Context) error {
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddMedication(c.Request().Context(), &m); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) getMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	med, err := h.svc.GetMedication(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, med)
}

func (h *Handler) updateMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	med, err := h.svc.UpdateMedication(c.Request().Context(), id, &m)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, med)
}

func (h *Handler) updateMedicationStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	med, err := h.svc.UpdateMedicationStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, med)
}

func (h *Handler) listMedications(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	activeOnly := c.QueryParam("active") == "true"
	meds, err := h.svc.ListMedications(c.Request().Context(), id, activeOnly)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, meds)
}

func (h *Handler) addAllergy(c echo.Context) error {
	var a Allergy
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddAllergy(c.Request().Context(), &a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) removeAllergy(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.RemoveAllergy(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listAllergies(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	allergies, err := h.svc.ListAllergies(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, allergies)
}

func (h *Handler) addVisitNote(c echo.Context) error {
	var v VisitNote
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddVisitNote(c.Request().Context(), &v); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) listVisitNotes(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	notes, err := h.svc.ListVisitNotes(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	p := pagination.FromContext(c)
	page := pagination.Slice(notes, p)
	return c.JSON(http.StatusOK, pagination.NewResponse(page, len(notes), p.Limit, p.Offset))
}

func (h *Handler) patientSummary(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	summary, err := h.svc.Summary(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, summary)
}
