package main

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gfiorelli/plantwatch/internal/model"
	"github.com/gfiorelli/plantwatch/internal/services/command"
	"github.com/gfiorelli/plantwatch/internal/services/monitor"
)

// api is the read-mostly local HTTP surface over the client state.
type api struct {
	svc    *monitor.Service
	disp   *command.Dispatcher
	logger zerolog.Logger
}

func registerRoutes(e *echo.Echo, a *api, reg *prometheus.Registry) {
	e.GET("/healthz", a.handleHealth)
	e.GET("/readyz", a.handleReady)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	g := e.Group("/api")
	g.GET("/current", a.handleCurrent)
	g.GET("/reservoir", a.handleReservoir)
	g.GET("/history", a.handleHistory)
	g.GET("/alerts", a.handleAlerts)
	g.POST("/alerts/:id/read", a.handleAckAlert)
	g.GET("/actuators", a.handleActuators)
	g.POST("/plant", a.handleSelectPlant)
	g.POST("/command", a.handleCommand)
}

func (a *api) handleHealth(c echo.Context) error {
	state := a.svc.State()
	status := "ok"
	if state != model.StateConnected {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":     status,
		"connection": state.String(),
		"plant":      a.svc.Plant(),
	})
}

func (a *api) handleReady(c echo.Context) error {
	if !a.svc.Ready() {
		return c.JSON(http.StatusServiceUnavailable, map[string]bool{"ready": false})
	}
	return c.JSON(http.StatusOK, map[string]bool{"ready": true})
}

func (a *api) handleCurrent(c echo.Context) error {
	cr, ok := a.svc.Current()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no reading fused yet")
	}
	return c.JSON(http.StatusOK, cr)
}

func (a *api) handleReservoir(c echo.Context) error {
	levels, ok := a.svc.Reservoir()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no reservoir snapshot yet")
	}
	return c.JSON(http.StatusOK, levels)
}

// handleHistory returns the averaged series for ?plant=, defaulting to the
// active slot. The series is sparse: consumers must not assume uniform
// spacing.
func (a *api) handleHistory(c echo.Context) error {
	plant := a.svc.Plant()
	if q := c.QueryParam("plant"); q != "" {
		p := model.PlantSlot(q)
		if !p.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown plant slot")
		}
		plant = p
	}
	points := a.svc.History(plant)
	if points == nil {
		points = []model.AveragedDataPoint{}
	}
	return c.JSON(http.StatusOK, map[string]any{"plant": plant, "points": points})
}

func (a *api) handleAlerts(c echo.Context) error {
	return c.JSON(http.StatusOK, a.svc.Alerts())
}

func (a *api) handleAckAlert(c echo.Context) error {
	if !a.svc.AckAlert(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown alert")
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *api) handleActuators(c echo.Context) error {
	return c.JSON(http.StatusOK, a.disp.Actuators())
}

func (a *api) handleSelectPlant(c echo.Context) error {
	var body struct {
		Plant string `json:"plant"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if err := a.svc.SelectPlant(model.PlantSlot(body.Plant)); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"plant": body.Plant})
}

func (a *api) handleCommand(c echo.Context) error {
	var body struct {
		Action string `json:"action"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	act := command.Action(body.Action)
	if !act.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action")
	}
	ok := a.disp.SendCommand(context.Background(), act)
	resp := map[string]any{"success": ok}
	if !ok {
		resp["message"] = "command failed, see controlError event"
	}
	return c.JSON(http.StatusOK, resp)
}
