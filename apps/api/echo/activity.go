package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/activity"
)

type activityApi struct {
	svc *activity.Service
}

func registerActivityAPI(g *echo.Group, svc *activity.Service) {
	api := activityApi{svc: svc}

	ag := g.Group("/stats-impact")
	ag.GET("", api.dashboard)
	ag.GET("/magatomatique", api.matrix)
	ag.GET("/ateliers", api.workshops)
	ag.DELETE("/participants/:id", api.deleteParticipant)
}

func bindActivityFilter(ctx echo.Context) activity.Filter {
	rf := activity.RawFilter{
		DateFrom:   ctx.QueryParam("date_from"),
		DateTo:     ctx.QueryParam("date_to"),
		Secteur:    ctx.QueryParam("secteur"),
		WorkshopID: ctx.QueryParam("atelier_id"),
	}
	return rf.Normalize()
}

func bindMatrixOptions(ctx echo.Context) activity.MatrixOptions {
	return activity.MatrixOptions{
		View:            ctx.QueryParam("magato_view"),
		ParticipantQ:    ctx.QueryParam("participant_q"),
		MaxSessions:     core.ParseInt(ctx.QueryParam("max_sessions")),
		MaxParticipants: core.ParseInt(ctx.QueryParam("max_participants")),
	}
}

// Handlers

func (api *activityApi) dashboard(ctx echo.Context) error {
	opts := bindMatrixOptions(ctx)
	report, err := api.svc.Dashboard(ctx.Request().Context(), activityScope(ctx), bindActivityFilter(ctx), &opts)
	if err != nil {
		return errors.Wrap(err, "computing activity dashboard")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *activityApi) matrix(ctx echo.Context) error {
	res, err := api.svc.Matrix(ctx.Request().Context(), activityScope(ctx), bindActivityFilter(ctx), bindMatrixOptions(ctx))
	if err != nil {
		return errors.Wrap(err, "computing matrix")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *activityApi) workshops(ctx echo.Context) error {
	rows, err := api.svc.WorkshopExport(ctx.Request().Context(), activityScope(ctx), bindActivityFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "exporting workshops")
	}
	if rows == nil {
		rows = []activity.WorkshopSummary{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *activityApi) deleteParticipant(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.DeleteParticipant(ctx.Request().Context(), activityScope(ctx), id); err != nil {
		return errors.Wrap(err, "deleting participant")
	}
	return ctx.NoContent(http.StatusNoContent)
}
