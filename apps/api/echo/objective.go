package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core/objective"
)

type objectiveApi struct {
	svc *objective.Service
}

func registerObjectiveAPI(g *echo.Group, svc *objective.Service) {
	api := objectiveApi{svc: svc}
	g.GET("/objectifs/:id", api.evaluate)
}

// Handlers

// evaluate computes the success tree of an objective. Evaluations are attendance data: the activity scope applies.
func (api *objectiveApi) evaluate(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	res, err := api.svc.Evaluate(ctx.Request().Context(), activityScope(ctx), id)
	if err != nil {
		return errors.Wrap(err, "evaluating objective")
	}
	return ctx.JSON(http.StatusOK, res)
}
