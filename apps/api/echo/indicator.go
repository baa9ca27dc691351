package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core/indicator"
)

type (
	indicatorApi struct {
		svc        *indicator.Service
		validate   *validator.Validate
		translator ut.Translator
	}

	IndicatorsResponse struct {
		Indicators []indicator.Indicator `json:"indicateurs"`
		Evaluation indicator.Report      `json:"evaluation"`
	}

	PackRequest struct {
		Pack string `json:"pack" validate:"required"`
	}

	PackResponse struct {
		Added int `json:"added"`
	}
)

func registerIndicatorAPI(g *echo.Group, svc *indicator.Service, validate *validator.Validate, translator ut.Translator) {
	api := indicatorApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	pg := g.Group("/projets/:id/indicateurs")
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.POST("/packs", api.addPack)

	ig := g.Group("/indicateurs/:id")
	ig.PUT("", api.update)
	ig.DELETE("", api.destroy)
	ig.POST("/toggle", api.toggle)
}

// Handlers

func (api *indicatorApi) query(ctx echo.Context) error {
	projectID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	rctx, sc := ctx.Request().Context(), financeScope(ctx)

	indicators, err := api.svc.List(rctx, sc, projectID)
	if err != nil {
		return errors.Wrap(err, "listing indicators")
	}
	report, err := api.svc.Evaluate(rctx, sc, projectID, bindFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "evaluating indicators")
	}
	if indicators == nil {
		indicators = []indicator.Indicator{}
	}
	return ctx.JSON(http.StatusOK, IndicatorsResponse{Indicators: indicators, Evaluation: report})
}

func (api *indicatorApi) create(ctx echo.Context) error {
	projectID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data indicator.NewIndicator
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewIndicator")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	ind, err := api.svc.Add(ctx.Request().Context(), financeScope(ctx), projectID, data)
	if err != nil {
		return errors.Wrap(err, "adding indicator")
	}
	return ctx.JSON(http.StatusCreated, ind)
}

func (api *indicatorApi) addPack(ctx echo.Context) error {
	projectID, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data PackRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PackRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	added, err := api.svc.AddPack(ctx.Request().Context(), financeScope(ctx), projectID, data.Pack)
	if err != nil {
		return errors.Wrap(err, "adding pack")
	}
	return ctx.JSON(http.StatusOK, PackResponse{Added: added})
}

func (api *indicatorApi) update(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data indicator.RawParams
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RawParams")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	ind, err := api.svc.SaveParams(ctx.Request().Context(), financeScope(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "saving indicator params")
	}
	return ctx.JSON(http.StatusOK, ind)
}

func (api *indicatorApi) toggle(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	ind, err := api.svc.Toggle(ctx.Request().Context(), financeScope(ctx), id)
	if err != nil {
		return errors.Wrap(err, "toggling indicator")
	}
	return ctx.JSON(http.StatusOK, ind)
}

func (api *indicatorApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), financeScope(ctx), id); err != nil {
		return errors.Wrap(err, "deleting indicator")
	}
	return ctx.NoContent(http.StatusNoContent)
}
