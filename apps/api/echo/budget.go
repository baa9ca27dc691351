package echoapi

import (
	"bytes"
	"net/http"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/budget"
)

type (
	budgetApi struct {
		svc        *budget.Service
		validate   *validator.Validate
		translator ut.Translator
	}

	VentilationResponse struct {
		Success string          `json:"success"`
		Reals   map[int]float64 `json:"lignes"`
	}
)

func registerBudgetAPI(g *echo.Group, svc *budget.Service, validate *validator.Validate, translator ut.Translator) {
	api := budgetApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	g.GET("/stats", api.stats)
	g.GET("/bilan", api.bilan)

	bg := g.Group("/bilans")
	bg.GET("", api.dashboard)
	bg.GET("/secteur", api.secteurBilan)
	bg.GET("/subvention", api.grantBilanForYear)
	bg.GET("/qualite", api.quality)

	sg := g.Group("/subventions/:id")
	sg.GET("/bilan", api.grantBilan)
	sg.GET("/pilotage", api.pilotage)
	sg.POST("/ventilation", api.ventilate)
	sg.GET("/lignes", api.lines)
	sg.POST("/lignes", api.addLine)
	sg.GET("/comptes", api.accounts)

	eg := g.Group("/export")
	eg.GET("/depenses", api.exportExpenses)
	eg.GET("/subventions/:id", api.exportGrant)
}

// bindFilter reads the page filter from the query string. Unparseable values are dropped.
func bindFilter(ctx echo.Context) budget.Filter {
	f := budget.Filter{
		Year:      core.ParseInt(ctx.QueryParam("annee")),
		Secteur:   ctx.QueryParam("secteur"),
		ProjectID: core.ParseInt(ctx.QueryParam("projet_id")),
	}
	f.Clean()
	return f
}

func queryYear(ctx echo.Context) int {
	if year := core.ParseInt(ctx.QueryParam("annee")); year > 0 {
		return year
	}
	return 0
}

// Handlers

func (api *budgetApi) stats(ctx echo.Context) error {
	report, err := api.svc.Stats(ctx.Request().Context(), financeScope(ctx), bindFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *budgetApi) bilan(ctx echo.Context) error {
	report, err := api.svc.Bilan(ctx.Request().Context(), financeScope(ctx), bindFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "computing bilan")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *budgetApi) dashboard(ctx echo.Context) error {
	report, err := api.svc.Dashboard(ctx.Request().Context(), financeScope(ctx), queryYear(ctx))
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *budgetApi) secteurBilan(ctx echo.Context) error {
	report, err := api.svc.SecteurBilan(ctx.Request().Context(), financeScope(ctx), queryYear(ctx), ctx.QueryParam("secteur"))
	if err != nil {
		return errors.Wrap(err, "computing sector bilan")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *budgetApi) grantBilanForYear(ctx echo.Context) error {
	grantID := core.ParseInt(ctx.QueryParam("subvention_id"))
	report, err := api.svc.GrantBilanForYear(ctx.Request().Context(), financeScope(ctx), queryYear(ctx), grantID)
	if err != nil {
		return errors.Wrap(err, "computing grant bilan")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *budgetApi) quality(ctx echo.Context) error {
	report, err := api.svc.Quality(ctx.Request().Context(), financeScope(ctx), queryYear(ctx))
	if err != nil {
		return errors.Wrap(err, "computing quality")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *budgetApi) grantBilan(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	report, err := api.svc.GrantBilan(ctx.Request().Context(), financeScope(ctx), id)
	if err != nil {
		return errors.Wrap(err, "computing grant bilan")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *budgetApi) pilotage(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	report, err := api.svc.Pilotage(ctx.Request().Context(), financeScope(ctx), id)
	if err != nil {
		return errors.Wrap(err, "computing pilotage")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *budgetApi) ventilate(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data budget.VentilationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VentilationRequest")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	reals, err := api.svc.Ventilate(ctx.Request().Context(), financeScope(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "ventilating")
	}
	return ctx.JSON(http.StatusOK, VentilationResponse{
		Success: strconv.Itoa(len(reals)) + " ligne(s) ventilée(s).",
		Reals:   reals,
	})
}

func (api *budgetApi) lines(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	rows, err := api.svc.Lines(ctx.Request().Context(), financeScope(ctx), id, ctx.QueryParam("compte"), ctx.QueryParam("nature"))
	if err != nil {
		return errors.Wrap(err, "listing lines")
	}
	if rows == nil {
		rows = []budget.LineRow{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *budgetApi) addLine(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data budget.NewLine
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLine")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	line, err := api.svc.AddLine(ctx.Request().Context(), financeScope(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "adding line")
	}
	return ctx.JSON(http.StatusCreated, line)
}

func (api *budgetApi) accounts(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	accounts, err := api.svc.Accounts(ctx.Request().Context(), financeScope(ctx), id, ctx.QueryParam("nature"))
	if err != nil {
		return errors.Wrap(err, "listing accounts")
	}
	if accounts == nil {
		accounts = []string{}
	}
	return ctx.JSON(http.StatusOK, accounts)
}

func csvAttachment(ctx echo.Context, filename string, buf *bytes.Buffer) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (api *budgetApi) exportExpenses(ctx echo.Context) error {
	var buf bytes.Buffer
	if err := api.svc.ExportExpensesCSV(ctx.Request().Context(), financeScope(ctx), &buf); err != nil {
		return errors.Wrap(err, "exporting expenses")
	}
	return csvAttachment(ctx, "depenses.csv", &buf)
}

func (api *budgetApi) exportGrant(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := api.svc.ExportGrantCSV(ctx.Request().Context(), financeScope(ctx), id, &buf); err != nil {
		return errors.Wrap(err, "exporting grant")
	}
	return csvAttachment(ctx, "subvention_"+strconv.Itoa(id)+".csv", &buf)
}
