package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/indicator"
	"github.com/cgbcreil/gestio/core/scope"
)

type (
	KindInfo struct {
		Code      string `json:"code"`
		Label     string `json:"label"`
		Unit      string `json:"unit"`
		Financial bool   `json:"financier"`
	}

	MetaResponse struct {
		User       scope.User       `json:"user"`
		Finance    bool             `json:"finance"`
		Secteurs   []string         `json:"secteurs"`
		Roles      []string         `json:"roles"`
		Indicators []KindInfo       `json:"indicateurs"`
		Packs      []indicator.Pack `json:"packs"`
	}
)

func registerMetaAPI(g *echo.Group, conf *core.Config) {
	g.GET("/meta", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, meta(contextUser(ctx), conf))
	})
}

// meta lists what a client needs to build its forms: the sectors the user may pick and the indicator catalogue.
func meta(usr scope.User, conf *core.Config) MetaResponse {
	secteurs := make([]string, 0, len(conf.Secteurs))
	sc := scope.ResolveActivity(usr)
	for _, s := range conf.Secteurs {
		if sc.Allows(s) {
			secteurs = append(secteurs, s)
		}
	}

	kinds := indicator.Kinds()
	infos := make([]KindInfo, len(kinds))
	for i, k := range kinds {
		infos[i] = KindInfo{Code: k.Code(), Label: k.Label(), Unit: k.Unit(), Financial: k.IsFinancial()}
	}

	return MetaResponse{
		User:       usr,
		Finance:    usr.CanViewFinance(),
		Secteurs:   secteurs,
		Roles:      scope.AllRoles,
		Indicators: infos,
		Packs:      indicator.Packs(),
	}
}
