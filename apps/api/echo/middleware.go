package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/scope"
)

// Identity headers, set by the authenticating proxy.
const (
	HeaderUserID      = "X-User-ID"
	HeaderUserRole    = "X-User-Role"
	HeaderUserSecteur = "X-User-Secteur"
)

var contextUserKey = "user"

// identityMiddleware reads the acting user from the identity headers. A request without a role is rejected.
func identityMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		usr := scope.User{
			ID:             core.CleanString(req.Header.Get(HeaderUserID)),
			Role:           scope.NormalizeRole(req.Header.Get(HeaderUserRole)),
			SecteurAssigne: core.CleanString(req.Header.Get(HeaderUserSecteur)),
		}
		if usr.Role == "" {
			return errUnauthorized
		}
		ctx.Set(contextUserKey, usr)
		return next(ctx)
	}
}

// financeMiddleware restricts the financial reports to the roles allowed to see them.
func financeMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !contextUser(ctx).CanViewFinance() {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

func contextUser(ctx echo.Context) scope.User {
	usr, _ := ctx.Get(contextUserKey).(scope.User)
	return usr
}

func financeScope(ctx echo.Context) scope.Scope {
	return scope.Resolve(contextUser(ctx))
}

func activityScope(ctx echo.Context) scope.Scope {
	return scope.ResolveActivity(contextUser(ctx))
}

// paramID returns the positive int path param `name`. Anything else is not found.
func paramID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}
