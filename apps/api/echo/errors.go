package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/activity"
	"github.com/cgbcreil/gestio/core/budget"
	"github.com/cgbcreil/gestio/core/indicator"
	"github.com/cgbcreil/gestio/core/objective"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "utilisateur non identifié")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "accès refusé")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "introuvable")

	notFoundErrors = []error{
		budget.ErrGrantNotFound,
		budget.ErrProjectNotFound,
		activity.ErrParticipantNotFound,
		indicator.ErrNotFound,
		objective.ErrNotFound,
	}
)

func isNotFound(err error) bool {
	for _, nf := range notFoundErrors {
		if err == nf {
			return true
		}
	}
	return false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		origErr := errors.Cause(err)
		switch {
		case core.IsForbidden(err):
			code = http.StatusForbidden
			message = origErr.Error()
		case isNotFound(origErr):
			code = http.StatusNotFound
			message = origErr.Error()
		case origErr == objective.ErrCycle:
			code = http.StatusUnprocessableEntity
			message = err.Error()
		default:
			code, message = classify(err, origErr, translator)
		}

		if code == http.StatusInternalServerError {
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, errors.Wrap(err, msg), contextUser(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// classify maps the typed errors to a status code and a message. Anything unknown is a server error.
func classify(err, origErr error, translator ut.Translator) (int, interface{}) {
	switch origErr := core.TranslateValidation(origErr, translator).(type) {
	case *echo.HTTPError:
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		return origErr.Code, origErr.Message
	case *core.ValidationError:
		if origErr.Fields != nil {
			fldErrs := make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return http.StatusBadRequest, fldErrs
		}
		return http.StatusBadRequest, origErr.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
