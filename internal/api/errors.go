package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/codeclub/liveclass/internal/session"
)

var errActorRequired = echo.NewHTTPError(http.StatusUnauthorized, "X-Actor-ID header required")

// appHTTPErrorHandler maps engine failures onto HTTP statuses: missing
// resources are 404, insufficient role is 403, invalid state transitions and
// malformed payloads are 400. Anything else is a 500 with the detail kept out
// of the response.
func appHTTPErrorHandler(err error, ctx echo.Context) {
	var code int
	var message interface{}

	cause := errors.Cause(err)
	switch {
	case session.IsNotFound(cause):
		code = http.StatusNotFound
		message = cause.Error()
	case session.IsRoleViolation(cause):
		code = http.StatusForbidden
		message = cause.Error()
	case session.IsStateViolation(cause):
		code = http.StatusBadRequest
		message = cause.Error()
	default:
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = "failed on " + vErr.Tag()
			}
			code = http.StatusBadRequest
			message = fldErrs
		default:
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
			ctx.Logger().Error(err)
		}
	}

	if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}

	if !ctx.Response().Committed {
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Logger().Error(err)
		}
	}
}
