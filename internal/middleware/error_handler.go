package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"customerIntel/pkg/logger"
	jsonres "customerIntel/pkg/response"
)

// ErrorHandler renders errors that escape handlers, such as unknown routes
// and binder failures, in the same envelope the middleware uses.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	}

	if code >= http.StatusInternalServerError {
		logger.Error("Unhandled request error", "path", c.Path(), "error", err)
	}

	var sendErr error
	if c.Request().Method == http.MethodHead {
		sendErr = c.NoContent(code)
	} else {
		sendErr = c.JSON(code, jsonres.Error(http.StatusText(code), message, nil))
	}
	if sendErr != nil {
		logger.Error("Failed to write error response", "error", sendErr)
	}
}
