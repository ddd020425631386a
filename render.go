package lemystere

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// errorPage is the minimal HTML page served for errors outside /api.
func errorPage(siteName string, status int, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<!doctype html><html lang="en"><head><meta charset="utf-8"><title>%d · %s</title></head><body><h1>%d</h1><p>%s</p></body></html>`,
			status, templ.EscapeString(siteName), status, templ.EscapeString(message))
		return err
	})
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimited
	}
	if status >= 500 {
		return CodeInternal
	}
	return CodeBadRequest
}

// toAPIError maps handler errors onto the response taxonomy.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if fields := ValidationFields(err); fields != nil {
		return &APIError{Status: http.StatusBadRequest, Code: CodeValidation, Message: "invalid input", Fields: fields}
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return &APIError{Status: http.StatusNotFound, Code: CodeNotFound, Message: "not found"}
	case errors.Is(err, ErrSlugConflict):
		return &APIError{Status: http.StatusConflict, Code: CodeConflict, Message: "slug already exists",
			Fields: map[string]string{"slug": "already in use"}}
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrBadLogin):
		return &APIError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: strings.TrimPrefix(err.Error(), "lemystere: ")}
	case errors.Is(err, ErrForbidden):
		return &APIError{Status: http.StatusForbidden, Code: CodeForbidden, Message: "admin access required"}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return &APIError{Status: he.Code, Code: codeForStatus(he.Code), Message: msg}
	}
	return &APIError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal server error"}
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	apiErr := toAPIError(err)
	if apiErr.Status >= 500 {
		a.Logger.Error("server error",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"err", err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	if !strings.HasPrefix(c.Request().URL.Path, "/api/") {
		_ = RenderStatus(c, apiErr.Status, errorPage(a.Config.Name, apiErr.Status, apiErr.Message))
		return
	}
	_ = c.JSON(apiErr.Status, struct {
		Error *APIError `json:"error"`
	}{apiErr})
}
