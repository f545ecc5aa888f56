package handler

import (
	"net/http"
	"strconv"

	"safarank-api/internal/logger"
	"safarank-api/internal/middleware"
	"safarank-api/internal/web"
	"safarank-api/pkg/apierror"

	"github.com/go-chi/chi/v5"
)

const unexpectedError = "Ha ocurrido un error inesperado."

var errBadID = apierror.NotFound("invalid identifier")

// parseID reads a positive integer URL parameter.
func parseID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// formID reads a positive integer form value.
func formID(r *http.Request, field string) (int64, error) {
	id, err := strconv.ParseInt(r.FormValue(field), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.ValidationError(field + " must be a positive integer")
	}
	return id, nil
}

// queryPage reads the 1-based page query parameter.
func queryPage(r *http.Request) int {
	p, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || p < 1 {
		return 1
	}
	return p
}

// newPage builds template data with the current user and pending flash.
func newPage(w http.ResponseWriter, r *http.Request, title string, data interface{}) *web.Page {
	return &web.Page{
		Title: title,
		User:  middleware.CurrentUser(r.Context()),
		Flash: web.PopFlash(w, r),
		Data:  data,
	}
}

// notices are the flash texts for typed errors whose own message is not
// meant for the page.
var notices = map[string]string{
	apierror.CodeNotFound:     "No se ha encontrado lo que buscabas.",
	apierror.CodeForbidden:    "No tienes permiso para hacer eso.",
	apierror.CodeUnauthorized: "Inicia sesión para continuar.",
	apierror.CodeConflict:     "Ya existe un registro con esos datos.",
}

// fail reports err as a flash notice and redirects to location. Validation
// errors show their message and other 4xx errors a fixed notice; anything
// else is logged and shown as a generic notice.
func fail(w http.ResponseWriter, r *http.Request, err error, location string) {
	if apiErr, ok := apierror.From(err); ok && apiErr.StatusCode < http.StatusInternalServerError {
		msg, found := notices[apiErr.Code]
		if !found {
			msg = apiErr.Message
		}
		web.Redirect(w, r, location, web.FlashError, msg)
		return
	}
	logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	web.Redirect(w, r, location, web.FlashError, unexpectedError)
}

// fieldErrors flattens validation details into a field to message map.
func fieldErrors(err error) (map[string]string, bool) {
	apiErr, ok := apierror.From(err)
	if !ok || apiErr.Code != apierror.CodeValidation {
		return nil, false
	}
	out := make(map[string]string, len(apiErr.Details))
	for _, d := range apiErr.Details {
		out[d.Field] = d.Message
	}
	return out, true
}
