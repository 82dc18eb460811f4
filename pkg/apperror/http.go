package apperror

import "net/http"

// HTTPStatus maps a domain error to the HTTP status code handlers respond
// with. Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidTransition(err), IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
