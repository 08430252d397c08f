package httpx

import (
	"net/http"
)

// RespondError writes err as a problem document with the given status. Details of
// server-side failures are withheld from the client.
func RespondError(w http.ResponseWriter, status int, err error) {
	detail := ""
	if err != nil && status < http.StatusInternalServerError {
		detail = err.Error()
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	Problem(w, status, http.StatusText(status), detail)
}
