package imgclient

import (
	"errors"
	"fmt"
	"strings"
)

// RequestError is returned when the server answers with a non-success status.
// Body holds the server's human readable diagnostic, if any.
type RequestError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Status)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

func (e *RequestError) IsClientError() bool { return e.StatusCode >= 400 && e.StatusCode < 500 }
func (e *RequestError) IsServerError() bool { return e.StatusCode >= 500 }

// StatusCode extracts the HTTP status of a RequestError anywhere in err's chain.
func StatusCode(err error) (int, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re.StatusCode, true
	}
	return 0, false
}
