package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dukerupert/harvest/internal/domain"
)

// DecodeJSON decodes the request body into v. An empty body leaves v
// untouched. Oversized bodies map to ETOOLARGE, malformed JSON to EINVALID.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return domain.Errorf(domain.ETOOLARGE, "request.decode", "Request body too large")
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return domain.Errorf(domain.EINVALID, "request.decode", "Invalid value for %s", typeErr.Field)
	}
	return domain.Errorf(domain.EINVALID, "request.decode", "Invalid JSON body")
}
