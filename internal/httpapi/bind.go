package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

type bindError struct{ msg string }

func (e *bindError) Error() string { return e.msg }

// decodeJSON reads exactly one JSON value into dst, rejecting unknown fields.
// An empty body is an error unless optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) (bool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var (
			syn *json.SyntaxError
			typ *json.UnmarshalTypeError
			mbe *http.MaxBytesError
		)
		switch {
		case errors.Is(err, io.EOF):
			if optional {
				return false, nil
			}
			return false, &bindError{"request body is empty"}
		case errors.As(err, &syn), errors.Is(err, io.ErrUnexpectedEOF):
			return false, &bindError{"malformed JSON"}
		case errors.As(err, &typ):
			if typ.Field != "" {
				return false, &bindError{fmt.Sprintf("field %q has the wrong type", typ.Field)}
			}
			return false, &bindError{"wrong JSON type"}
		case errors.As(err, &mbe):
			return false, &bindError{"request body too large"}
		default:
			// unknown fields surface as plain errors from encoding/json
			return false, &bindError{err.Error()}
		}
	}
	if dec.More() {
		return false, &bindError{"request body must hold a single JSON object"}
	}
	return true, nil
}
