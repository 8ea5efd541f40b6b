package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"roadAccident/pkg/e"
	"roadAccident/pkg/validator"
)

const maxJSONBody = 1 << 20

// BindJSON decodes the request body into dst and validates it. Every failure
// wraps e.ErrInvalidInput. An empty body leaves dst at its zero value.
func BindJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: %v: %w", err, e.ErrInvalidInput)
	}
	if err := validator.ValidateStruct(dst); err != nil {
		return fmt.Errorf("%v: %w", err, e.ErrInvalidInput)
	}
	return nil
}
