package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "vetclinic/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20

// CreatePersonRequest is the POST body. A missing or null id asks the server
// to allocate one.
type CreatePersonRequest struct {
	ID   *int64 `json:"id"`
	Name string `json:"name"`
}

// UpdatePersonRequest is the PUT body. Only the name is applied; an id, if
// sent, must match the path.
type UpdatePersonRequest struct {
	ID   *int64 `json:"id"`
	Name string `json:"name"`
}

// Validate checks the body against the id in the path.
func (r UpdatePersonRequest) Validate(pathID int64) error {
	if r.ID != nil && *r.ID != pathID {
		return dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("id %d in body does not match id %d in path", *r.ID, pathID))
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		case errors.As(err, &maxErr):
			return dErrors.New(dErrors.CodeBadRequest, "request body too large")
		default:
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
		}
	}
	if dec.More() {
		return dErrors.New(dErrors.CodeBadRequest, "request body must contain a single JSON object")
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid person id %q", raw))
	}
	return id, nil
}
