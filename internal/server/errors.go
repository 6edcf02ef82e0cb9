package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hyperjump/iasistente/internal/models"
)

// chatError maps a chat failure to its status, client detail and metric outcome. Index load
// failures are logged in full by the store, so the client only gets the generic message.
func chatError(err error, domain string) (status int, detail, outcome string) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, err.Error(), "invalid"
	case errors.Is(err, models.ErrIndexNotFound):
		return http.StatusNotFound, fmt.Sprintf("%s: %s", models.ErrIndexNotFound, domain), "not_found"
	case errors.Is(err, models.ErrIndexLoad):
		return http.StatusInternalServerError, "unexpected error: " + models.ErrIndexLoad.Error(), "index_load"
	default:
		return http.StatusInternalServerError, "unexpected error: " + err.Error(), "error"
	}
}

// validationDetail turns validator errors into one readable line per failed field.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "domain":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a valid knowledge domain", fe.Field(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
