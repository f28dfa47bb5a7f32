package errorhandler

import (
	"context"
	"net/http"

	"github.com/mwork/rewards-api/internal/pkg/logger"
	"github.com/mwork/rewards-api/internal/pkg/response"
)

// HandleError logs err with the request's logger and sends the error envelope.
// Statuses below 500 are logged at warn level.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	l := logger.FromContext(ctx)
	event := l.Error()
	if status < http.StatusInternalServerError {
		event = l.Warn()
	}
	if err != nil {
		event = event.Err(err)
	}
	event.
		Str("error_code", code).
		Int("status_code", status).
		Msg(message)

	response.Error(w, status, code, message)
}

// HandleInternal hides err from the client and reports a generic 500.
func HandleInternal(ctx context.Context, w http.ResponseWriter, err error) {
	logger.FromContext(ctx).Error().Err(err).Msg("Request failed")
	response.InternalError(w)
}

// LogValidationError logs field errors and sends them back as a 422.
func LogValidationError(ctx context.Context, w http.ResponseWriter, fieldErrors map[string]string) {
	logger.FromContext(ctx).Warn().
		Interface("validation_errors", fieldErrors).
		Msg("Validation error")
	response.ValidationError(w, fieldErrors)
}
