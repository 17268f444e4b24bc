package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"blinddate-backend/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ErrorResponse represents an error response. Title is the heading of the
// dialog the client shows.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Title       string   `json:"title,omitempty"`
	WaitSeconds int      `json:"wait_seconds,omitempty"`
	Failed      []string `json:"failed,omitempty"`
	Names       []string `json:"names,omitempty"`
}

// SuccessResponse is the body of operations that return no data
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Title: defaultTitle(statusCode)})
}

// respondJSON sends v as JSON
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the body into v and validates its struct tags. The
// returned error is safe to show.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("Invalid request body")
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New(validationMessage(verrs[0]))
		}
		return errors.New("Invalid request body")
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "min":
		return fmt.Sprintf("%s must have at least %s item(s)", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// respondServiceError maps a service error to status, title and message.
// Storage and gateway details are logged, never returned.
func respondServiceError(w http.ResponseWriter, err error, logMsg string) {
	var (
		ve *services.ValidationError
		re *services.RateLimitError
		ee *services.EmptyGroupError
		ie *services.InsufficientCapacityError
		ce *services.ConflictError
		pe *services.PartialFailureError
		de *services.DispatchError
	)

	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Message, Title: "Missing Information"})
	case errors.As(err, &re):
		respondJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error:       re.Error(),
			Title:       "Please Wait",
			WaitSeconds: re.WaitSeconds,
		})
	case errors.Is(err, services.ErrOTPNotFound):
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Title: "No OTP Found"})
	case errors.Is(err, services.ErrOTPExpired):
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Title: "OTP Expired"})
	case errors.Is(err, services.ErrInvalidCode):
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Title: "Invalid OTP"})
	case errors.Is(err, services.ErrInvalidCredentials):
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Title: "Login Failed"})
	case errors.Is(err, services.ErrStudentNotFound),
		errors.Is(err, services.ErrEventNotFound),
		errors.Is(err, services.ErrPartneringNotFound):
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Title: "Not Found"})
	case errors.As(err, &ee):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: ee.Error(), Title: "No Students"})
	case errors.As(err, &ie):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: ie.Error(), Title: "Not Enough Students"})
	case errors.As(err, &ce):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: ce.Message, Title: "Already Exists", Names: ce.Names})
	case errors.As(err, &pe):
		log.Error().Err(err).Strs("failed", pe.IDs).Msg(logMsg)
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:  fmt.Sprintf("%d item(s) could not be processed.", len(pe.IDs)),
			Title:  "Partially Completed",
			Failed: pe.IDs,
		})
	case errors.As(err, &de):
		log.Error().Err(err).Msg(logMsg)
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to send SMS. Please try again.",
			Title: "SMS Failed",
		})
	default:
		log.Error().Err(err).Msg(logMsg)
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Something went wrong. Please try again.",
			Title: "Error",
		})
	}
}

func defaultTitle(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "Missing Information"
	case http.StatusUnauthorized, http.StatusForbidden:
		return "Not Allowed"
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusTooManyRequests:
		return "Please Wait"
	default:
		return "Error"
	}
}
