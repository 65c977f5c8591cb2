package http

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const (
	statusError = "error"
	timeLayout  = "2006-01-02T15:04:05.000Z07:00"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// shortenRequest is the body of POST /api/shorten. Validity is in minutes.
type shortenRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required,http_url"`
	Validity    *int   `json:"validity,omitempty" validate:"omitempty,gt=0"`
	ShortCode   string `json:"shortcode,omitempty" validate:"omitempty,alphanum,max=64"`
}

func (req shortenRequest) toParams() entity.CreateParams {
	return entity.CreateParams{
		OriginalURL: req.OriginalURL,
		Validity:    req.Validity,
		ShortCode:   req.ShortCode,
	}
}

type shortenResponse struct {
	ShortURL  string `json:"shortUrl"`
	ShortCode string `json:"shortcode"`
	Expiry    string `json:"expiry"`
}

func toShortenResponse(baseURL string, url *entity.URL) shortenResponse {
	return shortenResponse{
		ShortURL:  baseURL + "/" + url.ShortCode,
		ShortCode: url.ShortCode,
		Expiry:    formatTime(url.ExpiresAt),
	}
}

type clickResponse struct {
	Timestamp string `json:"timestamp"`
	Referrer  string `json:"referrer"`
}

type statsResponse struct {
	ShortCode   string          `json:"shortcode"`
	OriginalURL string          `json:"original_url"`
	CreatedAt   string          `json:"created_at"`
	ExpiresAt   string          `json:"expires_at"`
	ClickCount  int             `json:"click_count"`
	Clicks      []clickResponse `json:"clicks"`
}

func toStatsResponse(url *entity.URL) statsResponse {
	clicks := make([]clickResponse, 0, len(url.Clicks))
	for _, c := range url.Clicks {
		clicks = append(clicks, clickResponse{
			Timestamp: formatTime(c.Timestamp),
			Referrer:  c.Referrer,
		})
	}

	return statsResponse{
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		CreatedAt:   formatTime(url.CreatedAt),
		ExpiresAt:   formatTime(url.ExpiresAt),
		ClickCount:  url.ClickCount(),
		Clicks:      clicks,
	}
}

type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse repeats Message under "error", the key browser clients of
// the service read.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  []validationError `json:"errors,omitempty"`
}

func newErrorResponse(message string) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: message,
		Error:   message,
	}
}

var (
	emptyRequestBodyResponse   = newErrorResponse("empty request body")
	invalidRequestBodyResponse = newErrorResponse("invalid request body")
	invalidURLResponse         = newErrorResponse("invalid url")
	invalidValidityResponse    = newErrorResponse("validity must be a positive number of minutes")
	invalidShortCodeResponse   = newErrorResponse("shortcode must be alphanumeric and at most 64 characters")
	shortCodeTakenResponse     = newErrorResponse("shortcode already exists")
	generationFailedResponse   = newErrorResponse("could not generate a unique shortcode")
	urlNotFoundResponse        = newErrorResponse("shortcode not found")
	urlExpiredResponse         = newErrorResponse("link expired")
	storageErrorResponse       = newErrorResponse("url could not be saved, try again later")
	serverErrorResponse        = newErrorResponse("server error occurred")
)

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "http_url":
		return "invalid url"
	case "gt":
		return "must be greater than zero"
	case "alphanum":
		return "must contain only letters and digits"
	case "max":
		return "too long"
	default:
		return "invalid value"
	}
}

func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	errs, ok := err.(validator.ValidationErrors)
	if ok {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

func validationErrorResponse(err error) errorResponse {
	resp := newErrorResponse("validation error")
	resp.Errors = getValidationErrors(err)
	return resp
}
