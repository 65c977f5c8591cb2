package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type shortcodeStore interface {
	Create(ctx context.Context, params entity.CreateParams) (*entity.URL, error)
	Resolve(ctx context.Context, shortCode, referrer string) (string, error)
	Stats(ctx context.Context, shortCode string) (*entity.URL, error)
}

type urlHandler struct {
	store    shortcodeStore
	validate *validator.Validate
	baseURL  string
}

func newURLHandler(store shortcodeStore, validate *validator.Validate, baseURL string) *urlHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &urlHandler{
		store:    store,
		validate: validate,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	url, err := h.store.Create(r.Context(), req.toParams())
	if err != nil {
		status, resp := createErrorResponse(err)
		if status >= http.StatusInternalServerError {
			httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
		}

		render.Status(r, status)
		render.JSON(w, r, resp)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toShortenResponse(h.baseURL, url))
}

func createErrorResponse(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, entity.ErrInvalidURL):
		return http.StatusBadRequest, invalidURLResponse
	case errors.Is(err, entity.ErrInvalidValidity):
		return http.StatusBadRequest, invalidValidityResponse
	case errors.Is(err, entity.ErrInvalidShortCode):
		return http.StatusBadRequest, invalidShortCodeResponse
	case errors.Is(err, entity.ErrShortCodeTaken):
		return http.StatusConflict, shortCodeTakenResponse
	case errors.Is(err, entity.ErrPersistenceFailed):
		return http.StatusServiceUnavailable, storageErrorResponse
	case errors.Is(err, entity.ErrGenerationExhausted):
		return http.StatusServiceUnavailable, generationFailedResponse
	default:
		return http.StatusInternalServerError, serverErrorResponse
	}
}

// redirect sends the client on to the original URL. A click that could not be
// persisted is logged, but the redirect still happens.
func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, chi.URLParam(r, "shortCode"))
}

// redirectTo serves a short code whose path is shadowed by a static route.
func (h *urlHandler) redirectTo(shortCode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.resolve(w, r, shortCode)
	}
}

func (h *urlHandler) resolve(w http.ResponseWriter, r *http.Request, shortCode string) {
	originalURL, err := h.store.Resolve(r.Context(), shortCode, r.Referer())
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrURLNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, urlNotFoundResponse)
			return
		case errors.Is(err, entity.ErrURLExpired):
			render.Status(r, http.StatusGone)
			render.JSON(w, r, urlExpiredResponse)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		if originalURL == "" {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, serverErrorResponse)
			return
		}
	}

	http.Redirect(w, r, originalURL, http.StatusFound)
}

func (h *urlHandler) getURLStats(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	url, err := h.store.Stats(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, urlNotFoundResponse)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toStatsResponse(url))
}
