package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/s8l-xyz/shortlinker/internal/errx"
	"github.com/s8l-xyz/shortlinker/internal/httpx"
	"github.com/s8l-xyz/shortlinker/internal/qr"
)

// MaxCodeLength bounds the code accepted from the URL path before the
// service layer is consulted.
const MaxCodeLength = 32

// HTTPShortenRequest represents the JSON request body for creating a link.
type HTTPShortenRequest struct {
	URL      string `json:"url"`
	OwnerRef string `json:"owner_ref,omitempty"`
}

// ShortenResponse represents the JSON response for an allocated link.
type ShortenResponse struct {
	ShortCode      string `json:"short_code"`
	DestinationURL string `json:"destination_url"`
	Title          string `json:"title"`
	ShortURL       string `json:"short_url"`
}

// Handler provides HTTP handlers for the short-link service.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // Base URL for constructing short URLs (e.g., "https://s8l.xyz")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: cfg.BaseURL,
	}
}

// Shorten handles POST requests to allocate a short link.
func (h *Handler) Shorten(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	req, err := httpx.DecodeJSON[HTTPShortenRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if req.URL == "" {
		logger.WarnContext(ctx, "request validation failed", "error", "url is required")
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "url is required", nil)
		return
	}

	link, err := h.service.Shorten(ctx, ShortenRequest{
		RawURL:   req.URL,
		OwnerRef: req.OwnerRef,
	})
	if err != nil {
		h.handleShortenError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "link allocated",
		"link_id", link.ID.String(),
		"short_code", link.ShortCode,
	)

	httpx.WriteJSON(w, http.StatusCreated, ShortenResponse{
		ShortCode:      link.ShortCode,
		DestinationURL: link.DestinationURL,
		Title:          link.Title,
		ShortURL:       fmt.Sprintf("%s/%s", h.baseURL, link.ShortCode),
	})
}

// Redirect handles GET requests that resolve a code and redirect to the
// destination. Each successful resolution counts one click.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	code := r.PathValue("code")
	if err := validateCodeFormat(code); err != nil {
		logger.WarnContext(ctx, "invalid code format",
			"code", code,
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)
		return
	}

	destination, err := h.service.Resolve(ctx, code)
	if err != nil {
		h.handleResolveError(ctx, w, err, code)
		return
	}

	logger.InfoContext(ctx, "code resolved",
		"code", code,
		"destination", destination,
		"referer", r.Referer(),
	)

	http.Redirect(w, r, destination, http.StatusFound)
}

// QRCode handles GET requests for a PNG QR image of a short URL. The image
// encodes the short URL itself; no engine lookup happens here, so scanning
// a QR for an unknown code simply 404s at resolve time.
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := r.PathValue("code")
	if err := validateCodeFormat(code); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)
		return
	}

	size := qr.ParseSize(r.URL.Query().Get("size"))
	img, err := qr.PNG(fmt.Sprintf("%s/%s", h.baseURL, code), size)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to render qr image",
			"request_id", httpx.GetRequestID(ctx),
			"code", code,
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to render the QR code at this time", nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		h.logger.WarnContext(ctx, "failed to write qr image", "error", err.Error())
	}
}

// handleShortenError maps Shorten failures to HTTP responses.
func (h *Handler) handleShortenError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch {
	case errors.Is(err, ErrSelfReferential):
		h.logger.WarnContext(ctx, "self-referential destination rejected", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input",
			ErrSelfReferential.Error(), nil)

	case kind == errx.Invalid:
		h.logger.WarnContext(ctx, "invalid shorten request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errors.Is(err, ErrCodeSpaceExhausted):
		h.logger.ErrorContext(ctx, "code space exhausted", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			ErrCodeSpaceExhausted.Error(), nil)

	case kind == errx.Unavailable:
		h.logger.ErrorContext(ctx, "store unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to create a short link at this time. Please try again.", nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error allocating link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to create a short link at this time. Please try again.", nil)
	}
}

// handleResolveError maps Resolve failures to HTTP responses. A missing
// code (404) is deliberately distinct from an unavailable store (503) so
// callers can pick different recovery.
func (h *Handler) handleResolveError(ctx context.Context, w http.ResponseWriter, err error, code string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"code", code,
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "code not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"short link doesn't exist", nil)

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid code", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "store unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to resolve this link at this time", nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error resolving link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to resolve this link at this time", nil)
	}
}

// validateCodeFormat performs basic code validation for the HTTP layer.
// This is a lightweight check before calling the service layer.
func validateCodeFormat(code string) error {
	if code == "" {
		return errors.New("code is required")
	}
	if len(code) > MaxCodeLength {
		return errors.New("invalid link")
	}
	return nil
}
