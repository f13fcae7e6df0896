package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/s8l-xyz/shortlinker/internal/errx"
	"github.com/s8l-xyz/shortlinker/internal/httpx"
	"github.com/s8l-xyz/shortlinker/internal/shortener"
	"github.com/s8l-xyz/shortlinker/internal/worker"
)

// maxBodyBytes caps the webhook request body read.
const maxBodyBytes = 1 << 20

var greetings = map[string]bool{
	"hi":    true,
	"hello": true,
	"hey":   true,
	"yo":    true,
}

var helpCommands = map[string]bool{
	"help":  true,
	"usage": true,
	"?":     true,
}

const (
	greetingReply = "Hi! Send me any URL and I'll reply with a short link and a QR code.\n\nExample:\nhttps://www.example.com"
	helpReply     = "Send a URL to get a short link:\n- http:// and https:// both work\n- a bare domain like example.com works too\n\nYou'll get the short link plus a scannable QR code."
	invalidReply  = "That doesn't look like a URL. Send something like https://www.example.com"
	busyReply     = "The service is temporarily unavailable, please try again later."
)

// Handler processes inbound webhook requests. Signature verification and
// the immediate 200 response happen on the request goroutine; the actual
// shortening and reply are handed to the worker pool.
type Handler struct {
	secret    string
	sigHeader string
	baseURL   string
	service   shortener.Service
	replier   Replier
	pool      *worker.Pool
	logger    *slog.Logger
}

// HandlerConfig holds configuration for the webhook handler.
type HandlerConfig struct {
	ChannelSecret   string
	SignatureHeader string
	BaseURL         string // public base URL, used to build short and QR URLs
	Service         shortener.Service
	Replier         Replier
	Pool            *worker.Pool
	Logger          *slog.Logger
}

// NewHandler creates a webhook Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sigHeader := cfg.SignatureHeader
	if sigHeader == "" {
		sigHeader = "X-Signature"
	}

	return &Handler{
		secret:    cfg.ChannelSecret,
		sigHeader: sigHeader,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		service:   cfg.Service,
		replier:   cfg.Replier,
		pool:      cfg.Pool,
		logger:    logger,
	}
}

// Handle handles POST /webhook.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", httpx.GetRequestID(ctx))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.WarnContext(ctx, "failed to read webhook body", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "could not read request body", nil)
		return
	}

	if !VerifySignature(h.secret, body, r.Header.Get(h.sigHeader)) {
		logger.WarnContext(ctx, "webhook signature verification failed")
		httpx.WriteError(w, http.StatusBadRequest, "invalid_signature", "signature verification failed", nil)
		return
	}

	events, err := ParseEvents(body)
	if err != nil {
		logger.WarnContext(ctx, "failed to parse webhook events", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed event payload", nil)
		return
	}

	for _, event := range events {
		if !event.IsTextMessage() {
			continue
		}

		ev := event
		if !h.pool.Submit(func(taskCtx context.Context) { h.process(taskCtx, ev) }) {
			logger.WarnContext(ctx, "webhook task queue full, dropping event",
				"user_id", ev.Source.UserID,
			)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// process shortens the message text and replies. Runs on a worker
// goroutine with its own timeout, detached from the webhook request.
func (h *Handler) process(ctx context.Context, event Event) {
	text := strings.TrimSpace(event.Message.Text)
	logger := h.logger.With("user_id", event.Source.UserID)

	if msgs, ok := h.cannedReply(text); ok {
		h.reply(ctx, logger, event.ReplyToken, msgs)
		return
	}

	link, err := h.service.Shorten(ctx, shortener.ShortenRequest{
		RawURL:   text,
		OwnerRef: "webhook:" + event.Source.UserID,
	})
	if err != nil {
		h.reply(ctx, logger, event.ReplyToken, []Message{TextMessage(h.errorReply(err))})
		return
	}

	shortURL := fmt.Sprintf("%s/%s", h.baseURL, link.ShortCode)
	qrURL := fmt.Sprintf("%s/qr/%s", h.baseURL, link.ShortCode)

	logger.InfoContext(ctx, "webhook link allocated",
		"short_code", link.ShortCode,
		"destination", link.DestinationURL,
	)

	h.reply(ctx, logger, event.ReplyToken, []Message{
		TextMessage("Your short link:\n" + shortURL + "\n\nScan the QR code below to open it directly."),
		ImageMessage(qrURL),
	})
}

// cannedReply returns a fixed response for greetings and help commands.
func (h *Handler) cannedReply(text string) ([]Message, bool) {
	lower := strings.ToLower(text)
	switch {
	case greetings[lower]:
		return []Message{TextMessage(greetingReply)}, true
	case helpCommands[lower]:
		return []Message{TextMessage(helpReply)}, true
	default:
		return nil, false
	}
}

// errorReply maps engine failures to short user-facing texts. Invalid
// input surfaces its own actionable message; everything else collapses to
// a generic retry hint.
func (h *Handler) errorReply(err error) string {
	switch {
	case errors.Is(err, shortener.ErrSelfReferential):
		return shortener.ErrSelfReferential.Error()
	case errors.Is(err, shortener.ErrInvalidURL):
		return invalidReply
	case errx.KindOf(err) == errx.Invalid:
		return invalidReply
	default:
		return busyReply
	}
}

func (h *Handler) reply(ctx context.Context, logger *slog.Logger, replyToken string, messages []Message) {
	if err := h.replier.Reply(ctx, replyToken, messages); err != nil {
		logger.WarnContext(ctx, "failed to send webhook reply", "error", err.Error())
	}
}
