package shortener

import (
	"context"
	"errors"
	"log/slog"

	"github.com/s8l-xyz/shortlinker/codegen"
	"github.com/s8l-xyz/shortlinker/internal/errx"
)

const (
	// DefaultMaxAttempts bounds the generate-and-insert loop. Exhausting it
	// surfaces ErrCodeSpaceExhausted instead of retrying forever, which
	// bounds worst-case latency and flags that the code length needs
	// revisiting.
	DefaultMaxAttempts = 10
)

// ShortenRequest represents the parameters for allocating a short link.
type ShortenRequest struct {
	RawURL   string
	OwnerRef string // Optional: opaque caller identity recorded with the link
}

// Service defines the two public operations of the allocation engine.
// Everything the surrounding transports do goes through these.
type Service interface {
	Shorten(ctx context.Context, req ShortenRequest) (Link, error)
	Resolve(ctx context.Context, code string) (string, error)
}

// TitleFetcher retrieves a human-readable title for a destination URL.
// Failures are converted to the TitleUnavailable sentinel at this layer;
// a fetch error never blocks or fails link creation.
type TitleFetcher interface {
	Title(ctx context.Context, url string) (string, error)
}

// ResolveCache is an optional read cache consulted on Resolve. Only the
// lookup is cacheable; click increments always go to the store.
type ResolveCache interface {
	Get(ctx context.Context, code string) (Link, bool)
	Set(ctx context.Context, link Link)
}

type service struct {
	repo        Repository
	normalizer  *Normalizer
	codes       codegen.Generator
	titles      TitleFetcher
	cache       ResolveCache
	logger      *slog.Logger
	codeLength  int
	maxAttempts int
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	ServiceDomain string
	CodeGenerator codegen.Generator
	TitleFetcher  TitleFetcher
	Cache         ResolveCache // nil disables caching
	Logger        *slog.Logger
	CodeLength    int
	MaxAttempts   int
}

// NewService creates a new allocation engine instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	codes := config.CodeGenerator
	if codes == nil {
		codes = codegen.NewURLSafe()
	}

	codeLength := config.CodeLength
	if codeLength <= 0 {
		codeLength = codegen.DefaultLength
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		repo:        repo,
		normalizer:  NewNormalizer(config.ServiceDomain),
		codes:       codes,
		titles:      config.TitleFetcher,
		cache:       config.Cache,
		logger:      logger,
		codeLength:  codeLength,
		maxAttempts: maxAttempts,
	}
}

// Shorten allocates (or reuses) a Link for the given raw URL.
//
// Validating -> Deduplicating -> Generating/Persisting -> Enriching -> Done.
// A Conflict on the destination index anywhere in the loop means a
// concurrent creator won the race; the winner's Link is returned. A
// Conflict on the code index retries with a fresh candidate.
func (s *service) Shorten(ctx context.Context, req ShortenRequest) (Link, error) {
	const op = "shortener.service.Shorten"

	destination, err := s.normalizer.Normalize(req.RawURL)
	if err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	// Idempotent re-shorten: an existing Link for the canonical destination
	// short-circuits the allocation entirely.
	existing, err := s.repo.FindByDestination(ctx, destination)
	if err == nil {
		s.attachOwner(ctx, existing, req.OwnerRef)
		return existing, nil
	}
	if errx.KindOf(err) != errx.NotFound {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	link, err := s.allocate(ctx, destination, req.OwnerRef)
	if err != nil {
		return Link{}, err
	}

	return s.enrich(ctx, link), nil
}

// allocate runs the bounded generate-and-insert loop. The store's unique
// indexes are the only authority on uniqueness; the loop just reacts to
// their conflict signals.
func (s *service) allocate(ctx context.Context, destination, ownerRef string) (Link, error) {
	const op = "shortener.service.allocate"

	for range s.maxAttempts {
		code, err := s.codes.Generate(s.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}

		created, err := s.repo.Insert(ctx, Link{
			DestinationURL: destination,
			ShortCode:      code,
			Title:          TitleUnavailable,
		})
		if err == nil {
			s.attachOwner(ctx, created, ownerRef)
			return created, nil
		}

		switch {
		case errors.Is(err, ErrDestinationTaken):
			// A concurrent creator won the race on this destination between
			// our dedup check and the insert. Their Link is the Link.
			winner, werr := s.repo.FindByDestination(ctx, destination)
			if werr != nil {
				return Link{}, errx.E(op, errx.KindOf(werr), werr)
			}
			s.attachOwner(ctx, winner, ownerRef)
			return winner, nil

		case errors.Is(err, ErrCodeTaken):
			s.logger.DebugContext(ctx, "short code collision, retrying", "code", code)
			continue

		default:
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
	}

	return Link{}, errx.E(op, errx.Unavailable, ErrCodeSpaceExhausted)
}

// enrich fetches the destination's page title and records it. The Link is
// already durably created, so every failure here is logged and swallowed.
func (s *service) enrich(ctx context.Context, link Link) Link {
	if s.titles == nil {
		return link
	}

	title, err := s.titles.Title(ctx, link.DestinationURL)
	if err != nil || title == "" {
		s.logger.WarnContext(ctx, "title fetch failed, keeping sentinel",
			"link_id", link.ID.String(),
			"destination", link.DestinationURL,
			"error", err,
		)
		return link
	}

	if err := s.repo.SetTitle(ctx, link.ID, title); err != nil {
		s.logger.WarnContext(ctx, "failed to store fetched title",
			"link_id", link.ID.String(),
			"error", err.Error(),
		)
		return link
	}

	link.Title = title
	return link
}

// attachOwner records the caller's ownership relation. Best effort: the
// engine's correctness never depends on it.
func (s *service) attachOwner(ctx context.Context, link Link, ownerRef string) {
	if ownerRef == "" {
		return
	}
	if err := s.repo.AttachOwner(ctx, link.ID, ownerRef); err != nil {
		s.logger.WarnContext(ctx, "failed to attach owner",
			"link_id", link.ID.String(),
			"owner_ref", ownerRef,
			"error", err.Error(),
		)
	}
}

// Resolve looks up a code and counts the visit. The lookup and the
// increment are deliberately not one transaction: a click may be counted
// even if the caller never completes the redirect, and a miss never
// mutates anything.
func (s *service) Resolve(ctx context.Context, code string) (string, error) {
	const op = "shortener.service.Resolve"

	if code == "" {
		return "", errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}

	link, cached := s.lookup(ctx, code)
	if !cached {
		var err error
		link, err = s.repo.FindByCode(ctx, code)
		if err != nil {
			return "", errx.E(op, errx.KindOf(err), err)
		}
		if s.cache != nil {
			s.cache.Set(ctx, link)
		}
	}

	if _, err := s.repo.IncrementClicks(ctx, link.ID); err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}

	return link.DestinationURL, nil
}

func (s *service) lookup(ctx context.Context, code string) (Link, bool) {
	if s.cache == nil {
		return Link{}, false
	}
	return s.cache.Get(ctx, code)
}
