package shortener

import (
	"time"

	"github.com/google/uuid"
)

// TitleUnavailable is stored when the destination's page title could not
// be fetched. Enrichment is best effort, so a Link may carry this value
// forever.
const TitleUnavailable = "title unavailable"

// Link binds a short code to a destination URL. Once created it is never
// deleted or re-keyed; only the title (once) and the click counter mutate.
type Link struct {
	ID             uuid.UUID
	DestinationURL string
	ShortCode      string
	Title          string
	ClickCount     int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
