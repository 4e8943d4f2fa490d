// Package paginate splits long date ranges into API-sized chunks, fetches
// them one after another and merges the per-chunk series into one result.
package paginate

import (
	"github.com/tejusbharadwaj/meterclient/internal/apierr"
	"github.com/tejusbharadwaj/meterclient/internal/models"
)

// DefaultChunkDays is the chunk length used when none is configured.
const DefaultChunkDays = 30

// ValidateChunkDays rejects chunk lengths below one day.
func ValidateChunkDays(chunkDays int) error {
	if chunkDays < 1 {
		return apierr.Validationf("chunk size must be at least 1 day, got %d", chunkDays)
	}
	return nil
}

// Split divides rng into chunks of at most chunkDays days, newest first.
// Neighbouring chunks share their boundary date: a chunk's From is the next
// chunk's To. When chunkDays >= 2 and the oldest chunk would span a single
// day, it is widened by one day into its neighbour.
func Split(rng models.DateRange, chunkDays int) ([]models.DateRange, error) {
	if err := ValidateChunkDays(chunkDays); err != nil {
		return nil, err
	}
	if !rng.To.After(rng.From) {
		return []models.DateRange{rng}, nil
	}

	var chunks []models.DateRange
	for end := rng.To; end.After(rng.From); {
		start := end.AddDate(0, 0, -chunkDays)
		if start.Before(rng.From) {
			start = rng.From
		}
		chunks = append(chunks, models.DateRange{From: start, To: end})
		end = start
	}

	if n := len(chunks); chunkDays >= 2 && n >= 2 && chunks[n-1].Days() == 1 {
		chunks[n-1].To = chunks[n-1].To.AddDate(0, 0, 1)
	}
	return chunks, nil
}
