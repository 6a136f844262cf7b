package extract

import (
	"context"
	"errors"

	"github.com/anderson-ufrj/meeting-intelligence/internal/meeting"
)

// ErrSchemaInvalid is returned once the extractor has exhausted its bounded
// retries without producing a bundle that passes validation.
var ErrSchemaInvalid = errors.New("extraction schema invalid")

// Extractor turns working text plus the participant list into a structured
// insight bundle. Schema retries are the implementation's own concern; a
// returned error is terminal for the pipeline run.
type Extractor interface {
	Extract(ctx context.Context, text string, participants []string) (*meeting.InsightBundle, error)
}
