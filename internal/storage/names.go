package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/benford-lab/internal/utils"
)

// Output purposes used for generated artefacts.
const (
	PurposePlot   = "benford_plot"
	PurposeReport = "benford_report"
)

// UploadName returns "<YYYYMMDD_HHMMSS>_<id>_<sanitized original>" for an intake file.
func UploadName(original string, now time.Time) (string, error) {
	safe := SanitizeFilename(original)
	if safe == "" {
		return "", fmt.Errorf("%w: empty filename", ErrInvalidPath)
	}
	return fmt.Sprintf("%s_%s_%s", utils.Stamp(now), shortID(), safe), nil
}

// OutputName returns "<purpose>_<YYYYMMDD_HHMMSS>_<id>.<ext>" for a generated artefact.
func OutputName(purpose, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.%s", purpose, utils.Stamp(now), shortID(), strings.TrimPrefix(ext, "."))
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
