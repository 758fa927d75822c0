// Package submit orchestrates a single incident submission: best-effort
// photo upload, mandatory location lookup, and exactly one store insert.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/resqrelief/incident-feed/internal/domain"
	"github.com/resqrelief/incident-feed/internal/observability"
)

var (
	// ErrLocationUnavailable means no location could be assigned; the
	// submission as a whole fails, since a report without a location is
	// unusable for responders.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrPersistenceFailed means the store insert failed after a location
	// was already assigned. The receipt still carries that location so the
	// client can tell the reporter their position was captured.
	ErrPersistenceFailed = errors.New("incident not persisted")
)

// LocationProvider assigns the reporter's position.
type LocationProvider interface {
	Locate(ctx context.Context) (domain.Location, error)
}

// MediaStore persists raw photo bytes and returns a stable public URL.
type MediaStore interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// Inserter writes an incident to the store. The returned incident has id
// and created_at populated.
type Inserter interface {
	Insert(ctx context.Context, incident domain.Incident) (domain.Incident, error)
}

// Input is one submission from the SOS form. Only the disaster type is
// required.
type Input struct {
	DisasterType string `validate:"required"`
	Message      string
	Image        []byte
}

// Receipt is what the reporter gets back. Location is populated whenever a
// location was assigned, including the ErrPersistenceFailed case.
type Receipt struct {
	Location domain.Location
	Incident domain.Incident
}

// Pipeline runs submissions. Each call makes exactly one insert attempt;
// retry policy belongs to the store and transport layers, not here.
type Pipeline struct {
	location LocationProvider
	media    MediaStore
	store    Inserter
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Pipeline. media may be nil when photo upload is disabled;
// submissions then proceed without image URLs.
func New(location LocationProvider, media MediaStore, store Inserter, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		location: location,
		media:    media,
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		metrics:  metrics,
	}
}

// Submit runs one incident submission.
//
// The image upload is best-effort: a media failure drops the photo, not the
// report. The location lookup is mandatory: its failure fails the call with
// ErrLocationUnavailable. A store failure after that point returns
// ErrPersistenceFailed together with a receipt that still carries the
// assigned location.
func (p *Pipeline) Submit(ctx context.Context, input Input) (Receipt, error) {
	if err := p.validate.Struct(input); err != nil {
		p.metrics.Submissions.WithLabelValues("invalid").Inc()
		return Receipt{}, fmt.Errorf("%w: %v", domain.ErrMissingDisasterType, err)
	}

	imageURL := p.uploadImage(ctx, input)

	location, err := p.location.Locate(ctx)
	if err != nil {
		p.logger.Error("location lookup failed, rejecting submission",
			"disaster_type", input.DisasterType, "error", err)
		p.metrics.Submissions.WithLabelValues("location_unavailable").Inc()
		return Receipt{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}

	incident := domain.Incident{
		DisasterType: input.DisasterType,
		Message:      input.Message,
		ImageURL:     imageURL,
		Location:     location.Label,
		Coordinates:  location.Coordinates,
	}

	stored, err := p.store.Insert(ctx, incident)
	if err != nil {
		p.logger.Error("incident insert failed",
			"disaster_type", input.DisasterType, "location", location.Label, "error", err)
		p.metrics.Submissions.WithLabelValues("persistence_failed").Inc()
		// The location was captured before the write failed; hand it back so
		// the reporter still sees "your location was shared".
		return Receipt{Location: location}, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	p.logger.Info("incident submitted",
		"incident_id", stored.ID,
		"disaster_type", stored.DisasterType,
		"location", stored.Location,
		"has_image", stored.ImageURL != "",
	)
	p.metrics.Submissions.WithLabelValues("accepted").Inc()

	return Receipt{Location: location, Incident: stored}, nil
}

// uploadImage pushes the photo to the media store, returning its public URL
// or "" when there is no photo, no media store, or the upload failed.
func (p *Pipeline) uploadImage(ctx context.Context, input Input) string {
	if len(input.Image) == 0 || p.media == nil {
		return ""
	}
	url, err := p.media.Upload(ctx, input.Image)
	if err != nil {
		p.logger.Warn("image upload failed, continuing without photo",
			"disaster_type", input.DisasterType, "bytes", len(input.Image), "error", err)
		p.metrics.MediaUploads.WithLabelValues("error").Inc()
		return ""
	}
	p.metrics.MediaUploads.WithLabelValues("success").Inc()
	return url
}
