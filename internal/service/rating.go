package service

import (
	"context"
	"log/slog"

	"github.com/mmcdole/reel/internal/domain"
)

// RatingService rates videos. Ratings are not cached, so nothing is invalidated.
type RatingService struct {
	source domain.DataSource
	logger *slog.Logger
}

// NewRatingService creates a new RatingService
func NewRatingService(source domain.DataSource, logger *slog.Logger) *RatingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RatingService{source: source, logger: logger}
}

// Rate rates a video on a 0-10 scale. The service uses 0-5 in half steps, so
// the rating is clamped and halved.
func (s *RatingService) Rate(ctx context.Context, videoID string, rating float64) error {
	scaled := ServiceRating(rating)
	s.logger.Debug("rating video", "video_id", videoID, "rating", scaled)

	_, err := s.source.Fetch(ctx, domain.Request{
		Kind:      domain.RequestPost,
		Component: "set_video_rating",
		Params:    map[string]any{"titleid": videoID, "rating": scaled},
	})
	return err
}

// ServiceRating converts a 0-10 rating to the service's 0-5 scale
func ServiceRating(rating float64) float64 {
	return min(10, max(0, rating)) / 2
}
