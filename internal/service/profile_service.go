package service

import (
	"context"

	"supperclub/internal/domain"
	"supperclub/internal/models"

	"github.com/rs/zerolog"
)

var _ domain.ProfileFinder = (*ProfileService)(nil)

// ProfileService finds returning guests for the wizard's contact lookup.
type ProfileService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewProfileService(repo domain.Repository, logger *zerolog.Logger) *ProfileService {
	return &ProfileService{repo: repo, logger: logger}
}

func (s *ProfileService) FindExistingProfile(ctx context.Context, contact string) (*models.Profile, error) {
	profile, err := s.repo.FindProfileByContact(ctx, contact)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to find profile")
		return nil, err
	}
	if profile != nil {
		s.logger.Debug().Int("bookings", profile.BookingsCount).Msg("returning guest found")
	}
	return profile, nil
}
