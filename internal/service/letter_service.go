package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/draftwise/coverletter-api/internal/ai"
	"github.com/draftwise/coverletter-api/internal/domain"
	"github.com/draftwise/coverletter-api/internal/repo/postgres"
	"github.com/draftwise/coverletter-api/pkg/config"
	"github.com/draftwise/coverletter-api/pkg/events"
	"github.com/draftwise/coverletter-api/pkg/logger"
)

// ErrGenerationFailed marks upstream provider failures; the use spent on the
// attempt is not refunded (matches the original product behavior).
var ErrGenerationFailed = errors.New("letter generation failed")

// Identity is the acting caller of a credit-consuming operation: either a
// registered user or an IP-keyed guest.
type Identity struct {
	User    *domain.User
	GuestIP string
}

type LetterService interface {
	Generate(ctx context.Context, id Identity, req *domain.GenerateLetterRequest) (*domain.GenerateLetterResponse, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Letter, error)
}

type letterService struct {
	letters   postgres.LetterRepo
	users     postgres.UserRepo
	guests    postgres.GuestRepo
	generator ai.Generator
	eventBus  events.Publisher
	config    *config.Config
}

func NewLetterService(
	letters postgres.LetterRepo,
	users postgres.UserRepo,
	guests postgres.GuestRepo,
	generator ai.Generator,
	eventBus events.Publisher,
	config *config.Config,
) LetterService {
	return &letterService{
		letters:   letters,
		users:     users,
		guests:    guests,
		generator: generator,
		eventBus:  eventBus,
		config:    config,
	}
}

func (s *letterService) Generate(ctx context.Context, id Identity, req *domain.GenerateLetterRequest) (*domain.GenerateLetterResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Spend one use up front with a conditional increment; the check and the
	// spend are a single storage-level statement, so the allowance cannot go
	// negative under concurrent requests from the same identity.
	remaining, err := s.consumeUse(ctx, id)
	if err != nil {
		return nil, err
	}

	content, err := s.generator.GenerateLetter(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	letter := &domain.Letter{
		JobTitle:    req.JobTitle,
		CompanyName: req.CompanyName,
		Content:     content,
	}
	if id.User != nil {
		letter.UserID = &id.User.ID
	} else {
		letter.GuestIP = id.GuestIP
	}

	if err := s.letters.Create(ctx, letter); err != nil {
		// The letter was generated; losing the history row should not fail the
		// request.
		logger.ErrorContext(ctx, "Failed to persist letter", "error", err)
	}

	event := events.LetterGeneratedEvent{
		LetterID:    letter.ID,
		JobTitle:    letter.JobTitle,
		GeneratedAt: time.Now(),
	}
	if id.User != nil {
		event.UserID = id.User.ID
	} else {
		event.GuestIP = id.GuestIP
	}
	if err := s.eventBus.Publish(ctx, events.LetterGenerated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish letter generated event", "error", err)
	}

	return &domain.GenerateLetterResponse{Letter: letter, RemainingUses: remaining}, nil
}

func (s *letterService) consumeUse(ctx context.Context, id Identity) (int, error) {
	if id.User != nil {
		ok, err := s.users.ConsumeUse(ctx, id.User.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to consume use: %w", err)
		}
		if !ok {
			return 0, domain.ErrQuotaExhausted
		}
		// Recount after the spend for an accurate remaining figure.
		u, err := s.users.FindByID(ctx, id.User.ID)
		if err != nil || u == nil {
			return 0, nil
		}
		return u.RemainingUses(), nil
	}

	guest, err := s.guests.FindOrCreateByIP(ctx, id.GuestIP, s.config.Credits.GuestFreeUses)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve guest: %w", err)
	}
	ok, err := s.guests.ConsumeUse(ctx, guest.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to consume use: %w", err)
	}
	if !ok {
		return 0, domain.ErrQuotaExhausted
	}
	if left := guest.UseLimit - guest.ExhaustedUses - 1; left > 0 {
		return left, nil
	}
	return 0, nil
}

func (s *letterService) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Letter, error) {
	letters, err := s.letters.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list letters: %w", err)
	}
	return letters, nil
}
