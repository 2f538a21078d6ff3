package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	courtserrors "courtbook/internal/courts/errors"
	"courtbook/internal/courts/repository"
	"courtbook/internal/courts/validator"
	"courtbook/pkg/config"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/locale"
	"courtbook/pkg/model"
	"courtbook/pkg/sanitizer"
)

const (
	defaultAdvanceBookingDays = 14
	defaultMinDurationMinutes = 60
	defaultMaxDurationMinutes = 180
	defaultNoShowGraceMinutes = 15
	defaultOpen               = "06:00"
	defaultClose              = "22:00"
)

type CourtService interface {
	Create(ctx context.Context, court *model.Court) error
	GetByID(ctx context.Context, id string) (*model.Court, error)
	GetByCode(ctx context.Context, code string) (*model.Court, error)
	GetAll(ctx context.Context, status model.CourtStatus, limit int, offset int64) ([]*model.Court, int64, error)
	Update(ctx context.Context, id string, expectedVersion int64, updates *model.CourtUpdate) (*model.Court, error)
	Delete(ctx context.Context, id string, expectedVersion int64) error
}

// BookingChecker is the part of the booking store that guards court removal.
type BookingChecker interface {
	HasFutureBookings(ctx context.Context, courtID string, now time.Time) (bool, error)
}

type courtService struct {
	repo      repository.CourtRepository
	bookings  BookingChecker
	validator *validator.CourtValidator
	cfg       *config.Config
	nowFn     func() time.Time
}

func NewCourtService(
	repo repository.CourtRepository,
	bookings BookingChecker,
	validator *validator.CourtValidator,
	cfg *config.Config,
) CourtService {
	return &courtService{
		repo:      repo,
		bookings:  bookings,
		validator: validator,
		cfg:       cfg,
		nowFn:     time.Now,
	}
}

func (s *courtService) Create(ctx context.Context, court *model.Court) error {
	s.sanitize(court)
	s.applyDefaults(court)

	if err := s.validator.Validate(court); err != nil {
		s.cfg.Log.Warn("Court validation failed",
			"code", court.Code,
			"name", court.Name,
			"error", err,
		)
		return validationError(err)
	}

	if err := s.repo.Create(ctx, court); err != nil {
		if errors.Is(err, courtserrors.ErrDuplicateCode) {
			return apperrors.Conflict("Court with code " + court.Code + " already exists")
		}
		s.cfg.Log.Error("Failed to create court",
			"code", court.Code,
			"error", err,
		)
		return apperrors.Internal("Failed to create court", err)
	}

	s.cfg.Log.Info("Court created successfully",
		"id", court.ID,
		"code", court.Code,
		"name", court.Name,
		"time_zone", court.TimeZone,
	)
	return nil
}

func (s *courtService) GetByID(ctx context.Context, id string) (*model.Court, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Court ID cannot be empty")
	}

	court, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, "id", id)
	}
	return court, nil
}

func (s *courtService) GetByCode(ctx context.Context, code string) (*model.Court, error) {
	code = sanitizer.NormalizeCode(code)
	if code == "" {
		return nil, apperrors.InvalidInput("Court code cannot be empty")
	}

	court, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, s.lookupError(err, "code", code)
	}
	return court, nil
}

func (s *courtService) GetAll(ctx context.Context, status model.CourtStatus, limit int, offset int64) ([]*model.Court, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var count int64
	var courts []*model.Court
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(sharedCtx, status)
		if err != nil {
			s.cfg.Log.Error("Failed to count courts", "error", err)
			errCount = apperrors.Internal("Failed to count courts", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		courts, err = s.repo.FindAll(sharedCtx, status, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get all courts",
				"status", status,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve courts", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	if courts == nil {
		courts = []*model.Court{}
	}
	return courts, count, nil
}

// Update applies a partial change. An expectedVersion of 0 takes the stored version;
// the body's version, when set, must agree with it.
func (s *courtService) Update(ctx context.Context, id string, expectedVersion int64, updates *model.CourtUpdate) (*model.Court, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Court ID cannot be empty")
	}
	if updates.Version != 0 {
		if expectedVersion != 0 && expectedVersion != updates.Version {
			return nil, apperrors.InvalidInput("version in body does not match If-Match header")
		}
		expectedVersion = updates.Version
	}

	s.sanitizeUpdate(updates)
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, validationError(err)
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, "id", id)
	}
	if expectedVersion == 0 {
		expectedVersion = existing.Version
	}
	if expectedVersion != existing.Version {
		return nil, apperrors.ConcurrentModification("court", id)
	}

	merged := mergeCourtUpdates(existing, updates)
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Court validation failed",
			"id", id,
			"code", merged.Code,
			"error", err,
		)
		return nil, validationError(err)
	}

	updated, err := s.repo.UpdateWithVersionCheck(ctx, id, expectedVersion, merged)
	if err != nil {
		return nil, s.writeError(err, id)
	}

	s.cfg.Log.Info("Court updated successfully",
		"id", id,
		"code", updated.Code,
		"status", updated.Status,
		"version", updated.Version,
	)
	return updated, nil
}

// Delete closes the court. Courts are never removed because bookings keep referring to them.
func (s *courtService) Delete(ctx context.Context, id string, expectedVersion int64) error {
	if id == "" {
		return apperrors.InvalidInput("Court ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.lookupError(err, "id", id)
	}
	if expectedVersion == 0 {
		expectedVersion = existing.Version
	}
	if expectedVersion != existing.Version {
		return apperrors.ConcurrentModification("court", id)
	}

	busy, err := s.bookings.HasFutureBookings(ctx, id, s.nowFn().UTC())
	if err != nil {
		s.cfg.Log.Error("Failed to check future bookings", "id", id, "error", err)
		return apperrors.Internal("Failed to check future bookings", err)
	}
	if busy {
		return apperrors.Conflict("Court has upcoming bookings and cannot be deleted").
			WithDetail("court_id", id)
	}

	if existing.Status == model.CourtClosed {
		return nil
	}
	closed := *existing
	closed.Status = model.CourtClosed
	if _, err := s.repo.UpdateWithVersionCheck(ctx, id, expectedVersion, &closed); err != nil {
		return s.writeError(err, id)
	}

	s.cfg.Log.Info("Court closed", "id", id, "code", existing.Code)
	return nil
}

func (s *courtService) lookupError(err error, key, value string) error {
	if errors.Is(err, courtserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Court", value)
	}
	if errors.Is(err, courtserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid court ID format")
	}
	s.cfg.Log.Error("Failed to get court", key, value, "error", err)
	return apperrors.Internal("Failed to retrieve court", err)
}

func (s *courtService) writeError(err error, id string) error {
	switch {
	case errors.Is(err, courtserrors.ErrVersionConflict):
		return apperrors.ConcurrentModification("court", id)
	case errors.Is(err, courtserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Court", id)
	}
	s.cfg.Log.Error("Failed to update court", "id", id, "error", err)
	return apperrors.Internal("Failed to update court", err)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.ValidationFields("Court validation failed", verrs.Fields())
	}
	return apperrors.Internal("Failed to validate court", err)
}

func (s *courtService) sanitize(court *model.Court) {
	court.Code = sanitizer.NormalizeCode(court.Code)
	court.Name = sanitizer.NormalizeName(court.Name)
	court.Description = sanitizer.TrimAndNormalize(court.Description)
	court.Type = strings.ToLower(strings.TrimSpace(court.Type))
	court.TimeZone = strings.TrimSpace(court.TimeZone)
	court.Pricing.Currency = strings.ToUpper(strings.TrimSpace(court.Pricing.Currency))
	court.OperatingHours = normalizeDays(court.OperatingHours)
}

func (s *courtService) sanitizeUpdate(updates *model.CourtUpdate) {
	if updates.Name != "" {
		updates.Name = sanitizer.NormalizeName(updates.Name)
	}
	if updates.Description != nil {
		d := sanitizer.TrimAndNormalize(*updates.Description)
		updates.Description = &d
	}
	updates.Type = strings.ToLower(strings.TrimSpace(updates.Type))
	updates.TimeZone = strings.TrimSpace(updates.TimeZone)
	if updates.Pricing != nil {
		updates.Pricing.Currency = strings.ToUpper(strings.TrimSpace(updates.Pricing.Currency))
	}
	updates.OperatingHours = normalizeDays(updates.OperatingHours)
}

func normalizeDays(hours map[string]model.OperatingHours) map[string]model.OperatingHours {
	if hours == nil {
		return nil
	}
	out := make(map[string]model.OperatingHours, len(hours))
	for day, h := range hours {
		out[strings.ToLower(strings.TrimSpace(day))] = h
	}
	return out
}

func (s *courtService) applyDefaults(court *model.Court) {
	if court.Status == "" {
		court.Status = model.CourtActive
	}
	if court.TimeZone == "" {
		court.TimeZone = s.cfg.DefaultTimeZone
	}
	if court.Pricing.Currency == "" {
		court.Pricing.Currency = locale.CurrencyFor(court.TimeZone, s.cfg.DefaultCurrency)
	}
	if len(court.OperatingHours) == 0 {
		court.OperatingHours = make(map[string]model.OperatingHours, 7)
		for d := time.Sunday; d <= time.Saturday; d++ {
			court.OperatingHours[model.WeekdayName(d)] = model.OperatingHours{Open: defaultOpen, Close: defaultClose, IsOpen: true}
		}
	}

	rules := &court.BookingRules
	if rules.AdvanceBookingDays == 0 {
		rules.AdvanceBookingDays = defaultAdvanceBookingDays
	}
	if rules.MinDurationMinutes == 0 {
		rules.MinDurationMinutes = defaultMinDurationMinutes
	}
	if rules.MaxDurationMinutes == 0 {
		rules.MaxDurationMinutes = max(defaultMaxDurationMinutes, rules.MinDurationMinutes)
	}
	if rules.NoShowGraceMinutes == 0 {
		rules.NoShowGraceMinutes = defaultNoShowGraceMinutes
	}
	if len(rules.CancellationPolicy) == 0 {
		rules.CancellationPolicy = model.DefaultCancellationPolicy()
	}
}

func mergeCourtUpdates(existing *model.Court, updates *model.CourtUpdate) *model.Court {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.Type != "" {
		merged.Type = updates.Type
	}
	if updates.Status != "" {
		merged.Status = updates.Status
	}
	if updates.TimeZone != "" {
		merged.TimeZone = updates.TimeZone
	}
	if updates.Pricing != nil {
		merged.Pricing = *updates.Pricing
	}
	if updates.PeakHours != nil {
		merged.PeakHours = *updates.PeakHours
	}
	if updates.OperatingHours != nil {
		hours := make(map[string]model.OperatingHours, len(existing.OperatingHours)+len(updates.OperatingHours))
		for day, h := range existing.OperatingHours {
			hours[day] = h
		}
		for day, h := range updates.OperatingHours {
			hours[day] = h
		}
		merged.OperatingHours = hours
	}
	if updates.Equipment != nil {
		merged.Equipment = *updates.Equipment
	}
	if updates.BookingRules != nil {
		merged.BookingRules = *updates.BookingRules
	}

	merged.ID = existing.ID
	merged.Code = existing.Code
	merged.CreatedAt = existing.CreatedAt
	return &merged
}
