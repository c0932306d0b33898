package visitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"visitlog/internal/recognition"
	"visitlog/internal/stay"
)

// Recognizer extracts structured credential fields from a captured image.
type Recognizer interface {
	Extract(ctx context.Context, imageData string) (recognition.Fields, error)
}

// SavePayload is the single create-or-update entry point; a present ID means
// update. Image is only honored on creation.
type SavePayload struct {
	ID    string `json:"id"`
	Image string `json:"image"`
	UpdateFields
}

// Service coordinates recognition, validation, and persistence for the
// visitor lifecycle.
type Service struct {
	repo          Repository
	norm          *Normalizer
	recognizer    Recognizer
	bestEffortOCR bool
	now           func() time.Time
}

// NewService creates a service. recognizer may be nil when OCR is disabled;
// bestEffortOCR makes a failed extraction fall back to the manually supplied
// fields instead of aborting the creation.
func NewService(repo Repository, recognizer Recognizer, bestEffortOCR bool) *Service {
	return &Service{
		repo:          repo,
		norm:          NewNormalizer(),
		recognizer:    recognizer,
		bestEffortOCR: bestEffortOCR,
		now:           time.Now,
	}
}

// Save creates a visitor when the payload carries no id, and updates the
// existing record otherwise.
func (s *Service) Save(ctx context.Context, payload SavePayload) (Record, error) {
	if payload.ID == "" {
		return s.create(ctx, payload)
	}
	return s.update(ctx, payload.ID, payload.UpdateFields)
}

func (s *Service) create(ctx context.Context, payload SavePayload) (Record, error) {
	now := s.now()
	req := CreateRequest{
		Identification: deref(payload.Identification),
		Firstname:      deref(payload.Firstname),
		Surname:        deref(payload.Surname),
		BirthDate:      deref(payload.BirthDate),
		Gender:         deref(payload.Gender),
		Purpose:        deref(payload.Purpose),
		WhereFrom:      deref(payload.WhereFrom),
		WhereTo:        deref(payload.WhereTo),
		Image:          payload.Image,
	}

	ocrSuccess := false
	ocrMessage := ""
	if payload.Image != "" && s.recognizer != nil {
		fields, err := s.recognizer.Extract(ctx, payload.Image)
		if err != nil {
			if !s.bestEffortOCR {
				return Record{}, fmt.Errorf("document recognition failed: %w", err)
			}
			// Permissive mode: keep whatever was typed in and record why
			// the extraction came up short.
			log.Printf("ocr extraction failed, proceeding with manual fields: %v", err)
			ocrMessage = err.Error()
		} else {
			req.Identification = fields.Identification
			req.Firstname = fields.Firstname
			req.Surname = fields.Surname
			req.BirthDate = fields.BirthDate
			if fields.Gender != "" {
				req.Gender = fields.Gender
			}
			ocrSuccess = true
			ocrMessage = "extracted"
		}
	}

	rec, err := s.norm.NewRecord(req, now)
	if err != nil {
		return Record{}, err
	}
	rec.OCRSuccess = ocrSuccess
	rec.OCRMessage = ocrMessage

	open, err := s.repo.FindOpen(ctx, rec.Identification)
	if err != nil {
		return Record{}, err
	}
	if open != nil {
		return Record{}, fmt.Errorf("identification %s: %w", rec.Identification, ErrDuplicateActiveVisit)
	}

	return s.repo.Insert(ctx, rec)
}

func (s *Service) update(ctx context.Context, id string, fields UpdateFields) (Record, error) {
	if err := validateID(id); err != nil {
		return Record{}, err
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Record{}, err
	}
	merged := s.norm.ApplyUpdate(existing, fields, s.now())
	if merged.Open() && merged.Identification != existing.Identification {
		open, err := s.repo.FindOpen(ctx, merged.Identification)
		if err != nil {
			return Record{}, err
		}
		if open != nil && open.ID != merged.ID {
			return Record{}, fmt.Errorf("identification %s: %w", merged.Identification, ErrDuplicateActiveVisit)
		}
	}
	return s.repo.Update(ctx, merged)
}

// Checkout closes an open visit, computing and storing the stay duration.
func (s *Service) Checkout(ctx context.Context, id string) (Record, error) {
	if err := validateID(id); err != nil {
		return Record{}, err
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Record{}, err
	}

	now := s.now()
	stayStr := stay.Elapsed(rec.Checkin, now)
	affected, err := s.repo.Checkout(ctx, id, now, stayStr)
	if err != nil {
		return Record{}, err
	}
	if affected == 0 {
		// The record existed a moment ago, so the conditional write lost to
		// another checkout.
		return Record{}, ErrAlreadyCheckedOut
	}

	rec.Checkout = &now
	rec.Stay = stayStr
	rec.UpdatedAt = now
	return rec, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a single record by id.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if err := validateID(id); err != nil {
		return Record{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// List returns records, optionally bounded to a created_at range.
func (s *Service) List(ctx context.Context, start, end time.Time) ([]Record, error) {
	if start.IsZero() && end.IsZero() {
		return s.repo.ListAll(ctx)
	}
	return s.repo.ListByDateRange(ctx, start, end)
}

// validateID rejects malformed ids before any store access.
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
