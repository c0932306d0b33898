package visitor

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CreateRequest is the raw creation payload, manual form or OCR-assisted.
type CreateRequest struct {
	Identification string `json:"identification" validate:"required"`
	Firstname      string `json:"firstname" validate:"required"`
	Surname        string `json:"surname" validate:"required"`
	BirthDate      string `json:"birthDate" validate:"required"`
	Gender         string `json:"gender"`
	Purpose        string `json:"purpose" validate:"required"`
	WhereFrom      string `json:"whereFrom"`
	WhereTo        string `json:"whereTo"`
	Image          string `json:"image"`
}

// UpdateFields lists the mutable fields an update supplies. A nil field
// leaves the stored value alone, so merges are explicit rather than
// reflective.
type UpdateFields struct {
	Identification *string `json:"identification"`
	Firstname      *string `json:"firstname"`
	Surname        *string `json:"surname"`
	BirthDate      *string `json:"birthDate"`
	Gender         *string `json:"gender"`
	Purpose        *string `json:"purpose"`
	WhereFrom      *string `json:"whereFrom"`
	WhereTo        *string `json:"whereTo"`
}

// Normalizer validates raw payloads and produces storable records.
type Normalizer struct {
	validate *validator.Validate
}

// NewNormalizer creates a normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{validate: validator.New()}
}

// NewRecord validates a creation payload and stamps the lifecycle fields.
// Checkin is set exactly once, here.
func (n *Normalizer) NewRecord(req CreateRequest, now time.Time) (Record, error) {
	if err := n.validate.Struct(&req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return Record{}, &ValidationError{Field: strings.ToLower(fieldErrs[0].Field())}
		}
		return Record{}, err
	}

	return Record{
		Identification: req.Identification,
		Firstname:      req.Firstname,
		Surname:        req.Surname,
		BirthDate:      req.BirthDate,
		Age:            AgeAt(req.BirthDate, now),
		Gender:         req.Gender,
		Checkin:        now,
		Purpose:        req.Purpose,
		WhereFrom:      req.WhereFrom,
		WhereTo:        req.WhereTo,
		Image:          req.Image,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ApplyUpdate merges supplied fields over an existing record. Checkin and
// checkout are never touched; age is recomputed only when birthDate changes.
func (n *Normalizer) ApplyUpdate(existing Record, fields UpdateFields, now time.Time) Record {
	rec := existing
	if fields.Identification != nil {
		rec.Identification = *fields.Identification
	}
	if fields.Firstname != nil {
		rec.Firstname = *fields.Firstname
	}
	if fields.Surname != nil {
		rec.Surname = *fields.Surname
	}
	if fields.BirthDate != nil {
		rec.BirthDate = *fields.BirthDate
		rec.Age = AgeAt(rec.BirthDate, now)
	}
	if fields.Gender != nil {
		rec.Gender = *fields.Gender
	}
	if fields.Purpose != nil {
		rec.Purpose = *fields.Purpose
	}
	if fields.WhereFrom != nil {
		rec.WhereFrom = *fields.WhereFrom
	}
	if fields.WhereTo != nil {
		rec.WhereTo = *fields.WhereTo
	}
	rec.UpdatedAt = now
	return rec
}

// AgeAt computes whole years between an ISO birth date and now, one less if
// the birthday has not yet occurred this year. Returns nil on an unparseable
// date; age is derived once at submission, never recomputed later.
func AgeAt(birthDate string, now time.Time) *int {
	birth, err := time.Parse("2006-01-02", birthDate)
	if err != nil {
		return nil
	}
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() ||
		(now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return &age
}
