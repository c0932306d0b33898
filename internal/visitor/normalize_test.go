package visitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgeAt(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		birthDate string
		want      int
	}{
		{"birthday already passed this year", "1990-05-20", 35},
		{"birthday later this year", "1990-08-01", 34},
		{"birthday today", "1990-06-15", 35},
		{"birthday tomorrow", "1990-06-16", 34},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AgeAt(tc.birthDate, now)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, *got)
		})
	}

	assert.Nil(t, AgeAt("05/20/1990", now), "non-ISO dates yield no age")
	assert.Nil(t, AgeAt("", now))
}

func TestNewRecord_StampsLifecycleFields(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	n := NewNormalizer()

	rec, err := n.NewRecord(CreateRequest{
		Identification: "X123",
		Firstname:      "Ada",
		Surname:        "Okafor",
		BirthDate:      "1990-05-20",
		Purpose:        "Meeting",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, now, rec.Checkin)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Equal(t, now, rec.UpdatedAt)
	assert.Nil(t, rec.Checkout)
	assert.Empty(t, rec.Stay)
}

func TestNewRecord_RequiredFields(t *testing.T) {
	now := time.Now()
	n := NewNormalizer()
	base := CreateRequest{
		Identification: "X123",
		Firstname:      "Ada",
		Surname:        "Okafor",
		BirthDate:      "1990-05-20",
		Purpose:        "Meeting",
	}

	blank := func(mutate func(*CreateRequest)) CreateRequest {
		req := base
		mutate(&req)
		return req
	}

	cases := []struct {
		field string
		req   CreateRequest
	}{
		{"identification", blank(func(r *CreateRequest) { r.Identification = "" })},
		{"firstname", blank(func(r *CreateRequest) { r.Firstname = "" })},
		{"surname", blank(func(r *CreateRequest) { r.Surname = "" })},
		{"birthdate", blank(func(r *CreateRequest) { r.BirthDate = "" })},
		{"purpose", blank(func(r *CreateRequest) { r.Purpose = "" })},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			_, err := n.NewRecord(tc.req, now)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestApplyUpdate(t *testing.T) {
	created := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	n := NewNormalizer()

	age := 30
	existing := Record{
		ID:             "abc",
		Identification: "X123",
		Firstname:      "Ada",
		Surname:        "Okafor",
		BirthDate:      "1990-05-20",
		Age:            &age,
		Purpose:        "Meeting",
		Checkin:        created,
		CreatedAt:      created,
		UpdatedAt:      created,
	}

	out := n.ApplyUpdate(existing, UpdateFields{
		Firstname: str("Adaeze"),
		BirthDate: str("1992-08-01"),
	}, now)

	assert.Equal(t, "Adaeze", out.Firstname)
	assert.Equal(t, "Okafor", out.Surname)
	assert.Equal(t, "1992-08-01", out.BirthDate)
	require.NotNil(t, out.Age)
	assert.Equal(t, 32, *out.Age, "age recomputed from new birth date")
	assert.Equal(t, created, out.Checkin)
	assert.Equal(t, created, out.CreatedAt)
	assert.Equal(t, now, out.UpdatedAt)
	assert.Equal(t, "abc", out.ID)
}

func TestApplyUpdate_NoFieldsBumpsOnlyUpdatedAt(t *testing.T) {
	created := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := created.Add(48 * time.Hour)
	n := NewNormalizer()

	existing := Record{ID: "abc", Firstname: "Ada", UpdatedAt: created}
	out := n.ApplyUpdate(existing, UpdateFields{}, now)

	assert.Equal(t, "Ada", out.Firstname)
	assert.Equal(t, now, out.UpdatedAt)
}
