package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitlog/internal/visitor"
)

func TestWrite(t *testing.T) {
	checkin := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	checkout := checkin.Add(2 * time.Hour)
	age := 35

	records := []visitor.Record{
		{
			ID:             "id-2",
			Identification: "X123",
			Firstname:      "Ada",
			Surname:        "Okafor",
			BirthDate:      "1990-05-20",
			Age:            &age,
			Gender:         visitor.GenderFemale,
			Checkin:        checkin,
			Checkout:       &checkout,
			Stay:           "2 h",
			Purpose:        "Meeting",
			WhereFrom:      "Lagos",
			WhereTo:        "Reception",
			CreatedAt:      checkin,
			UpdatedAt:      checkout,
		},
		{
			ID:             "id-1",
			Identification: "Y456",
			Firstname:      "Femi",
			Surname:        "Ade",
			BirthDate:      "1985-01-02",
			Checkin:        checkin,
			Purpose:        "Delivery",
			CreatedAt:      checkin,
			UpdatedAt:      checkin,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"Id", "Identification", "Firstname", "Surname", "BirthDate", "Age",
		"Gender", "Checkin", "Checkout", "Stay", "Purpose", "WhereFrom",
		"WhereTo", "CreatedAt", "UpdatedAt",
	}, rows[0])

	assert.Equal(t, "X123", rows[1][1])
	assert.Equal(t, "35", rows[1][5])
	assert.Equal(t, "2 h", rows[1][9])
	assert.Equal(t, checkout.Format(time.RFC3339), rows[1][8])

	// Open visit: no checkout, no stay, no age.
	assert.Equal(t, "", rows[2][5])
	assert.Equal(t, "", rows[2][8])
	assert.Equal(t, "", rows[2][9])
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "WhereFrom", displayName("where_from"))
	assert.Equal(t, "BirthDate", displayName("birth_date"))
	assert.Equal(t, "Id", displayName("id"))
	assert.Equal(t, "Purpose", displayName("purpose"))
}
