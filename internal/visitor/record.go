// Package visitor holds the visitor record lifecycle: registration,
// updates, checkout, deletion, and the queries the dashboard reads from.
package visitor

import "time"

// Gender values accepted on a record.
const (
	GenderMale    = "Male"
	GenderFemale  = "Female"
	GenderUnknown = "Unknown"
)

// Record is a single visitor check-in. Checkout is nil while the visit is
// open; Stay is set exactly once, at checkout.
type Record struct {
	ID             string     `json:"id"`
	Identification string     `json:"identification"`
	Firstname      string     `json:"firstname"`
	Surname        string     `json:"surname"`
	BirthDate      string     `json:"birthDate"` // ISO date, 2006-01-02
	Age            *int       `json:"age,omitempty"`
	Gender         string     `json:"gender,omitempty"`
	Checkin        time.Time  `json:"checkin"`
	Checkout       *time.Time `json:"checkout,omitempty"`
	Stay           string     `json:"stay,omitempty"`
	Purpose        string     `json:"purpose"`
	WhereFrom      string     `json:"whereFrom,omitempty"`
	WhereTo        string     `json:"whereTo,omitempty"`
	Image          string     `json:"image,omitempty"` // base64 webcam capture
	OCRSuccess     bool       `json:"ocrSuccess"`
	OCRMessage     string     `json:"ocrMessage,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Open reports whether the visit has not been checked out yet.
func (r Record) Open() bool {
	return r.Checkout == nil
}
