package stay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestElapsed(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		end  time.Time
		want string
	}{
		{"zero difference", base, "0 s"},
		{"negative difference", base.Add(-time.Minute), "0 s"},
		{"seconds only", base.Add(45 * time.Second), "45 s"},
		{"ninety seconds floors to one minute", base.Add(90 * time.Second), "1 m"},
		{"just over an hour", base.Add(3661 * time.Second), "1 h"},
		{"just over a day", base.Add(90000 * time.Second), "1 d"},
		{"several days", base.Add(73 * time.Hour), "3 d"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Elapsed(base, tc.end))
		})
	}
}

func TestElapsedSince(t *testing.T) {
	assert.Equal(t, "0 s", ElapsedSince(time.Now()))
	assert.Equal(t, "0 s", ElapsedSince(time.Now().Add(time.Hour)))
}
