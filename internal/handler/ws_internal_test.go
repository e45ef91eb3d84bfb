package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{nil, "https://evil.example", true},
		{[]string{"https://app.agency.com"}, "", true},
		{[]string{"https://app.agency.com"}, "https://app.agency.com", true},
		{[]string{"https://app.agency.com"}, "https://evil.example", false},
		{[]string{"https://*"}, "https://app.agency.com", true},
		{[]string{"https://*"}, "http://app.agency.com", false},
		{[]string{"*"}, "http://localhost:3000", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, originAllowed(tt.allowed, tt.origin), "%v %q", tt.allowed, tt.origin)
	}
}
