package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"port only", ":4000", false},
		{"localhost", "localhost:8080", false},
		{"loopback ip", "127.0.0.1:3400", false},
		{"auto-assign port", ":0", false},
		{"max port", ":65535", false},
		{"missing port", "localhost", true},
		{"port out of range", ":65536", true},
		{"non-numeric port", ":http", true},
		{"whitespace host", "bad host:80", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddr(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
