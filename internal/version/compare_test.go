package version

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/candlelab/replay/pkg/errors"
)

func TestCheckConfigCompatibility(t *testing.T) {
	tests := []struct {
		name          string
		engineVersion string
		configVersion string
		wantErr       bool
	}{
		{name: "exact match", engineVersion: "1.2.0", configVersion: "1.2.0", wantErr: false},
		{name: "patch differs", engineVersion: "1.2.5", configVersion: "1.2.0", wantErr: false},
		{name: "older config minor", engineVersion: "1.3.0", configVersion: "1.2.0", wantErr: false},
		{name: "newer config minor", engineVersion: "1.2.0", configVersion: "1.3.0", wantErr: true},
		{name: "major mismatch", engineVersion: "2.0.0", configVersion: "1.2.0", wantErr: true},
		{name: "dev build skips check", engineVersion: "main", configVersion: "1.2.0", wantErr: false},
		{name: "empty config version skips check", engineVersion: "1.2.0", configVersion: "", wantErr: false},
		{name: "v prefix accepted", engineVersion: "v1.2.0", configVersion: "v1.2.3", wantErr: false},
		{name: "garbage config version", engineVersion: "1.2.0", configVersion: "not-a-version", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckConfigCompatibility(tt.engineVersion, tt.configVersion)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidVersion))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetVersion(t *testing.T) {
	assert.NotEmpty(t, GetVersion())
}
