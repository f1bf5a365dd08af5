package pathutil

import (
	"errors"
	"testing"
)

func TestExtractID(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		prefix    string
		wantID    int64
		wantError error
	}{
		{
			name:      "valid chain ID",
			path:      "/v1/chains/123",
			prefix:    "/v1/chains/",
			wantID:    123,
			wantError: nil,
		},
		{
			name:      "valid pattern ID",
			path:      "/v1/patterns/456",
			prefix:    "/v1/patterns/",
			wantID:    456,
			wantError: nil,
		},
		{
			name:      "invalid ID - not a number",
			path:      "/v1/chains/abc",
			prefix:    "/v1/chains/",
			wantID:    0,
			wantError: ErrInvalidID,
		},
		{
			name:      "invalid ID - zero",
			path:      "/v1/chains/0",
			prefix:    "/v1/chains/",
			wantID:    0,
			wantError: ErrInvalidID,
		},
		{
			name:      "invalid ID - negative",
			path:      "/v1/chains/-1",
			prefix:    "/v1/chains/",
			wantID:    0,
			wantError: ErrInvalidID,
		},
		{
			name:      "invalid ID - empty",
			path:      "/v1/chains/",
			prefix:    "/v1/chains/",
			wantID:    0,
			wantError: ErrInvalidID,
		},
		{
			name:      "invalid ID - with extra path",
			path:      "/v1/chains/123/providers",
			prefix:    "/v1/chains/",
			wantID:    0,
			wantError: ErrInvalidID,
		},
		{
			name:      "large valid ID",
			path:      "/v1/chains/9223372036854775807",
			prefix:    "/v1/chains/",
			wantID:    9223372036854775807,
			wantError: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotErr := ExtractID(tt.path, tt.prefix)

			if gotID != tt.wantID {
				t.Errorf("ExtractID() id = %v, want %v", gotID, tt.wantID)
			}

			if !errors.Is(gotErr, tt.wantError) {
				t.Errorf("ExtractID() error = %v, want %v", gotErr, tt.wantError)
			}
		})
	}
}
