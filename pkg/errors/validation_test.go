package errors

import (
	"strings"
	"testing"
)

func TestValidateSceneName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "gallery", false},
		{"with dash", "art-gallery", false},
		{"with underscore", "floor_2", false},
		{"with dot", "museum.v2", false},
		{"digit first", "2nd-floor", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 200), true},
		{"leading dash", "-gallery", true},
		{"space", "art gallery", true},
		{"slash", "a/b", true},
		{"traversal", "..", true},
		{"null byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSceneName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSceneName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidScene) {
				t.Errorf("ValidateSceneName(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidScene)
			}
		})
	}
}

func TestValidateObserverName(t *testing.T) {
	if err := ValidateObserverName("guard-1"); err != nil {
		t.Errorf("ValidateObserverName() error = %v", err)
	}
	err := ValidateObserverName("")
	if !Is(err, ErrCodeInvalidObserver) {
		t.Errorf("ValidateObserverName(\"\") code = %v, want %v", GetCode(err), ErrCodeInvalidObserver)
	}
}
