package validation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConfigValidator_Required(t *testing.T) {
	cv := NewConfigValidator("TestConfig")
	cv.Required("Name", "")

	if !cv.HasErrors() {
		t.Error("Expected error for empty required field")
	}

	cv2 := NewConfigValidator("TestConfig")
	cv2.Required("Name", "value")

	if cv2.HasErrors() {
		t.Error("Expected no error for non-empty required field")
	}
}

func TestConfigValidator_MinDuration(t *testing.T) {
	cv := NewConfigValidator("TestConfig")
	cv.MinDuration("Timeout", 500*time.Millisecond, 1*time.Second)

	if !cv.HasErrors() {
		t.Error("Expected error for duration below minimum")
	}

	cv2 := NewConfigValidator("TestConfig")
	cv2.MinDuration("Timeout", 2*time.Second, 1*time.Second)

	if cv2.HasErrors() {
		t.Error("Expected no error for duration at or above minimum")
	}
}

func TestConfigValidator_LessDuration(t *testing.T) {
	cv := NewConfigValidator("AnimationConfig")
	cv.LessDuration("frame_interval", 600*time.Millisecond, 600*time.Millisecond)
	if !cv.HasErrors() {
		t.Error("Expected error for equal durations")
	}

	cv2 := NewConfigValidator("AnimationConfig")
	cv2.LessDuration("frame_interval", 16*time.Millisecond, 600*time.Millisecond)
	if cv2.HasErrors() {
		t.Errorf("Expected no error, got %v", cv2.Error())
	}
}

func TestConfigValidator_Floats(t *testing.T) {
	tests := []struct {
		name    string
		apply   func(*ConfigValidator)
		wantErr bool
	}{
		{"positive ok", func(cv *ConfigValidator) { cv.PositiveFloat("size", 300) }, false},
		{"positive zero", func(cv *ConfigValidator) { cv.PositiveFloat("size", 0) }, true},
		{"non-negative zero", func(cv *ConfigValidator) { cv.NonNegativeFloat("scale", 0) }, false},
		{"non-negative below", func(cv *ConfigValidator) { cv.NonNegativeFloat("scale", -0.1) }, true},
		{"range inside", func(cv *ConfigValidator) { cv.RangeFloat("k", 0.05, 0, 0.5) }, false},
		{"range edge", func(cv *ConfigValidator) { cv.RangeFloat("k", 0.5, 0, 0.5) }, false},
		{"range outside", func(cv *ConfigValidator) { cv.RangeFloat("k", 0.7, 0, 0.5) }, true},
		{"less ok", func(cv *ConfigValidator) { cv.LessFloat("margin", 15, 150) }, false},
		{"less equal", func(cv *ConfigValidator) { cv.LessFloat("margin", 150, 150) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cv := NewConfigValidator("LayoutConfig")
			tt.apply(cv)
			if cv.HasErrors() != tt.wantErr {
				t.Errorf("HasErrors() = %v, want %v (%v)", cv.HasErrors(), tt.wantErr, cv.Error())
			}
		})
	}
}

func TestConfigValidator_OneOf(t *testing.T) {
	allowed := []string{"debug", "info", "warn", "error"}

	cv := NewConfigValidator("TestConfig")
	cv.OneOf("LogLevel", "trace", allowed)

	if !cv.HasErrors() {
		t.Error("Expected error for value not in allowed list")
	}

	cv2 := NewConfigValidator("TestConfig")
	cv2.OneOf("LogLevel", "info", allowed)

	if cv2.HasErrors() {
		t.Error("Expected no error for allowed value")
	}
}

func TestConfigValidator_Custom(t *testing.T) {
	cv := NewConfigValidator("TestConfig")
	cv.Custom("CustomField", func() error {
		return errors.New("custom validation failed")
	})

	if !cv.HasErrors() {
		t.Error("Expected error from custom validation")
	}

	cv2 := NewConfigValidator("TestConfig")
	cv2.Custom("CustomField", func() error {
		return nil
	})

	if cv2.HasErrors() {
		t.Error("Expected no error from passing custom validation")
	}
}

func TestConfigValidator_When(t *testing.T) {
	cv := NewConfigValidator("TestConfig")
	cv.When(true, func(v *ConfigValidator) {
		v.PositiveFloat("Size", -1)
	})

	if !cv.HasErrors() {
		t.Error("Expected error when condition is true")
	}

	cv2 := NewConfigValidator("TestConfig")
	cv2.When(false, func(v *ConfigValidator) {
		v.PositiveFloat("Size", -1)
	})

	if cv2.HasErrors() {
		t.Error("Expected no error when condition is false")
	}
}

func TestConfigValidator_Chaining(t *testing.T) {
	cv := NewConfigValidator("LayoutConfig")
	cv.Required("Name", "radial").
		PositiveFloat("canvas_size", 300).
		LessFloat("margin", 15, 150).
		MinDuration("Timeout", 5*time.Second, 1*time.Second)

	if cv.HasErrors() {
		t.Errorf("Expected no errors for valid config, got: %v", cv.Error())
	}
}

func TestConfigValidator_MultipleErrors(t *testing.T) {
	cv := NewConfigValidator("TestConfig")
	cv.Required("Name", "").
		PositiveFloat("Size", -1).
		MinDuration("Timeout", 0, 1*time.Second)

	if len(cv.Errors()) != 3 {
		t.Errorf("Expected 3 errors, got %d", len(cv.Errors()))
	}

	err := cv.Validate()
	if err == nil || !strings.Contains(err.Error(), "3 errors") {
		t.Errorf("Expected combined error, got %v", err)
	}
	if !strings.Contains(err.Error(), "TestConfig.Size") {
		t.Errorf("Combined error should list every failure, got %v", err)
	}
}

func TestConfigValidator_Validate(t *testing.T) {
	cv := NewConfigValidator("TestConfig")
	cv.Required("Name", "")

	err := cv.Validate()
	if err == nil {
		t.Error("Expected error from Validate()")
	}

	cv2 := NewConfigValidator("TestConfig")
	cv2.Required("Name", "valid")

	err2 := cv2.Validate()
	if err2 != nil {
		t.Errorf("Expected no error from Validate(), got: %v", err2)
	}
}
