package domain

import (
	"errors"
	"testing"
	"time"
)

func TestApplyDefaults_FillsZeroFields(t *testing.T) {
	s := Settings{CheckInterval: 30 * time.Second}.ApplyDefaults()

	if s.CheckInterval != 30*time.Second {
		t.Fatalf("explicit field overwritten: %v", s.CheckInterval)
	}
	if s.Timeout != 30*time.Second {
		t.Fatalf("want default timeout 30s, got %v", s.Timeout)
	}
	if s.RetryCount != 3 {
		t.Fatalf("want default retry_count 3, got %d", s.RetryCount)
	}
	if s.ExpiryAlertDays != 30 {
		t.Fatalf("want default expiry_alert_days 30, got %d", s.ExpiryAlertDays)
	}
}

func TestValidate_RejectsShortInterval(t *testing.T) {
	s := DefaultSettings()
	s.CheckInterval = 5 * time.Second
	err := s.Validate()
	if err == nil {
		t.Fatal("want validation error for 5s interval")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "check_interval" {
		t.Fatalf("want check_interval validation error, got %v", err)
	}
}

func TestValidate_TimeoutMustFitInterval(t *testing.T) {
	s := DefaultSettings()
	s.CheckInterval = 30 * time.Second
	s.Timeout = time.Minute
	if s.Validate() == nil {
		t.Fatal("want error when timeout > check_interval")
	}
}

func TestValidate_CapabilityRequirements(t *testing.T) {
	s := DefaultSettings()
	s.Capabilities = []Capability{CapContentMatch}
	if s.Validate() == nil {
		t.Fatal("content_match capability without pattern should fail")
	}
	s.ContentMatch = "Welcome"
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Capabilities = []Capability{CapTCP}
	s.TCPPort = 0
	if s.Validate() == nil {
		t.Fatal("tcp capability without port should fail")
	}

	s.Capabilities = []Capability{Capability("bogus")}
	if s.Validate() == nil {
		t.Fatal("unknown capability should fail")
	}
}

func TestDefaultSettings_AreValid(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}
