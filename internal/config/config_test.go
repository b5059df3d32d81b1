package config

import (
	"testing"
	"time"
)

func TestValidateHost(t *testing.T) {
	cases := []struct {
		host string
		ok   bool
	}{
		{"192.168.1.1", true},
		{"example.com", true},
		{"localhost", true},
		{"", false},
		{"   ", false},
		{"-bad-.com", false},
	}
	for _, c := range cases {
		err := ValidateHost(c.host)
		if (err == nil) != c.ok {
			t.Errorf("ValidateHost(%q) error = %v, want ok=%v", c.host, err, c.ok)
		}
	}
}

func TestValidatePort(t *testing.T) {
	if err := ValidatePort(5005); err != nil {
		t.Errorf("ValidatePort(5005) = %v, want nil", err)
	}
	if err := ValidatePort(0); err == nil {
		t.Error("ValidatePort(0) should be rejected")
	}
	if err := ValidatePort(65536); err == nil {
		t.Error("ValidatePort(65536) should be rejected")
	}
}

func TestParsePort(t *testing.T) {
	p, err := ParsePort(" 5005 ")
	if err != nil || p != 5005 {
		t.Errorf("ParsePort(\" 5005 \") = (%d, %v), want (5005, nil)", p, err)
	}
	if _, err := ParsePort("not-a-number"); err == nil {
		t.Error("ParsePort(\"not-a-number\") should fail")
	}
	if _, err := ParsePort("70000"); err == nil {
		t.Error("ParsePort(\"70000\") should fail out-of-range validation")
	}
}

func TestValidateChunkSize(t *testing.T) {
	if err := ValidateChunkSize(MaxPayload); err != nil {
		t.Errorf("ValidateChunkSize(MaxPayload) = %v, want nil", err)
	}
	if err := ValidateChunkSize(0); err == nil {
		t.Error("ValidateChunkSize(0) should be rejected")
	}
	if err := ValidateChunkSize(MaxPayload + 1); err == nil {
		t.Error("ValidateChunkSize(MaxPayload+1) should be rejected")
	}
}

func TestValidateWindowSize(t *testing.T) {
	if err := ValidateWindowSize(1); err != nil {
		t.Errorf("ValidateWindowSize(1) = %v, want nil", err)
	}
	if err := ValidateWindowSize(0); err == nil {
		t.Error("ValidateWindowSize(0) should be rejected")
	}
}

func TestValidateRTO(t *testing.T) {
	if err := ValidateRTO(time.Millisecond); err != nil {
		t.Errorf("ValidateRTO(1ms) = %v, want nil", err)
	}
	if err := ValidateRTO(0); err == nil {
		t.Error("ValidateRTO(0) should be rejected")
	}
	if err := ValidateRTO(-time.Second); err == nil {
		t.Error("ValidateRTO(negative) should be rejected")
	}
}

func TestValidateFilePath(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"output.bin", true},
		{"./downloads/file.bin", true},
		{"", false},
		{"../escape.bin", false},
		{"~/file.bin", false},
		{"file; rm -rf /", false},
	}
	for _, c := range cases {
		err := ValidateFilePath(c.path)
		if (err == nil) != c.ok {
			t.Errorf("ValidateFilePath(%q) error = %v, want ok=%v", c.path, err, c.ok)
		}
	}
}
