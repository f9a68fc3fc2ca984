package langgate

import "testing"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in       string
		wantCode string
		wantOK   bool
	}{
		{"en", "en", true},
		{"English", "en", true},
		{"  ENGLISH  ", "en", true},
		{"español", "es", true},
		{"espanol", "es", true},
		{"deutsch", "de", true},
		{"englsh", "en", true},   // misspelled full name, fuzzy hit
		{"portugese", "pt", true}, // common misspelling
		{"", "", false},
		{"xx", "", false},
		{"klingon", "", false},
	}
	for _, tt := range tests {
		code, ok := Canonicalize(tt.in)
		if code != tt.wantCode || ok != tt.wantOK {
			t.Errorf("Canonicalize(%q) = (%q, %v), want (%q, %v)", tt.in, code, ok, tt.wantCode, tt.wantOK)
		}
	}
}

func TestCanonicalizeNeverFuzzesShortCodes(t *testing.T) {
	// "enn" must not snap to "en": codes are too short to fuzz safely.
	if code, ok := Canonicalize("enn"); ok {
		t.Errorf("Canonicalize(\"enn\") = (%q, true), want miss", code)
	}
}

func TestGateKeepsMatchingLanguages(t *testing.T) {
	r := Gate("english", "en")
	if !r.Keep {
		t.Error("matching languages dropped")
	}
	if r.Detected != "en" || r.Expected != "en" {
		t.Errorf("canonical codes = %q/%q, want en/en", r.Detected, r.Expected)
	}
}

func TestGateDropsConfidentMismatch(t *testing.T) {
	if r := Gate("spanish", "en"); r.Keep {
		t.Error("spanish chunk kept for an english session")
	}
}

func TestGateFailsOpenOnUnknownLanguages(t *testing.T) {
	if r := Gate("", "en"); !r.Keep {
		t.Error("missing detected language dropped the chunk")
	}
	if r := Gate("klingon", "en"); !r.Keep {
		t.Error("unknown detected language dropped the chunk")
	}
	if r := Gate("english", ""); !r.Keep {
		t.Error("missing expected language dropped the chunk")
	}
}
