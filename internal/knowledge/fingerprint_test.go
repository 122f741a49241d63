package knowledge

import "testing"

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("syntax", "unexpected token at line 42", []string{"pkg/calc.py"})
	b := Fingerprint("syntax", "unexpected token at line 42", []string{"pkg/calc.py"})
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s != %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("fingerprint length = %d, want 16", len(a))
	}
}

func TestFingerprint_VariesByInput(t *testing.T) {
	base := Fingerprint("syntax", "unexpected token", []string{"a.py"})
	cases := map[string]string{
		"category":  Fingerprint("runtime", "unexpected token", []string{"a.py"}),
		"message":   Fingerprint("syntax", "different message", []string{"a.py"}),
		"basenames": Fingerprint("syntax", "unexpected token", []string{"b.py"}),
	}
	for name, fp := range cases {
		if fp == base {
			t.Errorf("%s: fingerprint unexpectedly matched base", name)
		}
	}
}

func TestFingerprint_OrderIndependentBasenames(t *testing.T) {
	a := Fingerprint("syntax", "x", []string{"a.py", "b.py"})
	b := Fingerprint("syntax", "x", []string{"b.py", "a.py"})
	if a != b {
		t.Fatalf("fingerprint should be order-independent over affected files: %s != %s", a, b)
	}
}

func TestNormalizeMessage_StripsTrailingDigitsAndWhitespace(t *testing.T) {
	got := NormalizeMessage("  Error   at Line   42 ")
	want := "error at line"
	if got != want {
		t.Fatalf("NormalizeMessage = %q, want %q", got, want)
	}
}
