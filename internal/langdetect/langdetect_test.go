package langdetect

import "testing"

func TestDetectJapanese(t *testing.T) {
	d := NewHeuristic("en")
	lang, ok := d.Detect("これは日本語のテキストです")
	if !ok {
		t.Fatal("expected detection to succeed")
	}
	if lang != "ja" {
		t.Errorf("lang = %q, want ja", lang)
	}
}

func TestDetectDefaultsToConfiguredLangForLatin(t *testing.T) {
	d := NewHeuristic("en")
	lang, ok := d.Detect("Hello, how are you today?")
	if !ok {
		t.Fatal("expected detection to succeed")
	}
	if lang != "en" {
		t.Errorf("lang = %q, want en", lang)
	}
}

func TestDetectNoiseReturnsNotOK(t *testing.T) {
	d := NewHeuristic("en")
	_, ok := d.Detect("12345 !!! ···")
	if ok {
		t.Error("expected detection to fail for input with no letters")
	}
}
