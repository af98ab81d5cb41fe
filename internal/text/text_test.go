package text

import "testing"

func defaultOpts() Options {
	return Options{
		InputMinChars:      2,
		InputMinAlnumRatio: 0.15,
		MaxSentenceChars:   40,
		MaxChunkChars:      80,
		AutoChunkEnabled:   true,
		AutoChunkMaxChars:  200,
		JoinSentencesWith:  " ",
		MaskDigits:         true,
		MaskPunct:          false,
		MaskEmoji:          true,
	}
}

func TestIsNoise(t *testing.T) {
	opts := defaultOpts()
	cases := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"a", true},
		{"Hello world", false},
		{"!!!???...", true},
		{"12345", false}, // all digits counts as alphanumeric
	}
	for _, c := range cases {
		if got := IsNoise(c.in, opts); got != c.want {
			t.Errorf("IsNoise(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMaskUnmaskRoundtrip(t *testing.T) {
	opts := defaultOpts()
	inputs := []string{
		"Price: $9.99 (20% off)! 🎉",
		"Hello world",
		"1234 apples and 🚀 rockets",
		"",
		"no masking needed here",
	}
	for _, in := range inputs {
		masked, rec := Mask(in, opts)
		got := Unmask(masked, rec)
		if got != in {
			t.Errorf("roundtrip mismatch: in=%q masked=%q got=%q", in, masked, got)
		}
	}
}

func TestMaskPreservesMaskedSubstrings(t *testing.T) {
	opts := defaultOpts()
	opts.MaskPunct = true
	in := "Price: $9.99 (20% off)! 🎉"
	masked, rec := Mask(in, opts)
	got := Unmask(masked, rec)
	if got != in {
		t.Fatalf("expected exact roundtrip, got %q want %q", got, in)
	}
}

func TestSplitSentencesPreservesTerminators(t *testing.T) {
	opts := defaultOpts()
	sentences := SplitSentences("Hello world. How are you? Fine!", opts)
	if len(sentences) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %v", len(sentences), sentences)
	}
	if sentences[0] != "Hello world." {
		t.Errorf("unexpected first sentence: %q", sentences[0])
	}
}

func TestSplitSentencesCutsLongSentence(t *testing.T) {
	opts := defaultOpts()
	opts.MaxSentenceChars = 10
	long := "this is a very long sentence without any terminator at all"
	pieces := SplitSentences(long, opts)
	for _, p := range pieces {
		if len([]rune(p)) > opts.MaxSentenceChars+1 {
			t.Errorf("piece %q exceeds window", p)
		}
	}
}

func TestPackChunksNeverCrossesLimit(t *testing.T) {
	sentences := []string{"one two three. ", "four five six. ", "seven eight nine. "}
	chunks := PackChunks(0, sentences, 20)
	for _, c := range chunks {
		if c.CharTotal > 20 && len(c.Sentences) > 1 {
			t.Errorf("chunk exceeds limit with multiple sentences: %+v", c)
		}
	}
}

func TestAutoChunkIfEnabled(t *testing.T) {
	opts := defaultOpts()
	opts.AutoChunkMaxChars = 20
	long := "Sentence one is here. Sentence two is here. Sentence three is here."
	pieces := AutoChunkIfEnabled(long, opts)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple pieces, got %d", len(pieces))
	}
	rejoined := Join(pieces, "")
	if rejoined != long {
		t.Errorf("rejoined pieces lost content: %q", rejoined)
	}
}

func TestAutoChunkDisabledPassesThrough(t *testing.T) {
	opts := defaultOpts()
	opts.AutoChunkEnabled = false
	long := "Sentence one is here. Sentence two is here. Sentence three is here."
	pieces := AutoChunkIfEnabled(long, opts)
	if len(pieces) != 1 || pieces[0] != long {
		t.Errorf("expected passthrough, got %v", pieces)
	}
}
