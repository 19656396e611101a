package params

import "testing"

func TestParseVariant(t *testing.T) {
	cases := map[string]Variant{
		"CNN-rand":       CNNRand,
		"CNN-static":     CNNStatic,
		"CNN-non-static": CNNNonStatic,
	}
	for s, want := range cases {
		got, err := ParseVariant(s)
		if err != nil {
			t.Fatalf("ParseVariant(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("ParseVariant(%q) = %v, want %v", s, got, want)
		}
		if got.String() != s {
			t.Fatalf("String() = %q, want %q", got.String(), s)
		}
	}
}

func TestParseVariantUnknownFailsFast(t *testing.T) {
	for _, s := range []string{"", "cnn-rand", "CNN-Static", "word2vec"} {
		if _, err := ParseVariant(s); err == nil {
			t.Fatalf("ParseVariant(%q) should fail", s)
		}
	}
}

func TestVariantCapabilities(t *testing.T) {
	if CNNRand.UsesPretrained() {
		t.Fatal("CNN-rand should not need pretrained vectors")
	}
	if !CNNStatic.UsesPretrained() || !CNNNonStatic.UsesPretrained() {
		t.Fatal("pretrained variants misreported")
	}
	if CNNStatic.TrainsEmbedding() {
		t.Fatal("CNN-static must not own a trainable embedding")
	}
	if !CNNRand.TrainsEmbedding() || !CNNNonStatic.TrainsEmbedding() {
		t.Fatal("embedding variants misreported")
	}
}
