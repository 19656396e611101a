package IO

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/dressag1/nlp-cnn/params"
)

func tinyW2VConfig() W2VConfig {
	return W2VConfig{
		VectorSize:      8,
		MinWordCount:    1,
		Window:          2,
		Epochs:          2,
		NegativeSamples: 2,
		LearningRate:    0.025,
	}
}

func tinyCorpus() ([][]int, []string) {
	vocabInv := []string{PadToken, "good", "movie", "bad", "plot"}
	x := [][]int{
		{1, 2, 4, 0, 0},
		{3, 2, 4, 0, 0},
		{1, 4, 2, 3, 0},
	}
	return x, vocabInv
}

func TestTrainWordVectorsShapes(t *testing.T) {
	rand.Seed(1)
	x, vocabInv := tinyCorpus()
	wv, err := TrainWordVectors(x, vocabInv, tinyW2VConfig())
	if err != nil {
		t.Fatal(err)
	}
	if wv.VectorSize != 8 {
		t.Fatalf("vector size = %d, want 8", wv.VectorSize)
	}
	for _, tok := range []string{"good", "movie", "bad", "plot"} {
		if len(wv.Vectors[tok]) != 8 {
			t.Fatalf("token %q has no trained vector", tok)
		}
	}
	w := wv.EmbeddingWeights(vocabInv)
	r, c := w.Dims()
	if r != 8 || c != len(vocabInv) {
		t.Fatalf("embedding matrix is (%d x %d), want (8 x %d)", r, c, len(vocabInv))
	}
}

func TestUnknownTokenFallsBackToPadVector(t *testing.T) {
	rand.Seed(1)
	x, vocabInv := tinyCorpus()
	wv, err := TrainWordVectors(x, vocabInv, tinyW2VConfig())
	if err != nil {
		t.Fatal(err)
	}
	// EmbeddingWeights materializes the pad vector.
	wv.EmbeddingWeights(vocabInv)
	pad := wv.Lookup(PadToken)
	unknown := wv.Lookup("zzz-not-in-corpus")
	if !reflect.DeepEqual(pad, unknown) {
		t.Fatal("unknown token must resolve to the pad vector")
	}
	// Repeated lookups agree.
	if !reflect.DeepEqual(unknown, wv.Lookup("zzz-not-in-corpus")) {
		t.Fatal("fallback lookup not stable")
	}
}

func TestMinCountLeavesNothingIsError(t *testing.T) {
	x, vocabInv := tinyCorpus()
	cfg := tinyW2VConfig()
	cfg.MinWordCount = 100
	if _, err := TrainWordVectors(x, vocabInv, cfg); err == nil {
		t.Fatal("impossible min word count should fail")
	}
}

func TestWordVectorModelName(t *testing.T) {
	cfg := W2VConfig{VectorSize: 100, MinWordCount: 1, Window: 10}
	got := WordVectorModelName(cfg, params.CNNNonStatic)
	want := "100features_1minwords_10context_CNN-non-static"
	if got != want {
		t.Fatalf("model name = %q, want %q", got, want)
	}
}

func TestWordVectorsSaveLoadRoundTrip(t *testing.T) {
	rand.Seed(1)
	x, vocabInv := tinyCorpus()
	wv, err := TrainWordVectors(x, vocabInv, tinyW2VConfig())
	if err != nil {
		t.Fatal(err)
	}
	wv.EmbeddingWeights(vocabInv)

	dir := t.TempDir()
	name := WordVectorModelName(tinyW2VConfig(), params.CNNStatic)
	if err := SaveWordVectors(wv, dir, name); err != nil {
		t.Fatal(err)
	}
	got, err := LoadWordVectors(dir, name)
	if err != nil {
		t.Fatal(err)
	}
	if got.VectorSize != wv.VectorSize {
		t.Fatalf("vector size changed: %d vs %d", got.VectorSize, wv.VectorSize)
	}
	if !reflect.DeepEqual(got.Vectors, wv.Vectors) {
		t.Fatal("vectors changed across save/load")
	}
}

func TestLoadWordVectorsMissing(t *testing.T) {
	if _, err := LoadWordVectors(t.TempDir(), "nope"); err == nil {
		t.Fatal("missing model should be an error")
	}
}
