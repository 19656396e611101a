package cnn

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/dressag1/nlp-cnn/IO"
	"github.com/dressag1/nlp-cnn/params"
	"github.com/dressag1/nlp-cnn/utils"
)

func toyConfig(v params.Variant) params.Config {
	return params.Config{
		Variant:      v,
		EmbeddingDim: 4,
		FilterSizes:  []int{2},
		NumFilters:   2,
		DropoutProb:  []float64{0, 0},
		HiddenDims:   5,
		PoolWindow:   2,
	}
}

func toyVocab() (map[string]int, []string) {
	vocabInv := []string{IO.PadToken, "good", "bad", "fun"}
	vocab := make(map[string]int, len(vocabInv))
	for i, tok := range vocabInv {
		vocab[tok] = i
	}
	return vocab, vocabInv
}

func newToyModel(t *testing.T, v params.Variant) *Model {
	t.Helper()
	vocab, vocabInv := toyVocab()
	var seed *mat.Dense
	if v == params.CNNNonStatic {
		seed = mat.NewDense(4, len(vocabInv), utils.RandomArray(4*len(vocabInv), 4))
	}
	m, err := NewModel(toyConfig(v), 4, vocab, vocabInv, seed)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestForwardProbabilityRange(t *testing.T) {
	rand.Seed(123)
	m := newToyModel(t, params.CNNRand)
	p := m.ForwardIDs([]int{1, 2, 3, 0})
	if p <= 0 || p >= 1 {
		t.Fatalf("output %v outside (0, 1)", p)
	}
}

func TestStaticModelHasNoEmbedding(t *testing.T) {
	rand.Seed(123)
	m := newToyModel(t, params.CNNStatic)
	if m.Embedding != nil {
		t.Fatal("CNN-static must carry no embedding parameters")
	}
	x := mat.NewDense(4, 4, utils.RandomArray(16, 4))
	p := m.ForwardEmbedded(x)
	if p <= 0 || p >= 1 {
		t.Fatalf("output %v outside (0, 1)", p)
	}
}

func TestNonStaticRequiresSeed(t *testing.T) {
	vocab, vocabInv := toyVocab()
	if _, err := NewModel(toyConfig(params.CNNNonStatic), 4, vocab, vocabInv, nil); err == nil {
		t.Fatal("CNN-non-static without pretrained weights should fail")
	}
}

func TestSequenceTooShortForFilter(t *testing.T) {
	vocab, vocabInv := toyVocab()
	cfg := toyConfig(params.CNNRand)
	cfg.FilterSizes = []int{4}
	// 4 tokens convolved by width 4 leaves one column, shorter than the
	// pool window.
	if _, err := NewModel(cfg, 4, vocab, vocabInv, nil); err == nil {
		t.Fatal("too-short sequence should fail at assembly")
	}
}

func finiteDiffCheck(t *testing.T, name string, param *mat.Dense, grad *mat.Dense,
	forward func() float64, i, j int) {
	t.Helper()

	eps := 1e-5
	w0 := param.At(i, j)

	param.Set(i, j, w0+eps)
	lp := forward()

	param.Set(i, j, w0-eps)
	lm := forward()

	param.Set(i, j, w0)

	numGrad := (lp - lm) / (2.0 * eps)
	anaGrad := grad.At(i, j)

	if math.Abs(numGrad-anaGrad) > 1e-4 {
		t.Fatalf("%s[%d,%d] grad mismatch: num=%.6g ana=%.6g",
			name, i, j, numGrad, anaGrad)
	}
}

func TestModelGradCheck(t *testing.T) {
	rand.Seed(123)
	m := newToyModel(t, params.CNNRand)
	m.Training = false
	ids := []int{1, 2, 3, 0}
	y := 1.0

	forward := func() float64 {
		loss, _ := utils.BinaryCrossEntropy(m.ForwardIDs(ids), y)
		return loss
	}

	p := m.ForwardIDs(ids)
	_, dLogit := utils.BinaryCrossEntropy(p, y)
	m.Backward(dLogit)

	finiteDiffCheck(t, "Conv.Kernel", m.Branches[0].Conv.Kernels[0], m.Branches[0].Conv.KernelGrad[0], forward, 0, 0)
	finiteDiffCheck(t, "Hidden.W", m.Hidden.W, m.Hidden.WGrad, forward, 0, 0)
	finiteDiffCheck(t, "Out.W", m.Out.W, m.Out.WGrad, forward, 0, 0)
	// Embedding column for token id 1, which appears in the input.
	finiteDiffCheck(t, "Embedding", m.Embedding, m.EmbGrad, forward, 0, 1)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rand.Seed(123)
	m := newToyModel(t, params.CNNNonStatic)
	m.Training = false

	inputs := [][]int{
		{1, 2, 3, 0},
		{3, 3, 1, 0},
		{2, 0, 0, 0},
	}
	before := make([]float64, len(inputs))
	for i, ids := range inputs {
		before[i] = m.ForwardIDs(ids)
	}

	dir := t.TempDir()
	archPath := filepath.Join(dir, ArchFileName(m.Variant, 7))
	weightsPath := filepath.Join(dir, WeightsFileName(m.Variant, 7))
	if err := SaveArchitecture(m.Architecture(), archPath); err != nil {
		t.Fatal(err)
	}
	if err := SaveWeights(m, weightsPath); err != nil {
		t.Fatal(err)
	}

	got, err := LoadModel(archPath, weightsPath)
	if err != nil {
		t.Fatal(err)
	}
	got.Training = false
	if got.SeqLen != m.SeqLen || got.Variant != m.Variant {
		t.Fatal("reloaded structure differs")
	}
	for i, ids := range inputs {
		after := got.ForwardIDs(ids)
		if after != before[i] {
			t.Fatalf("prediction %d changed across save/load: %v vs %v", i, before[i], after)
		}
	}
}

func TestArchitectureDescribesGraph(t *testing.T) {
	rand.Seed(123)
	m := newToyModel(t, params.CNNRand)
	arch := m.Architecture()
	if arch.Variant != "CNN-rand" || arch.SequenceLength != 4 {
		t.Fatalf("architecture header wrong: %+v", arch)
	}
	var convs, denses int
	for _, l := range arch.Layers {
		switch l.Type {
		case "conv1d":
			convs++
			if l.Activation != "relu" {
				t.Fatal("conv activation must be relu")
			}
		case "dense":
			denses++
		}
	}
	if convs != 1 || denses != 2 {
		t.Fatalf("got %d conv and %d dense layers, want 1 and 2", convs, denses)
	}
	last := arch.Layers[len(arch.Layers)-1]
	if last.Type != "activation" || last.Activation != "sigmoid" {
		t.Fatalf("network must end in sigmoid, got %+v", last)
	}
}

func TestArchFileNames(t *testing.T) {
	if got := ArchFileName(params.CNNNonStatic, 7); got != "imdb_CNN-non-static7_arch.json" {
		t.Fatalf("arch name = %q", got)
	}
	if got := WeightsFileName(params.CNNRand, 7); got != "imdb_CNN-rand7.weights.gob" {
		t.Fatalf("weights name = %q", got)
	}
}
