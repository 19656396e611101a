package params

import "fmt"

// Model variations. See Kim Yoon's Convolutional Neural Networks for
// Sentence Classification, Section 3 for detail.
type Variant int

const (
	// CNNRand leaves the embedding layer randomly initialized and trains
	// it jointly with the classifier.
	CNNRand Variant = iota
	// CNNStatic applies pretrained word vectors once; the network never
	// updates them and carries no embedding parameters of its own.
	CNNStatic
	// CNNNonStatic seeds the embedding layer from pretrained word vectors
	// and fine-tunes it during classifier training.
	CNNNonStatic
)

func (v Variant) String() string {
	switch v {
	case CNNRand:
		return "CNN-rand"
	case CNNStatic:
		return "CNN-static"
	case CNNNonStatic:
		return "CNN-non-static"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// ParseVariant maps a variant name to its Variant. Unknown names are an
// error, never a silent default.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "CNN-rand":
		return CNNRand, nil
	case "CNN-static":
		return CNNStatic, nil
	case "CNN-non-static":
		return CNNNonStatic, nil
	}
	return 0, fmt.Errorf("unknown model variation %q (want CNN-rand, CNN-static or CNN-non-static)", s)
}

// UsesPretrained reports whether the variant needs a trained word-vector
// model before the classifier can be assembled.
func (v Variant) UsesPretrained() bool {
	return v == CNNStatic || v == CNNNonStatic
}

// TrainsEmbedding reports whether the classifier owns a trainable
// embedding layer.
func (v Variant) TrainsEmbedding() bool {
	return v != CNNStatic
}

type Config struct {
	Variant Variant

	// Model hyperparameters
	EmbeddingDim int       // word vector width
	FilterSizes  []int     // one conv branch per filter width
	NumFilters   int       // kernels per branch
	DropoutProb  []float64 // [after concat, after hidden dense]
	HiddenDims   int       // hidden dense width
	PoolWindow   int       // sliding max-pool window (and stride)

	// Training parameters
	BatchSize    int
	NumEpochs    int
	ValSplit     float64 // fraction of data held out for validation
	LearningRate float64 // RMSProp step size
	RMSPropRho   float64
	RMSPropEps   float64

	// Word2Vec parameters, see IO.TrainWordVectors
	MinWordCount int // minimum word count
	Context      int // context window size

	ModelDir string // where word-vector models and CNN artifacts live
}

// Reasonable defaults for the one-sentence movie review set. Such a small
// corpus needs a much smaller network than the original article's.
func DefaultConfig() Config {
	return Config{
		Variant: CNNNonStatic,

		EmbeddingDim: 100,
		FilterSizes:  []int{3, 4},
		NumFilters:   150,
		DropoutProb:  []float64{0.25, 0.5},
		HiddenDims:   150,
		PoolWindow:   2,

		BatchSize:    32,
		NumEpochs:    7,
		ValSplit:     0.1,
		LearningRate: 0.001,
		RMSPropRho:   0.9,
		RMSPropEps:   1e-8,

		MinWordCount: 1,
		Context:      10,

		ModelDir: "word2vec_models",
	}
}
