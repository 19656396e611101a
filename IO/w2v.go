package IO

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dressag1/nlp-cnn/params"
)

// W2VConfig holds the hyperparameters of the auxiliary word-vector
// training step.
type W2VConfig struct {
	VectorSize      int     // embedding dimension
	MinWordCount    int     // tokens rarer than this are not trained
	Window          int     // max context window size (sampled per center)
	Epochs          int
	NegativeSamples int
	LearningRate    float64 // initial SGD step, decays linearly per epoch
}

// DefaultW2VConfig derives the word-vector hyperparameters from the
// classifier config.
func DefaultW2VConfig(cfg params.Config) W2VConfig {
	return W2VConfig{
		VectorSize:      cfg.EmbeddingDim,
		MinWordCount:    cfg.MinWordCount,
		Window:          cfg.Context,
		Epochs:          5,
		NegativeSamples: 5,
		LearningRate:    0.025,
	}
}

// WordVectors is a trained word-vector model. Tokens dropped by the
// min-count filter (and the pad token) are absent until a lookup or
// embedding-matrix build materializes a fallback vector for them, so a
// lookup never fails.
type WordVectors struct {
	VectorSize int
	Vectors    map[string][]float64
}

// Lookup returns the vector for tok, falling back to the pad vector for
// tokens outside the trained space. It never returns nil once
// EmbeddingWeights has run (which materializes the pad vector).
func (wv *WordVectors) Lookup(tok string) []float64 {
	if v, ok := wv.Vectors[tok]; ok {
		return v
	}
	if v, ok := wv.Vectors[PadToken]; ok {
		return v
	}
	// Pad vector not materialized yet: create it so later lookups agree.
	v := uniformVector(wv.VectorSize, 0.25)
	wv.Vectors[PadToken] = v
	return v
}

// EmbeddingWeights builds the (VectorSize x |V|) embedding matrix, column
// j holding the vector for vocabulary id j. Tokens missing from the
// trained space get a uniform(-0.25, 0.25) vector, stored back into the
// model so evaluation-time lookups see the same values.
func (wv *WordVectors) EmbeddingWeights(vocabInv []string) *mat.Dense {
	w := mat.NewDense(wv.VectorSize, len(vocabInv), nil)
	for j, tok := range vocabInv {
		vec, ok := wv.Vectors[tok]
		if !ok {
			vec = uniformVector(wv.VectorSize, 0.25)
			wv.Vectors[tok] = vec
		}
		for i := 0; i < wv.VectorSize; i++ {
			w.Set(i, j, vec[i])
		}
	}
	return w
}

// EmbedSequence maps a padded id sequence onto columns of an embedding
// matrix (dim x |V|), producing the (dim x T) network input.
func EmbedSequence(emb *mat.Dense, ids []int) *mat.Dense {
	d, _ := emb.Dims()
	out := mat.NewDense(d, len(ids), nil)
	for t, id := range ids {
		for i := 0; i < d; i++ {
			out.Set(i, t, emb.At(i, id))
		}
	}
	return out
}

// TrainWordVectors trains skip-gram word vectors with negative sampling
// over the padded id sequences. The sentences arrive as vocabulary ids;
// vocabInv maps them back to tokens for the stored model.
func TrainWordVectors(x [][]int, vocabInv []string, cfg W2VConfig) (*WordVectors, error) {
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("word2vec: vector size must be positive, got %d", cfg.VectorSize)
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("word2vec: no sentences to train on")
	}

	// Count corpus frequencies; the pad token never trains.
	counts := make([]int, len(vocabInv))
	for _, sent := range x {
		for _, id := range sent {
			counts[id]++
		}
	}
	trainable := make([]bool, len(vocabInv))
	var kept []int
	for id := range vocabInv {
		if id == 0 { // pad
			continue
		}
		if counts[id] >= cfg.MinWordCount && counts[id] > 0 {
			trainable[id] = true
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("word2vec: min word count %d leaves no trainable tokens", cfg.MinWordCount)
	}

	// Unigram^0.75 negative-sampling distribution (cumulative form).
	cum := make([]float64, len(kept))
	total := 0.0
	for i, id := range kept {
		total += math.Pow(float64(counts[id]), 0.75)
		cum[i] = total
	}
	sampleNegative := func() int {
		r := rand.Float64() * total
		i := sort.SearchFloat64s(cum, r)
		if i >= len(kept) {
			i = len(kept) - 1
		}
		return kept[i]
	}

	// syn0 = input vectors, syn1 = output vectors (word2vec convention:
	// syn1 starts at zero).
	dim := cfg.VectorSize
	u := distuv.Uniform{Min: -0.5 / float64(dim), Max: 0.5 / float64(dim)}
	syn0 := make([][]float64, len(vocabInv))
	syn1 := make([][]float64, len(vocabInv))
	for id := range vocabInv {
		syn0[id] = make([]float64, dim)
		syn1[id] = make([]float64, dim)
		for i := 0; i < dim; i++ {
			syn0[id][i] = u.Rand()
		}
	}

	window := cfg.Window
	if window < 1 {
		window = 1
	}
	neu1e := make([]float64, dim)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		lr := cfg.LearningRate * (1.0 - float64(epoch)/float64(cfg.Epochs))
		if lr < cfg.LearningRate*0.0001 {
			lr = cfg.LearningRate * 0.0001
		}
		for _, sent := range x {
			for pos, center := range sent {
				if !trainable[center] {
					continue
				}
				b := rand.Intn(window) + 1
				for off := -b; off <= b; off++ {
					if off == 0 {
						continue
					}
					cpos := pos + off
					if cpos < 0 || cpos >= len(sent) {
						continue
					}
					context := sent[cpos]
					if !trainable[context] || context == center {
						continue
					}
					for i := range neu1e {
						neu1e[i] = 0
					}
					// Positive pair plus k negative samples.
					for k := 0; k <= cfg.NegativeSamples; k++ {
						target, label := context, 1.0
						if k > 0 {
							target = sampleNegative()
							if target == context {
								continue
							}
							label = 0.0
						}
						dotp := 0.0
						for i := 0; i < dim; i++ {
							dotp += syn0[center][i] * syn1[target][i]
						}
						g := (label - sigmoid(dotp)) * lr
						for i := 0; i < dim; i++ {
							neu1e[i] += g * syn1[target][i]
							syn1[target][i] += g * syn0[center][i]
						}
					}
					for i := 0; i < dim; i++ {
						syn0[center][i] += neu1e[i]
					}
				}
			}
		}
	}

	wv := &WordVectors{VectorSize: dim, Vectors: make(map[string][]float64, len(kept))}
	for _, id := range kept {
		wv.Vectors[vocabInv[id]] = syn0[id]
	}
	return wv, nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func uniformVector(dim int, bound float64) []float64 {
	u := distuv.Uniform{Min: -bound, Max: bound}
	v := make([]float64, dim)
	for i := range v {
		v[i] = u.Rand()
	}
	return v
}

// WordVectorModelName derives the persisted model name from the
// hyperparameters and variant, e.g. "100features_1minwords_10context_CNN-non-static".
func WordVectorModelName(cfg W2VConfig, variant params.Variant) string {
	return fmt.Sprintf("%dfeatures_%dminwords_%dcontext_%s",
		cfg.VectorSize, cfg.MinWordCount, cfg.Window, variant)
}

// SaveWordVectors persists the model with gob under dir, creating the
// directory if needed.
func SaveWordVectors(wv *WordVectors, dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating word-vector model dir: %w", err)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wv); err != nil {
		return fmt.Errorf("encoding word-vector model: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing word-vector model %s: %w", path, err)
	}
	return nil
}

// LoadWordVectors reloads a persisted model.
func LoadWordVectors(dir, name string) (*WordVectors, error) {
	path := filepath.Join(dir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading word-vector model %s: %w", path, err)
	}
	var wv WordVectors
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&wv); err != nil {
		return nil, fmt.Errorf("decoding word-vector model %s: %w", path, err)
	}
	if wv.Vectors == nil {
		wv.Vectors = make(map[string][]float64)
	}
	return &wv, nil
}

// TrainOrLoadWordVectors reuses a previously trained model when one with
// the same hyperparameters exists, otherwise trains and persists one.
func TrainOrLoadWordVectors(x [][]int, vocabInv []string, cfg W2VConfig, dir string, variant params.Variant) (*WordVectors, error) {
	name := WordVectorModelName(cfg, variant)
	if wv, err := LoadWordVectors(dir, name); err == nil {
		return wv, nil
	}
	wv, err := TrainWordVectors(x, vocabInv, cfg)
	if err != nil {
		return nil, err
	}
	if err := SaveWordVectors(wv, dir, name); err != nil {
		return nil, err
	}
	return wv, nil
}
