package cnn

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/dressag1/nlp-cnn/params"
)

// Architecture and weights are persisted separately: the architecture as
// a JSON layer-configuration graph, the weights (plus optimizer state and
// vocabulary) as a gob binary. Both are written at end of training and
// read back at the start of evaluation.

// ArchFileName derives the architecture artifact name from variant and
// epoch budget, e.g. "imdb_CNN-non-static7_arch.json".
func ArchFileName(v params.Variant, epochs int) string {
	return fmt.Sprintf("imdb_%s%d_arch.json", v, epochs)
}

// WeightsFileName is the paired weights artifact name.
func WeightsFileName(v params.Variant, epochs int) string {
	return fmt.Sprintf("imdb_%s%d.weights.gob", v, epochs)
}

type LayerConfig struct {
	Type       string  `json:"type"`
	Filters    int     `json:"filters,omitempty"`
	FilterSize int     `json:"filter_size,omitempty"`
	Window     int     `json:"window,omitempty"`
	Rate       float64 `json:"rate,omitempty"`
	Units      int     `json:"units,omitempty"`
	Activation string  `json:"activation,omitempty"`
}

type Architecture struct {
	Variant        string        `json:"variant"`
	EmbeddingDim   int           `json:"embedding_dim"`
	SequenceLength int           `json:"sequence_length"`
	FilterSizes    []int         `json:"filter_sizes"`
	NumFilters     int           `json:"num_filters"`
	PoolWindow     int           `json:"pool_window"`
	DropoutProb    []float64     `json:"dropout_prob"`
	HiddenDims     int           `json:"hidden_dims"`
	Layers         []LayerConfig `json:"layers"`
}

// Architecture renders the model's structural description.
func (m *Model) Architecture() Architecture {
	arch := Architecture{
		Variant:        m.Variant.String(),
		EmbeddingDim:   m.EmbeddingDim,
		SequenceLength: m.SeqLen,
		FilterSizes:    append([]int(nil), m.FilterSizes...),
		NumFilters:     m.NumFilters,
		PoolWindow:     m.PoolWindow,
		DropoutProb:    append([]float64(nil), m.DropoutProb...),
		HiddenDims:     m.HiddenDims,
	}
	if m.Embedding != nil {
		arch.Layers = append(arch.Layers, LayerConfig{Type: "embedding", Units: m.EmbeddingDim})
	}
	for _, fsz := range m.FilterSizes {
		arch.Layers = append(arch.Layers,
			LayerConfig{Type: "conv1d", Filters: m.NumFilters, FilterSize: fsz, Activation: "relu"},
			LayerConfig{Type: "maxpool1d", Window: m.PoolWindow},
			LayerConfig{Type: "flatten"},
		)
	}
	if len(m.FilterSizes) > 1 {
		arch.Layers = append(arch.Layers, LayerConfig{Type: "concat"})
	}
	arch.Layers = append(arch.Layers,
		LayerConfig{Type: "dropout", Rate: m.DropoutProb[0]},
		LayerConfig{Type: "dense", Units: m.HiddenDims},
		LayerConfig{Type: "dropout", Rate: m.DropoutProb[1]},
		LayerConfig{Type: "activation", Activation: "relu"},
		LayerConfig{Type: "dense", Units: 1},
		LayerConfig{Type: "activation", Activation: "sigmoid"},
	)
	return arch
}

func SaveArchitecture(arch Architecture, path string) error {
	raw, err := json.MarshalIndent(arch, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding architecture: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing architecture %s: %w", path, err)
	}
	return nil
}

func LoadArchitecture(path string) (Architecture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Architecture{}, fmt.Errorf("reading architecture %s: %w", path, err)
	}
	var arch Architecture
	if err := json.Unmarshal(raw, &arch); err != nil {
		return Architecture{}, fmt.Errorf("decoding architecture %s: %w", path, err)
	}
	return arch, nil
}

// Flattened numeric payloads for gob, teacher-style: dims alongside raw
// float slices, optimizer caches included so a reloaded model can keep
// training.
type denseData struct {
	WR, WC         int
	W, B           []float64
	WCache, BCache []float64
}

type convData struct {
	FilterSize  int
	Kernels     [][]float64
	Bias        []float64
	KernelCache [][]float64
	BiasCache   []float64
}

type weightsData struct {
	Variant    string
	EmbR, EmbC int
	Emb        []float64
	EmbCache   []float64
	Vocab      []string
	Branches   []convData
	Hidden     denseData
	Out        denseData
}

func matData(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

func denseFromData(d denseData) (*mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense) {
	w := mat.NewDense(d.WR, d.WC, d.W)
	b := mat.NewDense(d.WR, 1, d.B)
	wc := mat.NewDense(d.WR, d.WC, d.WCache)
	bc := mat.NewDense(d.WR, 1, d.BCache)
	return w, b, wc, bc
}

// SaveWeights persists the learned parameters (and RMSProp caches and
// vocabulary) as the weights artifact.
func SaveWeights(m *Model, path string) error {
	wd := weightsData{
		Variant: m.Variant.String(),
		Vocab:   m.VocabInv,
		Hidden: denseData{
			WR: m.Hidden.Out, WC: m.Hidden.In,
			W: matData(m.Hidden.W), B: matData(m.Hidden.B),
			WCache: matData(m.Hidden.WCache), BCache: matData(m.Hidden.BCache),
		},
		Out: denseData{
			WR: m.Out.Out, WC: m.Out.In,
			W: matData(m.Out.W), B: matData(m.Out.B),
			WCache: matData(m.Out.WCache), BCache: matData(m.Out.BCache),
		},
	}
	if m.Embedding != nil {
		wd.EmbR, wd.EmbC = m.Embedding.Dims()
		wd.Emb = matData(m.Embedding)
		wd.EmbCache = matData(m.EmbCache)
	}
	for _, b := range m.Branches {
		cd := convData{
			FilterSize: b.Conv.FilterSize,
			Bias:       append([]float64(nil), b.Conv.Bias...),
			BiasCache:  append([]float64(nil), b.Conv.BiasCache...),
		}
		for f := 0; f < b.Conv.NumFilters; f++ {
			cd.Kernels = append(cd.Kernels, matData(b.Conv.Kernels[f]))
			cd.KernelCache = append(cd.KernelCache, matData(b.Conv.KernelCache[f]))
		}
		wd.Branches = append(wd.Branches, cd)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wd); err != nil {
		return fmt.Errorf("encoding weights: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing weights %s: %w", path, err)
	}
	return nil
}

// LoadModel reconstructs a model from a persisted architecture+weights
// pair. The reloaded model predicts bit-identically to the saved one and
// can resume training (optimizer caches travel with the weights).
func LoadModel(archPath, weightsPath string) (*Model, error) {
	arch, err := LoadArchitecture(archPath)
	if err != nil {
		return nil, err
	}
	variant, err := params.ParseVariant(arch.Variant)
	if err != nil {
		return nil, fmt.Errorf("architecture %s: %w", archPath, err)
	}

	raw, err := os.ReadFile(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("reading weights %s: %w", weightsPath, err)
	}
	var wd weightsData
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&wd); err != nil {
		return nil, fmt.Errorf("decoding weights %s: %w", weightsPath, err)
	}
	if wd.Variant != arch.Variant {
		return nil, fmt.Errorf("weights variant %q does not match architecture variant %q", wd.Variant, arch.Variant)
	}
	if len(wd.Branches) != len(arch.FilterSizes) {
		return nil, fmt.Errorf("weights have %d conv branches, architecture expects %d", len(wd.Branches), len(arch.FilterSizes))
	}

	vocab := make(map[string]int, len(wd.Vocab))
	for i, tok := range wd.Vocab {
		vocab[tok] = i
	}

	cfg := params.Config{
		Variant:      variant,
		EmbeddingDim: arch.EmbeddingDim,
		FilterSizes:  arch.FilterSizes,
		NumFilters:   arch.NumFilters,
		DropoutProb:  arch.DropoutProb,
		HiddenDims:   arch.HiddenDims,
		PoolWindow:   arch.PoolWindow,
	}
	var seed *mat.Dense
	if variant == params.CNNNonStatic {
		// placeholder; overwritten from the weights payload below
		seed = mat.NewDense(arch.EmbeddingDim, len(wd.Vocab), nil)
	}
	m, err := NewModel(cfg, arch.SequenceLength, vocab, wd.Vocab, seed)
	if err != nil {
		return nil, err
	}

	if m.Embedding != nil {
		if wd.EmbR != arch.EmbeddingDim || wd.EmbC != len(wd.Vocab) {
			return nil, fmt.Errorf("weights embedding is (%d x %d), want (%d x %d)",
				wd.EmbR, wd.EmbC, arch.EmbeddingDim, len(wd.Vocab))
		}
		m.Embedding = mat.NewDense(wd.EmbR, wd.EmbC, wd.Emb)
		m.EmbCache = mat.NewDense(wd.EmbR, wd.EmbC, wd.EmbCache)
		m.EmbGrad = mat.NewDense(wd.EmbR, wd.EmbC, nil)
	}
	for bi, cd := range wd.Branches {
		conv := m.Branches[bi].Conv
		if cd.FilterSize != conv.FilterSize || len(cd.Kernels) != conv.NumFilters {
			return nil, fmt.Errorf("weights branch %d does not match architecture", bi)
		}
		for f := range cd.Kernels {
			conv.Kernels[f] = mat.NewDense(conv.EmbDim, conv.FilterSize, cd.Kernels[f])
			conv.KernelCache[f] = mat.NewDense(conv.EmbDim, conv.FilterSize, cd.KernelCache[f])
		}
		conv.Bias = append([]float64(nil), cd.Bias...)
		conv.BiasCache = append([]float64(nil), cd.BiasCache...)
		conv.BiasGrad = make([]float64, conv.NumFilters)
	}
	m.Hidden.W, m.Hidden.B, m.Hidden.WCache, m.Hidden.BCache = denseFromData(wd.Hidden)
	m.Out.W, m.Out.B, m.Out.WCache, m.Out.BCache = denseFromData(wd.Out)
	return m, nil
}
