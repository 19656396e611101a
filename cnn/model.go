package cnn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/dressag1/nlp-cnn/optimizations"
	"github.com/dressag1/nlp-cnn/params"
	"github.com/dressag1/nlp-cnn/utils"
)

// Model is the assembled sentence classifier: parallel conv+pool branches
// (one per filter width) over the embedded sequence, concatenated, then
// dropout -> dense(hidden) -> dropout -> relu -> dense(1) -> sigmoid.
//
// CNN-rand and CNN-non-static own a trainable embedding matrix; CNN-static
// has Embedding == nil and expects pre-embedded (embDim x seqLen) inputs.
type Model struct {
	Variant params.Variant

	EmbeddingDim int
	SeqLen       int
	FilterSizes  []int
	NumFilters   int
	PoolWindow   int
	DropoutProb  []float64
	HiddenDims   int

	Vocab    map[string]int
	VocabInv []string

	Embedding *mat.Dense // (EmbeddingDim x |V|), nil for CNN-static
	EmbGrad   *mat.Dense
	EmbCache  *mat.Dense

	Branches   []*Branch
	DropFeat   *Dropout
	Hidden     *Dense
	DropHidden *Dropout
	Out        *Dense

	// Training toggles dropout; evaluation runs deterministically.
	Training bool

	// forward caches
	lastIDs []int
	lastD1  *mat.Dense // hidden pre-relu (post dropout), for the relu mask
}

// Branch is one filter-width feature extractor.
type Branch struct {
	Conv *Conv1D
	Pool *MaxPool1D
}

// FeatureLen is the flattened branch output length for a seqLen input.
func (b *Branch) FeatureLen(seqLen int) int {
	return b.Conv.NumFilters * b.Pool.OutCols(b.Conv.OutCols(seqLen))
}

// NewModel assembles the classifier for the given variant. embWeights is
// the pretrained embedding matrix (EmbeddingDim x |V|); it must be non-nil
// for CNN-non-static (it seeds the trainable embedding) and is ignored for
// CNN-rand (random init) and CNN-static (the caller pre-embeds inputs).
func NewModel(cfg params.Config, seqLen int, vocab map[string]int, vocabInv []string, embWeights *mat.Dense) (*Model, error) {
	if len(cfg.FilterSizes) == 0 {
		return nil, fmt.Errorf("model: at least one filter size is required")
	}
	if len(cfg.DropoutProb) != 2 {
		return nil, fmt.Errorf("model: want 2 dropout rates, got %d", len(cfg.DropoutProb))
	}
	for _, fsz := range cfg.FilterSizes {
		if seqLen-fsz+1 < cfg.PoolWindow {
			return nil, fmt.Errorf("model: sequence length %d too short for filter size %d with pool window %d",
				seqLen, fsz, cfg.PoolWindow)
		}
	}

	m := &Model{
		Variant:      cfg.Variant,
		EmbeddingDim: cfg.EmbeddingDim,
		SeqLen:       seqLen,
		FilterSizes:  append([]int(nil), cfg.FilterSizes...),
		NumFilters:   cfg.NumFilters,
		PoolWindow:   cfg.PoolWindow,
		DropoutProb:  append([]float64(nil), cfg.DropoutProb...),
		HiddenDims:   cfg.HiddenDims,
		Vocab:        vocab,
		VocabInv:     vocabInv,
	}

	switch cfg.Variant {
	case params.CNNRand:
		m.Embedding = mat.NewDense(cfg.EmbeddingDim, len(vocabInv),
			utils.RandomArray(cfg.EmbeddingDim*len(vocabInv), float64(cfg.EmbeddingDim)))
	case params.CNNNonStatic:
		if embWeights == nil {
			return nil, fmt.Errorf("model: %s requires pretrained embedding weights", cfg.Variant)
		}
		m.Embedding = mat.DenseCopyOf(embWeights)
	case params.CNNStatic:
		// no embedding parameters at all
	default:
		return nil, fmt.Errorf("model: unknown model variation %v", cfg.Variant)
	}
	if m.Embedding != nil {
		m.EmbGrad = utils.ZerosLike(m.Embedding)
		m.EmbCache = utils.ZerosLike(m.Embedding)
	}

	featLen := 0
	for _, fsz := range cfg.FilterSizes {
		b := &Branch{
			Conv: NewConv1D(cfg.EmbeddingDim, fsz, cfg.NumFilters),
			Pool: NewMaxPool1D(cfg.PoolWindow),
		}
		m.Branches = append(m.Branches, b)
		featLen += b.FeatureLen(seqLen)
	}
	m.DropFeat = NewDropout(cfg.DropoutProb[0])
	m.Hidden = NewDense(featLen, cfg.HiddenDims)
	m.DropHidden = NewDropout(cfg.DropoutProb[1])
	m.Out = NewDense(cfg.HiddenDims, 1)
	return m, nil
}

// Embed maps a padded id sequence to its (EmbeddingDim x SeqLen) matrix
// using the model's own embedding. Only valid for embedding variants.
func (m *Model) Embed(ids []int) *mat.Dense {
	if m.Embedding == nil {
		panic("model: Embed called on a CNN-static model")
	}
	out := mat.NewDense(m.EmbeddingDim, len(ids), nil)
	for t, id := range ids {
		for i := 0; i < m.EmbeddingDim; i++ {
			out.Set(i, t, m.Embedding.At(i, id))
		}
	}
	return out
}

// ForwardIDs runs one padded id sequence through the network and returns
// the positive-sentiment probability. Embedding variants only.
func (m *Model) ForwardIDs(ids []int) float64 {
	if len(ids) != m.SeqLen {
		panic(fmt.Sprintf("model: sequence has %d tokens, want %d", len(ids), m.SeqLen))
	}
	m.lastIDs = ids
	return m.forward(m.Embed(ids))
}

// ForwardEmbedded runs a pre-embedded (EmbeddingDim x SeqLen) example.
// This is the CNN-static input path.
func (m *Model) ForwardEmbedded(x *mat.Dense) float64 {
	m.lastIDs = nil
	return m.forward(x)
}

func (m *Model) forward(x *mat.Dense) float64 {
	feat := make([]float64, 0, m.Hidden.In)
	for _, b := range m.Branches {
		pooled := b.Pool.Forward(b.Conv.Forward(x))
		feat = append(feat, flatten(pooled)...)
	}
	featVec := mat.NewDense(len(feat), 1, feat)

	f0 := m.DropFeat.Forward(featVec, m.Training)
	z1 := m.Hidden.Forward(f0)
	d1 := m.DropHidden.Forward(z1, m.Training)
	m.lastD1 = d1
	a1 := utils.ToDense(utils.Apply(utils.ReluApply, d1))
	z2 := m.Out.Forward(a1)
	return utils.Sigmoid(z2.At(0, 0))
}

// Backward accumulates gradients from dLogit, the loss gradient with
// respect to the pre-sigmoid output (p - y for BCE). Gradients sum across
// calls until Step.
func (m *Model) Backward(dLogit float64) {
	da1 := m.Out.Backward(mat.NewDense(1, 1, []float64{dLogit}))
	dd1 := mat.NewDense(da1.RawMatrix().Rows, 1, nil)
	dd1.MulElem(da1, utils.ReluPrime(m.lastD1))
	dz1 := m.DropHidden.Backward(dd1)
	df0 := m.Hidden.Backward(dz1)
	dfeat := m.DropFeat.Backward(df0)

	// Split the concatenated feature gradient back into branches.
	off := 0
	var dX *mat.Dense
	for _, b := range m.Branches {
		n := b.FeatureLen(m.SeqLen)
		seg := make([]float64, n)
		for i := 0; i < n; i++ {
			seg[i] = dfeat.At(off+i, 0)
		}
		off += n
		U := b.Pool.OutCols(b.Conv.OutCols(m.SeqLen))
		dPooled := unflatten(seg, b.Conv.NumFilters, U)
		dxb := b.Conv.Backward(b.Pool.Backward(dPooled))
		if dX == nil {
			dX = dxb
		} else {
			dX.Add(dX, dxb)
		}
	}

	// Scatter the input gradient into the embedding columns that produced
	// it. CNN-static stops here: its inputs are fixed vectors.
	if m.Embedding != nil && m.lastIDs != nil {
		for t, id := range m.lastIDs {
			for i := 0; i < m.EmbeddingDim; i++ {
				m.EmbGrad.Set(i, id, m.EmbGrad.At(i, id)+dX.At(i, t))
			}
		}
	}
}

// Step applies one RMSProp update from the accumulated gradients and
// zeroes them.
func (m *Model) Step(lr, rho, eps float64) {
	for _, b := range m.Branches {
		b.Conv.Step(lr, rho, eps)
	}
	m.Hidden.Step(lr, rho, eps)
	m.Out.Step(lr, rho, eps)
	if m.Embedding != nil {
		optimizations.RMSPropUpdateInPlace(m.Embedding, m.EmbGrad, m.EmbCache, lr, rho, eps)
		m.EmbGrad.Zero()
	}
}

// Classify thresholds a sigmoid probability at 0.5.
func Classify(p float64) int {
	if p >= 0.5 {
		return 1
	}
	return 0
}

func flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

func unflatten(v []float64, r, c int) *mat.Dense {
	if len(v) != r*c {
		panic("unflatten: length mismatch")
	}
	return mat.NewDense(r, c, v)
}
