package cnn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/dressag1/nlp-cnn/optimizations"
	"github.com/dressag1/nlp-cnn/utils"
)

// Layers operate on one example at a time in the teacher orientation:
// an embedded sentence is (embDim x T), one column per token. Gradients
// accumulate across a mini-batch in the *Grad fields; Step applies an
// RMSProp update and zeroes them.

// Conv1D is a valid 1-D convolution over the token axis with relu
// activation: out[f,t] = relu(sum_{i,dt} K_f[i,dt] * x[i,t+dt] + b_f).
type Conv1D struct {
	EmbDim     int
	FilterSize int
	NumFilters int

	Kernels []*mat.Dense // each (EmbDim x FilterSize)
	Bias    []float64

	KernelGrad  []*mat.Dense
	BiasGrad    []float64
	KernelCache []*mat.Dense
	BiasCache   []float64

	lastInput *mat.Dense
	lastPre   *mat.Dense
}

func NewConv1D(embDim, filterSize, numFilters int) *Conv1D {
	c := &Conv1D{
		EmbDim:      embDim,
		FilterSize:  filterSize,
		NumFilters:  numFilters,
		Kernels:     make([]*mat.Dense, numFilters),
		Bias:        make([]float64, numFilters),
		KernelGrad:  make([]*mat.Dense, numFilters),
		BiasGrad:    make([]float64, numFilters),
		KernelCache: make([]*mat.Dense, numFilters),
		BiasCache:   make([]float64, numFilters),
	}
	fanIn := float64(embDim * filterSize)
	for f := 0; f < numFilters; f++ {
		c.Kernels[f] = mat.NewDense(embDim, filterSize, utils.RandomArray(embDim*filterSize, fanIn))
		c.KernelGrad[f] = mat.NewDense(embDim, filterSize, nil)
		c.KernelCache[f] = mat.NewDense(embDim, filterSize, nil)
	}
	return c
}

// OutCols is the convolved length for a T-column input.
func (c *Conv1D) OutCols(T int) int { return T - c.FilterSize + 1 }

func (c *Conv1D) Forward(x *mat.Dense) *mat.Dense {
	d, T := x.Dims()
	if d != c.EmbDim {
		panic(fmt.Sprintf("conv1d: input has %d rows, want %d", d, c.EmbDim))
	}
	L := c.OutCols(T)
	if L < 1 {
		panic(fmt.Sprintf("conv1d: sequence length %d shorter than filter size %d", T, c.FilterSize))
	}
	pre := mat.NewDense(c.NumFilters, L, nil)
	for f := 0; f < c.NumFilters; f++ {
		k := c.Kernels[f]
		for t := 0; t < L; t++ {
			s := c.Bias[f]
			for dt := 0; dt < c.FilterSize; dt++ {
				for i := 0; i < d; i++ {
					s += k.At(i, dt) * x.At(i, t+dt)
				}
			}
			pre.Set(f, t, s)
		}
	}
	c.lastInput = x
	c.lastPre = pre
	return utils.ToDense(utils.Apply(utils.ReluApply, pre))
}

// Backward routes dOut through the relu mask, accumulates kernel and bias
// gradients, and returns the gradient with respect to the input columns.
func (c *Conv1D) Backward(dOut *mat.Dense) *mat.Dense {
	d, T := c.lastInput.Dims()
	_, L := c.lastPre.Dims()
	if r, cc := dOut.Dims(); r != c.NumFilters || cc != L {
		panic("conv1d: backward shape mismatch")
	}
	dX := mat.NewDense(d, T, nil)
	for f := 0; f < c.NumFilters; f++ {
		k := c.Kernels[f]
		kg := c.KernelGrad[f]
		for t := 0; t < L; t++ {
			if c.lastPre.At(f, t) <= 0 {
				continue
			}
			g := dOut.At(f, t)
			if g == 0 {
				continue
			}
			c.BiasGrad[f] += g
			for dt := 0; dt < c.FilterSize; dt++ {
				for i := 0; i < d; i++ {
					kg.Set(i, dt, kg.At(i, dt)+g*c.lastInput.At(i, t+dt))
					dX.Set(i, t+dt, dX.At(i, t+dt)+g*k.At(i, dt))
				}
			}
		}
	}
	return dX
}

func (c *Conv1D) Step(lr, rho, eps float64) {
	for f := 0; f < c.NumFilters; f++ {
		optimizations.RMSPropUpdateInPlace(c.Kernels[f], c.KernelGrad[f], c.KernelCache[f], lr, rho, eps)
		c.KernelGrad[f].Zero()
	}
	optimizations.RMSPropUpdateVecInPlace(c.Bias, c.BiasGrad, c.BiasCache, lr, rho, eps)
	for f := range c.BiasGrad {
		c.BiasGrad[f] = 0
	}
}

// MaxPool1D slides a fixed window (stride = window) over the token axis
// and keeps the max per filter. The trailing remainder is discarded.
type MaxPool1D struct {
	Window int

	argmax  [][]int // (F x U) winning input column per pooled cell
	inRows  int
	inCols  int
}

func NewMaxPool1D(window int) *MaxPool1D {
	if window < 1 {
		panic("maxpool1d: window must be >= 1")
	}
	return &MaxPool1D{Window: window}
}

// OutCols is the pooled length for an L-column input.
func (p *MaxPool1D) OutCols(L int) int { return L / p.Window }

func (p *MaxPool1D) Forward(x *mat.Dense) *mat.Dense {
	F, L := x.Dims()
	U := p.OutCols(L)
	if U < 1 {
		panic(fmt.Sprintf("maxpool1d: input length %d shorter than window %d", L, p.Window))
	}
	out := mat.NewDense(F, U, nil)
	p.argmax = make([][]int, F)
	p.inRows, p.inCols = F, L
	for f := 0; f < F; f++ {
		p.argmax[f] = make([]int, U)
		for u := 0; u < U; u++ {
			bestT := u * p.Window
			best := x.At(f, bestT)
			for t := bestT + 1; t < bestT+p.Window; t++ {
				if x.At(f, t) > best {
					best = x.At(f, t)
					bestT = t
				}
			}
			out.Set(f, u, best)
			p.argmax[f][u] = bestT
		}
	}
	return out
}

func (p *MaxPool1D) Backward(dOut *mat.Dense) *mat.Dense {
	F, U := dOut.Dims()
	if F != p.inRows || U != len(p.argmax[0]) {
		panic("maxpool1d: backward shape mismatch")
	}
	dX := mat.NewDense(p.inRows, p.inCols, nil)
	for f := 0; f < F; f++ {
		for u := 0; u < U; u++ {
			t := p.argmax[f][u]
			dX.Set(f, t, dX.At(f, t)+dOut.At(f, u))
		}
	}
	return dX
}

// Dense is a fully connected layer on column vectors: out = W*x + b.
type Dense struct {
	In, Out int

	W *mat.Dense // (Out x In)
	B *mat.Dense // (Out x 1)

	WGrad, BGrad   *mat.Dense
	WCache, BCache *mat.Dense

	lastInput *mat.Dense
}

func NewDense(in, out int) *Dense {
	return &Dense{
		In:     in,
		Out:    out,
		W:      mat.NewDense(out, in, utils.RandomArray(out*in, float64(in))),
		B:      mat.NewDense(out, 1, nil),
		WGrad:  mat.NewDense(out, in, nil),
		BGrad:  mat.NewDense(out, 1, nil),
		WCache: mat.NewDense(out, in, nil),
		BCache: mat.NewDense(out, 1, nil),
	}
}

func (l *Dense) Forward(x *mat.Dense) *mat.Dense {
	if r, c := x.Dims(); r != l.In || c != 1 {
		panic(fmt.Sprintf("dense: input is (%d x %d), want (%d x 1)", r, c, l.In))
	}
	l.lastInput = x
	return utils.ToDense(utils.Add(utils.Dot(l.W, x), l.B))
}

func (l *Dense) Backward(dOut *mat.Dense) *mat.Dense {
	if r, c := dOut.Dims(); r != l.Out || c != 1 {
		panic("dense: backward shape mismatch")
	}
	l.WGrad.Add(l.WGrad, utils.ToDense(utils.Dot(dOut, l.lastInput.T())))
	l.BGrad.Add(l.BGrad, dOut)
	return utils.ToDense(utils.Dot(l.W.T(), dOut))
}

func (l *Dense) Step(lr, rho, eps float64) {
	optimizations.RMSPropUpdateInPlace(l.W, l.WGrad, l.WCache, lr, rho, eps)
	optimizations.RMSPropUpdateInPlace(l.B, l.BGrad, l.BCache, lr, rho, eps)
	l.WGrad.Zero()
	l.BGrad.Zero()
}

// Dropout is inverted dropout: surviving activations are scaled by
// 1/(1-p) at train time so evaluation is the identity.
type Dropout struct {
	P float64

	mask *mat.Dense
}

func NewDropout(p float64) *Dropout {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: rate %v outside [0, 1)", p))
	}
	return &Dropout{P: p}
}

func (d *Dropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	if !training || d.P == 0 {
		d.mask = nil
		return x
	}
	r, c := x.Dims()
	d.mask = mat.NewDense(r, c, nil)
	keep := 1.0 / (1.0 - d.P)
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if rand.Float64() >= d.P {
				d.mask.Set(i, j, keep)
				out.Set(i, j, x.At(i, j)*keep)
			}
		}
	}
	return out
}

func (d *Dropout) Backward(dOut *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return dOut
	}
	out := mat.NewDense(dOut.RawMatrix().Rows, dOut.RawMatrix().Cols, nil)
	out.MulElem(dOut, d.mask)
	return out
}
