package optimizations

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// RMSPropUpdateInPlace applies one RMSProp step:
// cache = rho*cache + (1-rho)*g^2; p -= lr * g / (sqrt(cache)+eps).
func RMSPropUpdateInPlace(p, g, cache *mat.Dense, lr, rho, eps float64) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("rmsPropUpdateInPlace: grad shape mismatch")
	}
	if cr, cc := cache.Dims(); cr != pr || cc != pc {
		panic("rmsPropUpdateInPlace: cache shape mismatch")
	}
	for i := 0; i < pr; i++ {
		for j := 0; j < pc; j++ {
			gij := g.At(i, j)
			cij := rho*cache.At(i, j) + (1.0-rho)*gij*gij
			cache.Set(i, j, cij)
			p.Set(i, j, p.At(i, j)-lr*gij/(math.Sqrt(cij)+eps))
		}
	}
}

// RMSPropUpdateVecInPlace is the []float64 form used for bias vectors and
// word-vector rows.
func RMSPropUpdateVecInPlace(p, g, cache []float64, lr, rho, eps float64) {
	if len(g) != len(p) || len(cache) != len(p) {
		panic("rmsPropUpdateVecInPlace: length mismatch")
	}
	for i := range p {
		cij := rho*cache[i] + (1.0-rho)*g[i]*g[i]
		cache[i] = cij
		p[i] -= lr * g[i] / (math.Sqrt(cij)+eps)
	}
}
