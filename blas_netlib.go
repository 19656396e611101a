//go:build netlib

package main

import (
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

// Forces gonum onto a system BLAS when built with `-tags netlib`.
func init() {
	blas64.Use(netlib.Implementation{})
}
