package utils

import (
	"fmt"
	"strings"
)

// ConfusionMatrix counts prediction outcomes: rows are true classes,
// columns are predicted classes. Panics if the slices disagree in length
// or contain a label outside [0, numClasses).
func ConfusionMatrix(trueLabels, predicted []int, numClasses int) [][]int {
	if len(trueLabels) != len(predicted) {
		panic("ConfusionMatrix: label/prediction length mismatch")
	}
	cm := make([][]int, numClasses)
	for i := range cm {
		cm[i] = make([]int, numClasses)
	}
	for i := range trueLabels {
		t, p := trueLabels[i], predicted[i]
		if t < 0 || t >= numClasses || p < 0 || p >= numClasses {
			panic(fmt.Sprintf("ConfusionMatrix: label out of range at %d (true=%d pred=%d)", i, t, p))
		}
		cm[t][p]++
	}
	return cm
}

// NormalizeByRow divides each row by its sample count. Empty rows stay
// all-zero rather than dividing by zero.
func NormalizeByRow(cm [][]int) [][]float64 {
	out := make([][]float64, len(cm))
	for i, row := range cm {
		out[i] = make([]float64, len(row))
		sum := 0
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			continue
		}
		for j, v := range row {
			out[i][j] = float64(v) / float64(sum)
		}
	}
	return out
}

// FormatConfusion renders raw counts and the row-normalized matrix for
// terminal output.
func FormatConfusion(cm [][]int) string {
	var sb strings.Builder
	sb.WriteString("Confusion matrix, without normalization\n")
	for _, row := range cm {
		sb.WriteString(fmt.Sprintf("%v\n", row))
	}
	sb.WriteString("Row-normalized\n")
	for _, row := range NormalizeByRow(cm) {
		sb.WriteString("[")
		for j, v := range row {
			if j > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(fmt.Sprintf("%.2f", v))
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}
