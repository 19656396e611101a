package utils

import (
	"math"
	"testing"
)

func TestConfusionMatrixCounts(t *testing.T) {
	predicted := []int{0, 1, 1, 0}
	trueLabels := []int{0, 1, 0, 0}
	cm := ConfusionMatrix(trueLabels, predicted, 2)
	want := [][]int{{2, 1}, {0, 1}}
	for i := range want {
		for j := range want[i] {
			if cm[i][j] != want[i][j] {
				t.Fatalf("cm[%d][%d] = %d, want %d", i, j, cm[i][j], want[i][j])
			}
		}
	}
}

func TestNormalizeByRow(t *testing.T) {
	norm := NormalizeByRow([][]int{{2, 1}, {0, 1}, {0, 0}})
	if math.Abs(norm[0][0]-2.0/3.0) > 1e-12 || math.Abs(norm[0][1]-1.0/3.0) > 1e-12 {
		t.Fatalf("row 0 normalized wrong: %v", norm[0])
	}
	if norm[1][0] != 0 || norm[1][1] != 1 {
		t.Fatalf("row 1 normalized wrong: %v", norm[1])
	}
	if norm[2][0] != 0 || norm[2][1] != 0 {
		t.Fatalf("empty row must stay zero: %v", norm[2])
	}
}

func TestConfusionMatrixPanicsOnMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("length mismatch should panic")
		}
	}()
	ConfusionMatrix([]int{0}, []int{0, 1}, 2)
}
