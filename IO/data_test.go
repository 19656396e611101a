package IO

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeCorpus(t *testing.T, pos, neg []string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	posPath := filepath.Join(dir, "train.pos")
	negPath := filepath.Join(dir, "train.neg")
	if err := os.WriteFile(posPath, []byte(strings.Join(pos, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(negPath, []byte(strings.Join(neg, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return posPath, negPath
}

func TestCleanText(t *testing.T) {
	got := CleanText("It's great (really)! Don't miss it...")
	want := "it 's great ( really ) ! do n't miss it"
	if got != want {
		t.Fatalf("CleanText = %q, want %q", got, want)
	}
}

func TestLoadDataPadsToMaxLength(t *testing.T) {
	posPath, negPath := writeCorpus(t,
		[]string{"great movie", "loved it very very much"},
		[]string{"bad", "awful boring mess"},
	)
	x, y, vocab, vocabInv, err := LoadData(posPath, negPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(x) != 4 || len(y) != 4 {
		t.Fatalf("got %d examples, want 4", len(x))
	}
	// Longest raw sentence has 5 tokens; every sequence shares that length.
	for i, ids := range x {
		if len(ids) != 5 {
			t.Fatalf("sequence %d has length %d, want 5", i, len(ids))
		}
	}
	// "bad" is padded with the pad id in positions 1..4.
	for _, ids := range x {
		for _, id := range ids {
			if id < 0 || id >= len(vocabInv) {
				t.Fatalf("id %d outside vocabulary", id)
			}
		}
	}
	if vocab[PadToken] != 0 {
		t.Fatalf("pad token id = %d, want 0", vocab[PadToken])
	}
}

func TestVocabularyExactAndDense(t *testing.T) {
	posPath, negPath := writeCorpus(t,
		[]string{"good good movie"},
		[]string{"bad movie"},
	)
	_, _, vocab, vocabInv, err := LoadData(posPath, negPath)
	if err != nil {
		t.Fatal(err)
	}
	wantTokens := map[string]bool{PadToken: true, "good": true, "movie": true, "bad": true}
	if len(vocab) != len(wantTokens) {
		t.Fatalf("vocabulary has %d entries, want %d: %v", len(vocab), len(wantTokens), vocab)
	}
	seen := make(map[int]bool)
	for tok, id := range vocab {
		if !wantTokens[tok] {
			t.Fatalf("unexpected token %q", tok)
		}
		if id < 0 || id >= len(vocab) {
			t.Fatalf("id %d for %q not dense", id, tok)
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
		if vocabInv[id] != tok {
			t.Fatalf("inverse vocabulary disagrees at %d: %q vs %q", id, vocabInv[id], tok)
		}
	}
}

func TestLabelsOneHot(t *testing.T) {
	posPath, negPath := writeCorpus(t, []string{"nice"}, []string{"bad"})
	_, y, _, _, err := LoadData(posPath, negPath)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(y[0], []float64{0, 1}) {
		t.Fatalf("positive label = %v, want [0 1]", y[0])
	}
	if !reflect.DeepEqual(y[1], []float64{1, 0}) {
		t.Fatalf("negative label = %v, want [1 0]", y[1])
	}
	if ClassOf(y[0]) != 1 || ClassOf(y[1]) != 0 {
		t.Fatal("ClassOf collapsed labels wrong")
	}
}

func TestLoadDataMissingFile(t *testing.T) {
	posPath, _ := writeCorpus(t, []string{"x"}, []string{"y"})
	if _, _, _, _, err := LoadData(posPath, filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("missing negative file should be an error")
	}
}

func TestPadSentencesTruncatesToForcedLength(t *testing.T) {
	padded := PadSentences([][]string{{"a", "b", "c"}, {"d"}}, 2)
	if !reflect.DeepEqual(padded[0], []string{"a", "b"}) {
		t.Fatalf("truncation wrong: %v", padded[0])
	}
	if !reflect.DeepEqual(padded[1], []string{"d", PadToken}) {
		t.Fatalf("padding wrong: %v", padded[1])
	}
}

func TestVocabLookupFallsBackToPad(t *testing.T) {
	vocab := map[string]int{PadToken: 0, "hello": 1}
	if VocabLookup(vocab, "hello") != 1 {
		t.Fatal("known token lookup wrong")
	}
	if VocabLookup(vocab, "martian") != 0 {
		t.Fatal("unknown token must resolve to the pad id")
	}
}
