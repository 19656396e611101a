package IO

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// PadToken is the reserved padding symbol. It always owns vocabulary id 0.
const PadToken = "<PAD/>"

// clean_str-style normalization for the movie review corpus: keep
// alphanumerics and sentence punctuation, split off contractions and
// punctuation as their own tokens, collapse whitespace, lowercase.
var (
	reNonToken  = regexp.MustCompile("[^A-Za-z0-9(),!?'`]")
	rePossess   = regexp.MustCompile(`'s`)
	reHave      = regexp.MustCompile(`'ve`)
	reNot       = regexp.MustCompile(`n't`)
	reAre       = regexp.MustCompile(`'re`)
	reWould     = regexp.MustCompile(`'d`)
	reWill      = regexp.MustCompile(`'ll`)
	rePunct     = regexp.MustCompile(`[,!?()]`)
	reMultiWS   = regexp.MustCompile(`\s{2,}`)
)

func CleanText(s string) string {
	s = reNonToken.ReplaceAllString(s, " ")
	s = rePossess.ReplaceAllString(s, " 's")
	s = reHave.ReplaceAllString(s, " 've")
	s = reNot.ReplaceAllString(s, " n't")
	s = reAre.ReplaceAllString(s, " 're")
	s = reWould.ReplaceAllString(s, " 'd")
	s = reWill.ReplaceAllString(s, " 'll")
	s = rePunct.ReplaceAllStringFunc(s, func(m string) string { return " " + m + " " })
	s = reMultiWS.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// LoadSentencesAndLabels reads one review per line from the positive and
// negative files, cleans and tokenizes each, and pairs it with a one-hot
// label: positive = [0,1] (class 1), negative = [1,0] (class 0).
func LoadSentencesAndLabels(posPath, negPath string) ([][]string, [][]float64, error) {
	pos, err := readLines(posPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading positive examples: %w", err)
	}
	neg, err := readLines(negPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading negative examples: %w", err)
	}
	if len(pos) == 0 {
		return nil, nil, fmt.Errorf("positive example file %s is empty", posPath)
	}
	if len(neg) == 0 {
		return nil, nil, fmt.Errorf("negative example file %s is empty", negPath)
	}

	sentences := make([][]string, 0, len(pos)+len(neg))
	labels := make([][]float64, 0, len(pos)+len(neg))
	for _, line := range pos {
		sentences = append(sentences, strings.Fields(CleanText(line)))
		labels = append(labels, []float64{0, 1})
	}
	for _, line := range neg {
		sentences = append(sentences, strings.Fields(CleanText(line)))
		labels = append(labels, []float64{1, 0})
	}
	return sentences, labels, nil
}

// PadSentences pads every sentence with PadToken so all share one length.
// seqLen <= 0 means "use the longest sentence in the set" (the training
// path); a positive seqLen forces that length, truncating longer
// sentences (the evaluation path, which must match a trained model).
func PadSentences(sentences [][]string, seqLen int) [][]string {
	if seqLen <= 0 {
		for _, s := range sentences {
			if len(s) > seqLen {
				seqLen = len(s)
			}
		}
	}
	out := make([][]string, len(sentences))
	for i, s := range sentences {
		if len(s) > seqLen {
			s = s[:seqLen]
		}
		padded := make([]string, seqLen)
		copy(padded, s)
		for j := len(s); j < seqLen; j++ {
			padded[j] = PadToken
		}
		out[i] = padded
	}
	return out
}

// BuildVocab assigns dense zero-based ids over the padded corpus:
// PadToken first, then tokens by descending frequency, ties broken
// lexicographically. Deterministic for a given corpus.
func BuildVocab(sentences [][]string) (map[string]int, []string) {
	counts := make(map[string]int)
	for _, s := range sentences {
		for _, tok := range s {
			counts[tok]++
		}
	}
	delete(counts, PadToken)

	type kv struct {
		k string
		v int
	}
	arr := make([]kv, 0, len(counts))
	for k, v := range counts {
		arr = append(arr, kv{k, v})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].v == arr[j].v {
			return arr[i].k < arr[j].k
		}
		return arr[i].v > arr[j].v
	})

	vocabInv := make([]string, 0, len(arr)+1)
	vocabInv = append(vocabInv, PadToken)
	for _, p := range arr {
		vocabInv = append(vocabInv, p.k)
	}
	vocab := make(map[string]int, len(vocabInv))
	for i, tok := range vocabInv {
		vocab[tok] = i
	}
	return vocab, vocabInv
}

// LoadData runs the full loading stage: read both files, pad to the max
// observed length (a global property, so the whole corpus is buffered
// first), build the vocabulary, and map sentences to id sequences.
func LoadData(posPath, negPath string) (x [][]int, y [][]float64, vocab map[string]int, vocabInv []string, err error) {
	sentences, labels, err := LoadSentencesAndLabels(posPath, negPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	padded := PadSentences(sentences, 0)
	vocab, vocabInv = BuildVocab(padded)
	x = make([][]int, len(padded))
	for i, s := range padded {
		ids := make([]int, len(s))
		for j, tok := range s {
			ids[j] = vocab[tok]
		}
		x[i] = ids
	}
	return x, labels, vocab, vocabInv, nil
}

// VocabLookup resolves a token to its id, falling back to the pad id for
// tokens unseen during training.
func VocabLookup(vocab map[string]int, tok string) int {
	if id, ok := vocab[tok]; ok {
		return id
	}
	return 0
}

// ClassOf collapses a one-hot label to its class index.
func ClassOf(oneHot []float64) int {
	best, bestI := oneHot[0], 0
	for i, v := range oneHot {
		if v > best {
			best, bestI = v, i
		}
	}
	return bestI
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
