// Train a convolutional network for sentiment analysis. Based on
// "Convolutional Neural Networks for Sentence Classification" by Yoon Kim
// http://arxiv.org/pdf/1408.5882v2.pdf
//
// Three model variations: CNN-rand trains its own embeddings from random
// init, CNN-static and CNN-non-static seed them from a word2vec model
// trained on the same corpus (static keeps them frozen). A sliding
// max-pooling window of length 2 replaces max-over-time pooling from the
// article; it works better on short, small-corpus sentences.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dressag1/nlp-cnn/params"
)

func main() {
	def := params.DefaultConfig()

	mode := flag.String("mode", "train", "train or eval")
	variant := flag.String("variant", def.Variant.String(), "CNN-rand | CNN-static | CNN-non-static")
	posPath := flag.String("pos", "data/imdb_train.pos", "positive training examples, one review per line")
	negPath := flag.String("neg", "data/imdb_train.neg", "negative training examples, one review per line")
	testPos := flag.String("test-pos", "data/imdb_test.pos", "positive test examples")
	testNeg := flag.String("test-neg", "data/imdb_test.neg", "negative test examples")
	embeddingDim := flag.Int("embedding-dim", def.EmbeddingDim, "word vector width")
	filterSizes := flag.String("filter-sizes", "3,4", "comma-separated conv filter widths")
	numFilters := flag.Int("num-filters", def.NumFilters, "kernels per filter width")
	hiddenDims := flag.Int("hidden-dims", def.HiddenDims, "hidden dense width")
	epochs := flag.Int("epochs", def.NumEpochs, "epoch budget (always runs to completion)")
	batchSize := flag.Int("batch-size", def.BatchSize, "mini-batch size")
	valSplit := flag.Float64("val-split", def.ValSplit, "validation fraction per epoch")
	lr := flag.Float64("lr", def.LearningRate, "RMSProp learning rate")
	minWordCount := flag.Int("min-word-count", def.MinWordCount, "word2vec minimum word count")
	context := flag.Int("context", def.Context, "word2vec context window size")
	modelDir := flag.String("model-dir", def.ModelDir, "directory for word-vector models")
	seed := flag.Int64("seed", 2, "RNG seed")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	v, err := params.ParseVariant(*variant)
	if err != nil {
		log.Fatal(err)
	}
	sizes, err := parseFilterSizes(*filterSizes)
	if err != nil {
		log.Fatal(err)
	}

	cfg := def
	cfg.Variant = v
	cfg.EmbeddingDim = *embeddingDim
	cfg.FilterSizes = sizes
	cfg.NumFilters = *numFilters
	cfg.HiddenDims = *hiddenDims
	cfg.NumEpochs = *epochs
	cfg.BatchSize = *batchSize
	cfg.ValSplit = *valSplit
	cfg.LearningRate = *lr
	cfg.MinWordCount = *minWordCount
	cfg.Context = *context
	cfg.ModelDir = *modelDir

	rand.Seed(*seed)
	log.Infof("Model variation is %s", cfg.Variant)

	switch *mode {
	case "train":
		err = RunTraining(log, cfg, *posPath, *negPath)
	case "eval":
		err = RunEvaluation(log, cfg, *testPos, *testNeg)
	default:
		err = fmt.Errorf("unknown mode %q (want train or eval)", *mode)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func parseFilterSizes(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("bad filter size %q", part)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no filter sizes given")
	}
	return out, nil
}
