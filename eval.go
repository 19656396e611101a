package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/dressag1/nlp-cnn/IO"
	"github.com/dressag1/nlp-cnn/cnn"
	"github.com/dressag1/nlp-cnn/params"
	"github.com/dressag1/nlp-cnn/utils"
)

// RunEvaluation reloads a persisted architecture+weights pair, loads the
// test set with its own loading and padding logic, predicts classes, and
// reports the confusion matrix (raw and row-normalized). Tokens unseen
// during training fall back to the pad vector (CNN-static) or the pad id
// (embedding variants); an unknown token is never an error here.
func RunEvaluation(log *logrus.Logger, cfg params.Config, testPos, testNeg string) error {
	archPath := cnn.ArchFileName(cfg.Variant, cfg.NumEpochs)
	weightsPath := cnn.WeightsFileName(cfg.Variant, cfg.NumEpochs)
	log.WithFields(logrus.Fields{"arch": archPath, "weights": weightsPath}).Info("Loading CNN")
	model, err := cnn.LoadModel(archPath, weightsPath)
	if err != nil {
		return err
	}
	model.Training = false
	if model.Variant != cfg.Variant {
		return fmt.Errorf("loaded model is %s, requested %s", model.Variant, cfg.Variant)
	}

	log.Info("Loading test data...")
	sentences, labels, err := IO.LoadSentencesAndLabels(testPos, testNeg)
	if err != nil {
		return err
	}
	padded := IO.PadSentences(sentences, model.SeqLen)

	var wv *IO.WordVectors
	if cfg.Variant == params.CNNStatic {
		w2vCfg := IO.DefaultW2VConfig(cfg)
		name := IO.WordVectorModelName(w2vCfg, cfg.Variant)
		log.Infof("Loading word2vec model: %s", name)
		wv, err = IO.LoadWordVectors(cfg.ModelDir, name)
		if err != nil {
			return err
		}
		if wv.VectorSize != model.EmbeddingDim {
			return fmt.Errorf("word-vector model width %d does not match model embedding dim %d",
				wv.VectorSize, model.EmbeddingDim)
		}
	}

	trueLabels := make([]int, len(padded))
	predicted := make([]int, len(padded))
	for i, sent := range padded {
		var p float64
		if wv != nil {
			p = model.ForwardEmbedded(embedTokens(wv, sent))
		} else {
			ids := make([]int, len(sent))
			for j, tok := range sent {
				ids[j] = IO.VocabLookup(model.Vocab, tok)
			}
			p = model.ForwardIDs(ids)
		}
		predicted[i] = cnn.Classify(p)
		trueLabels[i] = IO.ClassOf(labels[i])
	}

	cm := utils.ConfusionMatrix(trueLabels, predicted, 2)
	correct := cm[0][0] + cm[1][1]
	log.WithFields(logrus.Fields{
		"examples": len(padded),
		"accuracy": fmt.Sprintf("%.4f", float64(correct)/float64(len(padded))),
	}).Info("Evaluation done")
	fmt.Print(utils.FormatConfusion(cm))
	return nil
}

// embedTokens builds the CNN-static input from the persisted word-vector
// model; unknown tokens resolve to the pad vector.
func embedTokens(wv *IO.WordVectors, tokens []string) *mat.Dense {
	out := mat.NewDense(wv.VectorSize, len(tokens), nil)
	for t, tok := range tokens {
		vec := wv.Lookup(tok)
		for i := 0; i < wv.VectorSize; i++ {
			out.Set(i, t, vec[i])
		}
	}
	return out
}
