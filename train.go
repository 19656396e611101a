package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/dressag1/nlp-cnn/IO"
	"github.com/dressag1/nlp-cnn/cnn"
	"github.com/dressag1/nlp-cnn/params"
	"github.com/dressag1/nlp-cnn/utils"
)

// example is one labeled sentence. Embedding variants carry token ids;
// CNN-static carries the pre-embedded matrix instead.
type example struct {
	ids   []int
	x     *mat.Dense
	label int
}

// RunTraining executes the full pipeline: load corpus, initialize
// embeddings per variant, assemble the model, fit for the fixed epoch
// budget with a held-out validation split, and persist architecture and
// weights separately. No early stopping and no mid-run checkpoints: a
// failed run is re-run from scratch.
func RunTraining(log *logrus.Logger, cfg params.Config, posPath, negPath string) error {
	log.Info("Loading data...")
	x, y, vocab, vocabInv, err := IO.LoadData(posPath, negPath)
	if err != nil {
		return err
	}
	seqLen := len(x[0])
	log.WithFields(logrus.Fields{
		"examples":        len(x),
		"sequence_length": seqLen,
		"vocabulary_size": len(vocab),
	}).Info("Corpus loaded")

	// Embedding initialization per variant.
	var embWeights *mat.Dense
	switch cfg.Variant {
	case params.CNNStatic, params.CNNNonStatic:
		w2vCfg := IO.DefaultW2VConfig(cfg)
		log.Infof("Training word2vec model: %s", IO.WordVectorModelName(w2vCfg, cfg.Variant))
		wv, err := IO.TrainOrLoadWordVectors(x, vocabInv, w2vCfg, cfg.ModelDir, cfg.Variant)
		if err != nil {
			return err
		}
		embWeights = wv.EmbeddingWeights(vocabInv)
		if err := IO.SaveWordVectors(wv, cfg.ModelDir, IO.WordVectorModelName(w2vCfg, cfg.Variant)); err != nil {
			return err
		}
	case params.CNNRand:
		// the classifier's own embedding layer trains from random init
	default:
		return fmt.Errorf("unknown model variation %v", cfg.Variant)
	}

	model, err := cnn.NewModel(cfg, seqLen, vocab, vocabInv, embWeights)
	if err != nil {
		return err
	}

	examples := buildExamples(cfg, x, y, embWeights)
	shuffleExamples(examples)

	nVal := int(float64(len(examples)) * cfg.ValSplit)
	train := examples[:len(examples)-nVal]
	val := examples[len(examples)-nVal:]
	if len(train) == 0 {
		return fmt.Errorf("validation split %v leaves no training examples", cfg.ValSplit)
	}

	for epoch := 1; epoch <= cfg.NumEpochs; epoch++ {
		start := time.Now()
		trainLoss, trainAcc := fitEpoch(model, train, cfg)
		valLoss, valAcc := evaluateSplit(model, val)
		log.WithFields(logrus.Fields{
			"epoch":    epoch,
			"loss":     fmt.Sprintf("%.4f", trainLoss),
			"acc":      fmt.Sprintf("%.4f", trainAcc),
			"val_loss": fmt.Sprintf("%.4f", valLoss),
			"val_acc":  fmt.Sprintf("%.4f", valAcc),
			"elapsed":  time.Since(start).Round(time.Millisecond),
		}).Info("Epoch done")
	}

	archPath := cnn.ArchFileName(cfg.Variant, cfg.NumEpochs)
	weightsPath := cnn.WeightsFileName(cfg.Variant, cfg.NumEpochs)
	if err := cnn.SaveArchitecture(model.Architecture(), archPath); err != nil {
		return err
	}
	if err := cnn.SaveWeights(model, weightsPath); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"arch": archPath, "weights": weightsPath}).Info("Saved model")
	return nil
}

// buildExamples collapses one-hot labels to class indices and, for
// CNN-static, rewrites token ids into fixed embedding vectors once.
func buildExamples(cfg params.Config, x [][]int, y [][]float64, embWeights *mat.Dense) []example {
	out := make([]example, len(x))
	for i := range x {
		ex := example{label: IO.ClassOf(y[i])}
		if cfg.Variant == params.CNNStatic {
			ex.x = IO.EmbedSequence(embWeights, x[i])
		} else {
			ex.ids = x[i]
		}
		out[i] = ex
	}
	return out
}

// shuffleExamples applies one random permutation, keeping each sentence
// paired with its label.
func shuffleExamples(examples []example) {
	rand.Shuffle(len(examples), func(i, j int) {
		examples[i], examples[j] = examples[j], examples[i]
	})
}

func forwardExample(m *cnn.Model, ex example) float64 {
	if ex.x != nil {
		return m.ForwardEmbedded(ex.x)
	}
	return m.ForwardIDs(ex.ids)
}

// fitEpoch runs one pass over the training split with mini-batch
// gradient accumulation and RMSProp updates.
func fitEpoch(m *cnn.Model, train []example, cfg params.Config) (avgLoss, acc float64) {
	m.Training = true
	var totalLoss float64
	var correct int
	for off := 0; off < len(train); off += cfg.BatchSize {
		end := off + cfg.BatchSize
		if end > len(train) {
			end = len(train)
		}
		batch := train[off:end]
		scale := 1.0 / float64(len(batch))
		for _, ex := range batch {
			p := forwardExample(m, ex)
			loss, dLogit := utils.BinaryCrossEntropy(p, float64(ex.label))
			totalLoss += loss
			if cnn.Classify(p) == ex.label {
				correct++
			}
			m.Backward(dLogit * scale)
		}
		m.Step(cfg.LearningRate, cfg.RMSPropRho, cfg.RMSPropEps)
	}
	return totalLoss / float64(len(train)), float64(correct) / float64(len(train))
}

// evaluateSplit measures loss and accuracy with dropout disabled.
func evaluateSplit(m *cnn.Model, split []example) (avgLoss, acc float64) {
	if len(split) == 0 {
		return 0, 0
	}
	wasTraining := m.Training
	m.Training = false
	defer func() { m.Training = wasTraining }()
	var totalLoss float64
	var correct int
	for _, ex := range split {
		p := forwardExample(m, ex)
		loss, _ := utils.BinaryCrossEntropy(p, float64(ex.label))
		totalLoss += loss
		if cnn.Classify(p) == ex.label {
			correct++
		}
	}
	return totalLoss / float64(len(split)), float64(correct) / float64(len(split))
}
