package main

import cli "gopkg.in/urfave/cli.v1"

var (
	kindFlag = cli.StringFlag{
		Name:  "kind",
		Usage: "Tokenizer kind: wordpiece, clip or bpe",
	}
	vocabFlag = cli.StringFlag{
		Name:  "vocab",
		Usage: "Vocabulary file (vocab.txt or vocab.json)",
	}
	mergesFlag = cli.StringFlag{
		Name:  "merges",
		Usage: "BPE merges file",
	}
	maxLengthFlag = cli.IntFlag{
		Name:  "max-length",
		Usage: "Encoded length; 0 means 512 for wordpiece and 77 for clip/bpe",
	}
	byteLevelFlag = cli.BoolFlag{
		Name:  "byte-level",
		Usage: "Map UTF-8 bytes before BPE merging",
	}
	unknownFallbackFlag = cli.BoolFlag{
		Name:  "unk",
		Usage: "Map unknown BPE symbols to the unknown token instead of dropping them",
	}
	tokenizerFlags = []cli.Flag{kindFlag, vocabFlag, mergesFlag, maxLengthFlag, byteLevelFlag, unknownFallbackFlag}

	modelConfigFlag = cli.StringFlag{
		Name:  "model-config",
		Usage: "Model config.json with id2label",
	}
	topFlag = cli.IntFlag{
		Name:  "top",
		Usage: "Number of predictions to print",
	}
	onnxFlag = cli.StringFlag{
		Name:  "onnx",
		Usage: "ONNX model file",
	}
	libraryFlag = cli.StringFlag{
		Name:  "library",
		Usage: "libonnxruntime path (default: $ONNXRUNTIME_LIB or common locations)",
	}
	outputFlag = cli.StringFlag{
		Name:  "output",
		Usage: "Model output holding the logits (default: first output)",
	}
	threadsFlag = cli.IntFlag{
		Name:  "threads",
		Usage: "Intra-op threads, 0 for the runtime default",
	}
	cudaFlag = cli.BoolFlag{
		Name:  "cuda",
		Usage: "Use the CUDA execution provider when available",
	}
	engineFlags = []cli.Flag{onnxFlag, libraryFlag, threadsFlag, cudaFlag}

	iouFlag = cli.Float64Flag{
		Name:  "iou",
		Usage: "IoU above which a lower scoring box is suppressed",
	}
	centerFlag = cli.BoolFlag{
		Name:  "center",
		Usage: "Boxes are cx cy w h instead of x1 y1 x2 y2",
	}
	widthFlag = cli.IntFlag{
		Name:  "width",
		Usage: "Model input width",
	}
	heightFlag = cli.IntFlag{
		Name:  "height",
		Usage: "Model input height",
	}
	boxesOutputFlag = cli.StringFlag{
		Name:  "boxes-output",
		Usage: "Model output holding [N,4] boxes",
	}
	scoresOutputFlag = cli.StringFlag{
		Name:  "scores-output",
		Usage: "Model output holding [N] scores",
	}
	imageFlag = cli.StringFlag{
		Name:  "image",
		Usage: "Image to draw kept boxes on",
	}
	outFlag = cli.StringFlag{
		Name:  "out",
		Usage: "PNG file to write",
	}

	timeStepsFlag = cli.IntFlag{
		Name:  "time-steps",
		Usage: "Number of time steps (rows)",
	}
	vocabSizeFlag = cli.IntFlag{
		Name:  "vocab-size",
		Usage: "Number of classes per step (columns)",
	}
	blankFlag = cli.IntFlag{
		Name:  "blank",
		Usage: "Blank class index",
	}
)
