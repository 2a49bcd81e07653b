package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ariannamethod/yentkit/engine"
	"github.com/ariannamethod/yentkit/imageproc"
	"github.com/ariannamethod/yentkit/kernels"
	"github.com/ariannamethod/yentkit/modelconfig"
	"github.com/ariannamethod/yentkit/tokenizer"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
)

var (
	encodeCommand = cli.Command{
		Action:    encodeText,
		Name:      "encode",
		Usage:     "Encode text into input ids, attention mask and token types",
		ArgsUsage: "<text...>",
		Flags:     tokenizerFlags,
	}
	decodeCommand = cli.Command{
		Action:    decodeIDs,
		Name:      "decode",
		Usage:     "Decode BPE ids back to text",
		ArgsUsage: "<id...>",
		Flags:     tokenizerFlags,
	}
	classifyCommand = cli.Command{
		Action:      classifyScores,
		Name:        "classify",
		Usage:       "Turn logits into labelled predictions",
		ArgsUsage:   "[logit...]",
		Flags:       []cli.Flag{modelConfigFlag, topFlag},
		Description: "Logits are read from the arguments, or from stdin when none are given.",
	}
	nmsCommand = cli.Command{
		Action:      suppressBoxes,
		Name:        "nms",
		Usage:       "Non-maximum suppression over scored boxes",
		ArgsUsage:   "<boxes file>",
		Flags:       []cli.Flag{iouFlag, centerFlag, imageFlag, outFlag},
		Description: "Each line of the boxes file is 'x1 y1 x2 y2 score [label]'.",
	}
	ctcCommand = cli.Command{
		Action:    decodeSequence,
		Name:      "ctc",
		Usage:     "Greedy CTC decoding of a time x class score matrix",
		ArgsUsage: "[score...]",
		Flags:     []cli.Flag{timeStepsFlag, vocabSizeFlag, blankFlag, vocabFlag},
	}
	runCommand = cli.Command{
		Action:    runClassifier,
		Name:      "run",
		Usage:     "Classify text with an ONNX model",
		ArgsUsage: "<text...>",
		Flags:     append(append(append([]cli.Flag{}, tokenizerFlags...), engineFlags...), modelConfigFlag, topFlag, outputFlag),
	}
	detectCommand = cli.Command{
		Action:    runDetector,
		Name:      "detect",
		Usage:     "Detect objects in an image with an ONNX model",
		ArgsUsage: "<image>",
		Flags: append(append([]cli.Flag{}, engineFlags...), iouFlag, centerFlag,
			widthFlag, heightFlag, boxesOutputFlag, scoresOutputFlag, outFlag),
	}
)

func encodeText(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	enc, _, err := makeTokenizer(cfg.Tokenizer)
	if err != nil {
		return err
	}
	out, err := enc.Encode(strings.Join(ctx.Args(), " "), cfg.Tokenizer.encodeLength())
	if err != nil {
		return err
	}
	w := ctx.App.Writer
	fmt.Fprintln(w, "input_ids:     ", joinInts(out.InputIDs()))
	fmt.Fprintln(w, "attention_mask:", joinInts(out.AttentionMask()))
	fmt.Fprintln(w, "token_type_ids:", joinInts(out.TokenTypeIDs()))
	return nil
}

func decodeIDs(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	_, dec, err := makeTokenizer(cfg.Tokenizer)
	if err != nil {
		return err
	}
	if dec == nil {
		return errors.Errorf("%s tokenizer cannot decode", cfg.Tokenizer.Kind)
	}
	ids, err := parseInts(ctx.Args())
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, dec.Decode(ids))
	return nil
}

// makeTokenizer returns the encoder for cfg and, for BPE kinds, its decoder.
func makeTokenizer(cfg tokenizerSection) (tokenizer.Encoder, tokenizer.Decoder, error) {
	if cfg.Vocab == "" {
		return nil, nil, errors.New("--vocab is required")
	}
	switch cfg.Kind {
	case "wordpiece", "":
		wp, err := tokenizer.LoadBERT(cfg.Vocab)
		return wp, nil, err
	case "clip", "bpe":
	default:
		return nil, nil, errors.Errorf("unknown tokenizer kind %q", cfg.Kind)
	}
	if cfg.Merges == "" {
		return nil, nil, errors.Errorf("--merges is required for %s", cfg.Kind)
	}

	opts := []tokenizer.BPEOption{tokenizer.WithCacheSize(cfg.CacheSize)}
	names := map[tokenizer.Role]string{tokenizer.RoleUnknown: "<unk>"}
	if cfg.Kind == "clip" {
		names = tokenizer.CLIPSpecialNames
		opts = append(opts, tokenizer.WithBOS(), tokenizer.WithEOS(), tokenizer.WithSplitPunctuation())
	}
	if cfg.ByteLevel {
		opts = append(opts, tokenizer.WithByteLevel())
	}
	if cfg.UnknownFallback {
		opts = append(opts, tokenizer.WithUnknownFallback())
	}
	bpe, err := tokenizer.LoadBPE(cfg.Vocab, cfg.Merges, names, opts...)
	if err != nil {
		return nil, nil, err
	}
	return bpe, bpe, nil
}

func classifyScores(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Model.Config == "" {
		return errors.New("--model-config is required")
	}
	mc, err := modelconfig.Load(cfg.Model.Config)
	if err != nil {
		return err
	}
	logits, err := readFloats(ctx.Args(), os.Stdin)
	if err != nil {
		return err
	}
	return printPredictions(ctx.App.Writer, mc, logits, cfg.Model.Top)
}

func printPredictions(w io.Writer, mc *modelconfig.Config, logits []float32, top int) error {
	preds, err := mc.Classify(logits, top)
	if err != nil {
		return err
	}
	for _, p := range preds {
		fmt.Fprintf(w, "%s\t%.4f\n", p.Label, p.Score)
	}
	return nil
}

func suppressBoxes(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 1 {
		return errors.New("expected one boxes file")
	}
	dets, err := readBoxesFile(ctx.Args().First())
	if err != nil {
		return err
	}
	boxes := make([]kernels.Box, len(dets))
	scores := make([]float32, len(dets))
	for i, d := range dets {
		boxes[i], scores[i] = d.Box, d.Score
	}
	if cfg.Detection.Center {
		boxes = kernels.CenterToCornerBoxes(boxes)
	}
	keep, err := kernels.NonMaxSuppression(boxes, scores, float32(cfg.Detection.IoU))
	if err != nil {
		return err
	}
	kept := make([]imageproc.Detection, len(keep))
	for i, k := range keep {
		kept[i] = imageproc.Detection{Box: boxes[k], Label: dets[k].Label, Score: scores[k]}
		b := boxes[k]
		fmt.Fprintf(ctx.App.Writer, "%d\t%g %g %g %g\t%.4f\t%s\n", k, b[0], b[1], b[2], b[3], scores[k], dets[k].Label)
	}
	if img := ctx.String(imageFlag.Name); img != "" {
		return drawTo(img, ctx.String(outFlag.Name), kept)
	}
	return nil
}

func drawTo(imagePath, outPath string, dets []imageproc.Detection) error {
	if outPath == "" {
		return errors.New("--out is required with --image")
	}
	img, err := imageproc.Load(imagePath)
	if err != nil {
		return err
	}
	if err := imageproc.SavePNG(imageproc.DrawDetections(img, dets), outPath); err != nil {
		return err
	}
	log.Info("Wrote detections", "path", outPath, "boxes", len(dets))
	return nil
}

func decodeSequence(ctx *cli.Context) error {
	scores, err := readFloats(ctx.Args(), os.Stdin)
	if err != nil {
		return err
	}
	steps, classes := ctx.Int(timeStepsFlag.Name), ctx.Int(vocabSizeFlag.Name)
	if !ctx.IsSet(timeStepsFlag.Name) && classes > 0 {
		steps = len(scores) / classes
	}
	seq, err := kernels.GreedySequenceDecode(scores, steps, classes, ctx.Int(blankFlag.Name))
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, joinInts(seq))

	if path := ctx.String(vocabFlag.Name); path != "" {
		vocab, err := tokenizer.LoadVocabulary(path)
		if err != nil {
			return err
		}
		var sb strings.Builder
		for _, id := range seq {
			tok, err := vocab.Token(id)
			if err != nil {
				return err
			}
			sb.WriteString(tok)
		}
		fmt.Fprintln(ctx.App.Writer, sb.String())
	}
	return nil
}

func openSession(cfg modelSection) (*engine.Session, error) {
	if cfg.ONNX == "" {
		return nil, errors.New("--onnx is required")
	}
	if err := engine.Initialize(cfg.Library); err != nil {
		return nil, err
	}
	return engine.Open(cfg.ONNX, engine.Config{IntraOpThreads: cfg.Threads, CUDA: cfg.CUDA})
}

func runClassifier(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Model.Config == "" {
		return errors.New("--model-config is required")
	}
	mc, err := modelconfig.Load(cfg.Model.Config)
	if err != nil {
		return err
	}
	enc, _, err := makeTokenizer(cfg.Tokenizer)
	if err != nil {
		return err
	}
	input, err := enc.Encode(strings.Join(ctx.Args(), " "), cfg.Tokenizer.encodeLength())
	if err != nil {
		return err
	}

	sess, err := openSession(cfg.Model)
	if err != nil {
		return err
	}
	defer engine.Shutdown()
	defer sess.Close()

	outs, err := sess.Run(input)
	if err != nil {
		return err
	}
	logits, err := pickOutput(outs, cfg.Model.Output)
	if err != nil {
		return err
	}
	return printPredictions(ctx.App.Writer, mc, logits.Data, cfg.Model.Top)
}

func pickOutput(outs []engine.Output, name string) (engine.Output, error) {
	if name == "" {
		if len(outs) == 0 {
			return engine.Output{}, errors.New("model has no outputs")
		}
		return outs[0], nil
	}
	o, ok := engine.Find(outs, name)
	if !ok {
		return engine.Output{}, errors.Errorf("model has no output %q", name)
	}
	return o, nil
}

func runDetector(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 1 {
		return errors.New("expected one image")
	}
	d := cfg.Detection
	img, err := imageproc.Load(ctx.Args().First())
	if err != nil {
		return err
	}
	pixels, err := imageproc.ToTensor(img, d.Width, d.Height, imageproc.ImageNetMean, imageproc.ImageNetStd)
	if err != nil {
		return err
	}

	sess, err := openSession(cfg.Model)
	if err != nil {
		return err
	}
	defer engine.Shutdown()
	defer sess.Close()

	outs, err := sess.RunTensor(pixels, []int64{1, 3, int64(d.Height), int64(d.Width)})
	if err != nil {
		return err
	}
	boxOut, err := pickOutput(outs, d.Boxes)
	if err != nil {
		return err
	}
	scoreOut, err := pickOutput(outs, d.Scores)
	if err != nil {
		return err
	}
	boxes, err := kernels.BoxesFromFlat(boxOut.Data)
	if err != nil {
		return err
	}
	if d.Center {
		boxes = kernels.CenterToCornerBoxes(boxes)
	}
	keep, err := kernels.NonMaxSuppression(boxes, scoreOut.Data, float32(d.IoU))
	if err != nil {
		return err
	}

	// model coordinates back to image pixels
	b := img.Bounds()
	sx, sy := float32(b.Dx())/float32(d.Width), float32(b.Dy())/float32(d.Height)
	dets := make([]imageproc.Detection, len(keep))
	for i, k := range keep {
		bx := boxes[k]
		dets[i] = imageproc.Detection{
			Box:   kernels.Box{bx[0] * sx, bx[1] * sy, bx[2] * sx, bx[3] * sy},
			Label: "#" + strconv.Itoa(k),
			Score: scoreOut.Data[k],
		}
		fmt.Fprintf(ctx.App.Writer, "%s\t%.4f\t%v\n", dets[i].Label, dets[i].Score, dets[i].Box)
	}
	if out := ctx.String(outFlag.Name); out != "" {
		if err := imageproc.SavePNG(imageproc.DrawDetections(img, dets), out); err != nil {
			return err
		}
	}
	return nil
}

// boxLine is one parsed line of a boxes file.
type boxLine struct {
	Box   kernels.Box
	Score float32
	Label string
}

func readBoxesFile(path string) ([]boxLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "boxes file")
	}
	defer f.Close()

	var out []boxLine
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) < 5 {
			return nil, errors.Errorf("%s:%d: want x1 y1 x2 y2 score [label]", path, n)
		}
		vals, err := parseFloats(fields[:5])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, n)
		}
		line := boxLine{Box: kernels.Box{vals[0], vals[1], vals[2], vals[3]}, Score: vals[4]}
		if len(fields) > 5 {
			line.Label = strings.Join(fields[5:], " ")
		}
		out = append(out, line)
	}
	return out, errors.Wrap(sc.Err(), "boxes file")
}

// readFloats parses args, or r when there are none. Commas count as separators.
func readFloats(args []string, r io.Reader) ([]float32, error) {
	if len(args) == 0 {
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(err, "read scores")
		}
		args = []string{string(raw)}
	}
	return parseFloats(strings.Fields(strings.ReplaceAll(strings.Join(args, " "), ",", " ")))
}

func parseFloats(fields []string) ([]float32, error) {
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, errors.Errorf("bad number %q", f)
		}
		out[i] = float32(v)
	}
	return out, nil
}

func parseInts(args []string) ([]int, error) {
	fields := strings.Fields(strings.ReplaceAll(strings.Join(args, " "), ",", " "))
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Errorf("bad id %q", f)
		}
		out[i] = v
	}
	return out, nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}
