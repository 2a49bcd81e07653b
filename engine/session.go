package engine

import (
	"time"

	"github.com/ariannamethod/yentkit/tokenizer"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Standard transformer input names.
const (
	InputIDs      = "input_ids"
	AttentionMask = "attention_mask"
	TokenTypeIDs  = "token_type_ids"
)

// Config tunes session creation.
type Config struct {
	IntraOpThreads int  // 0 keeps the ORT default
	InterOpThreads int  // 0 keeps the ORT default
	CUDA           bool // try the CUDA provider, fall back to CPU
}

// Output is one model output converted to float32.
type Output struct {
	Name  string
	Data  []float32
	Shape []int64
}

// Session wraps a loaded model. Not safe for concurrent Run calls.
type Session struct {
	path       string
	session    *ort.DynamicAdvancedSession
	inputs     []string
	inputTypes []ort.TensorElementDataType
	outputs    []string
}

// Open inspects modelPath and creates a session over all of its outputs.
// Initialize must have been called.
func Open(modelPath string, cfg Config) (*Session, error) {
	start := time.Now()
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "inspect %s", modelPath)
	}
	inNames := make([]string, len(inputs))
	inTypes := make([]ort.TensorElementDataType, len(inputs))
	for i, in := range inputs {
		inNames[i] = in.Name
		inTypes[i] = in.DataType
		log.Debug("Model input", "name", in.Name, "type", in.DataType, "dims", in.Dimensions)
	}
	outNames := make([]string, len(outputs))
	for i, out := range outputs {
		outNames[i] = out.Name
		log.Debug("Model output", "name", out.Name, "type", out.DataType, "dims", out.Dimensions)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "session options")
	}
	defer opts.Destroy()
	if err := configure(ortOptions{opts}, cfg); err != nil {
		return nil, err
	}

	sess, err := ort.NewDynamicAdvancedSession(modelPath, inNames, outNames, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "session %s", modelPath)
	}
	log.Info("Loaded ONNX model", "path", modelPath, "inputs", inNames, "outputs", outNames,
		"elapsed", time.Since(start))
	return &Session{path: modelPath, session: sess, inputs: inNames, inputTypes: inTypes, outputs: outNames}, nil
}

// sessionOptions is the part of ort.SessionOptions that configure touches.
type sessionOptions interface {
	SetGraphOptimizationLevel(ort.GraphOptimizationLevel) error
	SetIntraOpNumThreads(int) error
	SetInterOpNumThreads(int) error
	EnableCUDA() error
}

type ortOptions struct {
	*ort.SessionOptions
}

func (o ortOptions) EnableCUDA() error {
	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cudaOpts.Destroy()
	return o.AppendExecutionProviderCUDA(cudaOpts)
}

func configure(opts sessionOptions, cfg Config) error {
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return errors.Wrap(err, "graph optimization")
	}
	if cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return errors.Wrap(err, "intra-op threads")
		}
	}
	if cfg.InterOpThreads > 0 {
		if err := opts.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
			return errors.Wrap(err, "inter-op threads")
		}
	}
	if cfg.CUDA {
		if err := opts.EnableCUDA(); err != nil {
			log.Warn("CUDA unavailable, using CPU", "err", err)
		} else {
			log.Info("Using CUDA execution provider")
		}
	}
	return nil
}

// feeds returns the [1, n] int64 rows for the requested inputs, in order.
func feeds(enc *tokenizer.EncodedInput, names []string) ([][]int64, error) {
	ids, mask, types := enc.Int64()
	out := make([][]int64, len(names))
	for i, n := range names {
		switch n {
		case InputIDs:
			out[i] = ids
		case AttentionMask:
			out[i] = mask
		case TokenTypeIDs:
			out[i] = types
		default:
			return nil, errors.Errorf("unsupported model input %q", n)
		}
	}
	return out, nil
}

// Inputs lists the feeds the model declares.
func (s *Session) Inputs() []string { return append([]string(nil), s.inputs...) }

// Outputs lists the model's output names in Run order.
func (s *Session) Outputs() []string { return append([]string(nil), s.outputs...) }

// Run feeds enc as a batch of one and returns every output. Only the
// standard inputs the model declares are fed.
func (s *Session) Run(enc *tokenizer.EncodedInput) ([]Output, error) {
	rows, err := feeds(enc, s.inputs)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", s.path)
	}
	shape := ort.NewShape(1, int64(enc.Len()))
	in := make([]ort.Value, 0, len(rows))
	defer func() { destroyAll(in) }()
	for i, row := range rows {
		t, err := ort.NewTensor(shape, row)
		if err != nil {
			return nil, errors.Wrapf(err, "%s tensor", s.inputs[i])
		}
		in = append(in, t)
	}
	return s.run(in)
}

// RunTensor feeds a float32 tensor to a model with exactly one input, such
// as an image model taking [1, 3, H, W] pixels. Half-precision inputs are
// converted to fp16 on the way in.
func (s *Session) RunTensor(data []float32, shape []int64) ([]Output, error) {
	if len(s.inputs) != 1 {
		return nil, errors.Errorf("%s: tensor run needs a single-input model, have %v", s.path, s.inputs)
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	if n != int64(len(data)) {
		return nil, errors.Errorf("%s: shape %v holds %d values, got %d", s.path, shape, n, len(data))
	}
	var dt ort.TensorElementDataType
	if len(s.inputTypes) == 1 {
		dt = s.inputTypes[0]
	}
	t, err := newFloatTensor(ort.NewShape(shape...), data, dt)
	if err != nil {
		return nil, errors.Wrapf(err, "%s tensor", s.inputs[0])
	}
	defer t.Destroy()
	return s.run([]ort.Value{t})
}

// newFloatTensor builds an input tensor of element type dt from float32 data.
func newFloatTensor(shape ort.Shape, data []float32, dt ort.TensorElementDataType) (ort.Value, error) {
	raw, err := packFloatInput(data, dt)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		return ort.NewCustomDataTensor(shape, raw, ort.TensorElementDataTypeFloat16)
	}
	return ort.NewTensor(shape, data)
}

// packFloatInput returns the fp16 bytes for a half-precision input, or nil
// when data can be fed as float32 unchanged.
func packFloatInput(data []float32, dt ort.TensorElementDataType) ([]byte, error) {
	switch dt {
	case ort.TensorElementDataTypeFloat, ort.TensorElementDataTypeUndefined:
		return nil, nil
	case ort.TensorElementDataTypeFloat16:
		return Float32ToFP16Bytes(data), nil
	}
	return nil, errors.Errorf("float input cannot feed element type %v", dt)
}

func (s *Session) run(in []ort.Value) ([]Output, error) {
	start := time.Now()
	// nil outputs are allocated by ORT
	outputs := make([]ort.Value, len(s.outputs))
	if err := s.session.Run(in, outputs); err != nil {
		return nil, errors.Wrapf(err, "run %s", s.path)
	}
	defer destroyAll(outputs)

	res := make([]Output, len(outputs))
	for i, o := range outputs {
		data, err := extractFloat32(o)
		if err != nil {
			return nil, errors.Wrapf(err, "output %s", s.outputs[i])
		}
		res[i] = Output{Name: s.outputs[i], Data: data, Shape: append([]int64(nil), o.GetShape()...)}
	}
	log.Debug("Session run", "model", s.path, "outputs", len(res), "elapsed", time.Since(start))
	return res, nil
}

// Find returns the output called name.
func Find(outputs []Output, name string) (Output, bool) {
	for _, o := range outputs {
		if o.Name == name {
			return o, true
		}
	}
	return Output{}, false
}

func destroyAll(vals []ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Destroy()
		}
	}
}

// Close releases the session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}
