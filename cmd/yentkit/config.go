package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"unicode"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		name := rt.Name()
		if name != "" && unicode.IsUpper(rune(name[0])) {
			name = rt.String()
		}
		return fmt.Errorf("field '%s' is not defined in %s", field, name)
	},
}

type tokenizerSection struct {
	Kind            string `yaml:"kind"` // wordpiece, clip or bpe
	Vocab           string `yaml:"vocab"`
	Merges          string `yaml:"merges"`
	MaxLength       int    `yaml:"max_length"`
	ByteLevel       bool   `yaml:"byte_level"`
	UnknownFallback bool   `yaml:"unknown_fallback"`
	CacheSize       int    `yaml:"cache_size"`
}

// wordPieceMaxLength is the BERT position limit, used when no length is set.
const wordPieceMaxLength = 512

// encodeLength is the length passed to Encode. WordPiece has no length of
// its own, so 0 becomes wordPieceMaxLength; BPE kinds keep 0 for their default.
func (t tokenizerSection) encodeLength() int {
	if t.MaxLength == 0 && t.Kind == "wordpiece" {
		return wordPieceMaxLength
	}
	return t.MaxLength
}

type modelSection struct {
	ONNX    string `yaml:"onnx"`
	Library string `yaml:"library"`
	Config  string `yaml:"config"`
	Output  string `yaml:"output"` // logits output; empty means the first
	Top     int    `yaml:"top"`
	Threads int    `yaml:"threads"`
	CUDA    bool   `yaml:"cuda"`
}

type detectionSection struct {
	IoU    float64 `yaml:"iou"`
	Center bool    `yaml:"center"`
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	Boxes  string  `yaml:"boxes"`  // output holding [N,4] boxes
	Scores string  `yaml:"scores"` // output holding [N] scores
}

type yentkitConfig struct {
	Tokenizer tokenizerSection `yaml:"tokenizer"`
	Model     modelSection     `yaml:"model"`
	Detection detectionSection `yaml:"detection"`
}

var defaultConfig = yentkitConfig{
	Tokenizer: tokenizerSection{Kind: "wordpiece", CacheSize: 4096},
	Model:     modelSection{Top: 5},
	Detection: detectionSection{IoU: 0.5, Width: 640, Height: 640, Boxes: "boxes", Scores: "scores"},
}

// loadConfig decodes a TOML or YAML file over cfg, picked by extension.
func loadConfig(file string, cfg *yentkitConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bufio.NewReader(f))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return errors.Wrapf(err, "%s", file)
		}
		return nil
	default:
		err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
		// Add file name to errors that have a line number.
		if _, ok := err.(*toml.LineError); ok {
			err = errors.New(file + ", " + err.Error())
		}
		return err
	}
}

// makeConfig loads defaults, then the --config file, then command flags.
func makeConfig(ctx *cli.Context) (yentkitConfig, error) {
	cfg := defaultConfig
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	applyFlags(ctx, &cfg)
	return cfg, nil
}

func applyFlags(ctx *cli.Context, cfg *yentkitConfig) {
	t := &cfg.Tokenizer
	setString(ctx, kindFlag.Name, &t.Kind)
	setString(ctx, vocabFlag.Name, &t.Vocab)
	setString(ctx, mergesFlag.Name, &t.Merges)
	setInt(ctx, maxLengthFlag.Name, &t.MaxLength)
	setBool(ctx, byteLevelFlag.Name, &t.ByteLevel)
	setBool(ctx, unknownFallbackFlag.Name, &t.UnknownFallback)

	m := &cfg.Model
	setString(ctx, onnxFlag.Name, &m.ONNX)
	setString(ctx, libraryFlag.Name, &m.Library)
	setString(ctx, modelConfigFlag.Name, &m.Config)
	setString(ctx, outputFlag.Name, &m.Output)
	setInt(ctx, topFlag.Name, &m.Top)
	setInt(ctx, threadsFlag.Name, &m.Threads)
	setBool(ctx, cudaFlag.Name, &m.CUDA)

	d := &cfg.Detection
	if ctx.IsSet(iouFlag.Name) {
		d.IoU = ctx.Float64(iouFlag.Name)
	}
	setBool(ctx, centerFlag.Name, &d.Center)
	setInt(ctx, widthFlag.Name, &d.Width)
	setInt(ctx, heightFlag.Name, &d.Height)
	setString(ctx, boxesOutputFlag.Name, &d.Boxes)
	setString(ctx, scoresOutputFlag.Name, &d.Scores)
}

func setString(ctx *cli.Context, name string, dst *string) {
	if ctx.IsSet(name) {
		*dst = ctx.String(name)
	}
}

func setInt(ctx *cli.Context, name string, dst *int) {
	if ctx.IsSet(name) {
		*dst = ctx.Int(name)
	}
}

func setBool(ctx *cli.Context, name string, dst *bool) {
	if ctx.IsSet(name) {
		*dst = ctx.Bool(name)
	}
}
