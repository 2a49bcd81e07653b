package tokenizer

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBOS = 100
	testEOS = 101
	testUNK = 102
)

func testTables(t *testing.T, vocab map[string]int, merges string) (*Vocabulary, *MergeTable) {
	t.Helper()
	v, err := NewVocabulary(vocab)
	require.NoError(t, err)
	mt, err := ReadMergeTable(strings.NewReader(merges))
	require.NoError(t, err)
	return v, mt
}

func testSpecials(t *testing.T) *SpecialTokens {
	t.Helper()
	st, err := NewSpecialTokens(map[Role]int{
		RoleBeginOfSeq: testBOS, RoleEndOfSeq: testEOS, RoleUnknown: testUNK,
	})
	require.NoError(t, err)
	return st
}

var helloWorldVocab = map[string]int{
	"hell": 10, "o</w>": 3, "wor": 7, "ld</w>": 8,
}

const helloWorldMerges = "#version: 0.2\nh e\nhe l\nhel l\nw o\nwo r\nl d</w>\n"

func newHelloBPE(t *testing.T, opts ...BPEOption) *DecodingBPE {
	t.Helper()
	v, mt := testTables(t, helloWorldVocab, helloWorldMerges)
	tok, err := NewDecodingBPE(v, mt, testSpecials(t), append([]BPEOption{WithBOS(), WithEOS()}, opts...)...)
	require.NoError(t, err)
	return tok
}

func TestBPEEncodeHello(t *testing.T) {
	tok := newHelloBPE(t)
	enc, err := tok.Encode("hello", 10)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 10, 3, 101, 0, 0, 0, 0, 0, 0}, enc.InputIDs())
	assert.Equal(t, []int{1, 1, 1, 1, 0, 0, 0, 0, 0, 0}, enc.AttentionMask())
	assert.Equal(t, make([]int, 10), enc.TokenTypeIDs())
}

func TestBPENormalizesCaseAndWhitespace(t *testing.T) {
	tok := newHelloBPE(t)
	a, err := tok.Encode("  HELLO \t\n World ", 8)
	require.NoError(t, err)
	b, err := tok.Encode("hello world", 8)
	require.NoError(t, err)
	assert.Equal(t, b.InputIDs(), a.InputIDs())
	assert.Equal(t, []int{100, 10, 3, 7, 8, 101, 0, 0}, a.InputIDs())
}

func TestBPEDefaultMaxLength(t *testing.T) {
	tok := newHelloBPE(t)
	enc, err := tok.Encode("hello", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxLength, enc.Len())
	assert.Equal(t, 4, enc.RealLength())

	short := newHelloBPE(t, WithDefaultMaxLength(16))
	enc, err = short.Encode("hello", -1)
	require.NoError(t, err)
	assert.Equal(t, 16, enc.Len())
}

func TestBPEUnmappedSymbols(t *testing.T) {
	tok := newHelloBPE(t)
	enc, err := tok.Encode("hellx", 6)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 10, 101, 0, 0, 0}, enc.InputIDs())

	fallback := newHelloBPE(t, WithUnknownFallback())
	enc, err = fallback.Encode("hellx", 6)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 10, testUNK, 101, 0, 0}, enc.InputIDs())
}

func TestBPETruncationKeepsEOS(t *testing.T) {
	tok := newHelloBPE(t)
	enc, err := tok.Encode("hello hello hello", 5)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 10, 3, 10, 101}, enc.InputIDs())

	enc, err = tok.Encode("hello", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 101}, enc.InputIDs())

	_, err = tok.Encode("hello", 1)
	require.Error(t, err)
}

func TestBPEWithoutFraming(t *testing.T) {
	v, mt := testTables(t, helloWorldVocab, helloWorldMerges)
	tok, err := NewBPE(v, mt, nil)
	require.NoError(t, err)
	enc, err := tok.Encode("hello", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 3, 0}, enc.InputIDs())

	enc, err = tok.Encode("", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, enc.InputIDs())
	assert.Equal(t, 0, enc.RealLength())
}

func TestBPEMissingSpecials(t *testing.T) {
	v, mt := testTables(t, helloWorldVocab, helloWorldMerges)
	for _, opt := range []BPEOption{WithBOS(), WithEOS(), WithUnknownFallback()} {
		_, err := NewBPE(v, mt, nil, opt)
		assert.ErrorIs(t, err, ErrMissingSpecial)
	}
	_, err := NewBPE(v, mt, nil, WithCacheSize(-1))
	assert.Error(t, err)
	_, err = NewBPE(nil, mt, nil)
	assert.Error(t, err)
}

func TestBPEMergePriority(t *testing.T) {
	v, mt := testTables(t, map[string]int{}, "e l\nh e\n")
	tok, err := NewBPE(v, mt, nil)
	require.NoError(t, err)
	// (e,l) outranks (h,e) even though (h,e) comes first in the word.
	assert.Equal(t, []string{"h", "el", "l</w>"}, tok.Tokens("hell"))

	v, mt = testTables(t, map[string]int{}, "h e\ne l\n")
	tok, err = NewBPE(v, mt, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"he", "l", "l</w>"}, tok.Tokens("hell"))
}

func TestBPEMergeTieTakesLeftmost(t *testing.T) {
	v, mt := testTables(t, map[string]int{}, "a a\n")
	tok, err := NewBPE(v, mt, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "a", "a</w>"}, tok.Tokens("aaaa"))
}

func TestBPEMergesHashSymbols(t *testing.T) {
	v, mt := testTables(t, map[string]int{"###</w>": 5}, "#version: 0.2\n# #\n## #</w>\n")
	tok, err := NewBPE(v, mt, testSpecials(t), WithBOS(), WithEOS())
	require.NoError(t, err)
	assert.Equal(t, []string{"###</w>"}, tok.Tokens("###"))

	enc, err := tok.Encode("###", 4)
	require.NoError(t, err)
	assert.Equal(t, []int{testBOS, 5, testEOS, 0}, enc.InputIDs())
}

func TestBPECacheDoesNotChangeOutput(t *testing.T) {
	cached := newHelloBPE(t)
	uncached := newHelloBPE(t, WithCacheSize(0))
	for i := 0; i < 3; i++ {
		a, err := cached.Encode("hello world hello", 12)
		require.NoError(t, err)
		b, err := uncached.Encode("hello world hello", 12)
		require.NoError(t, err)
		assert.Equal(t, b.InputIDs(), a.InputIDs())
	}
	assert.Nil(t, uncached.cache)
	assert.Equal(t, 2, cached.cache.Len())
}

func TestBPEConcurrentEncode(t *testing.T) {
	tok := newHelloBPE(t, WithCacheSize(1))
	var wg sync.WaitGroup
	results := make([][]int, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := "hello world"
			if i%2 == 1 {
				text = "world hello"
			}
			enc, err := tok.Encode(text, 8)
			if err == nil {
				results[i] = enc.InputIDs()
			}
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		if i%2 == 0 {
			assert.Equal(t, []int{100, 10, 3, 7, 8, 101, 0, 0}, got)
		} else {
			assert.Equal(t, []int{100, 7, 8, 10, 3, 101, 0, 0}, got)
		}
	}
}

func TestDecode(t *testing.T) {
	tok := newHelloBPE(t)
	assert.Equal(t, "hello", tok.Decode([]int{100, 10, 3, 101, 0, 0}))
	assert.Equal(t, "hello world", tok.Decode([]int{10, 3, 7, 8}))
	assert.Equal(t, "", tok.Decode(nil))
	assert.Equal(t, "hellworld", tok.Decode([]int{10, 999, 7, 8}))

	assert.Equal(t, "o ", tok.DecodeID(3))
	assert.Equal(t, "hell", tok.DecodeID(10))
	assert.Equal(t, "", tok.DecodeID(testBOS))
	assert.Equal(t, "", tok.DecodeID(testEOS))
	assert.Equal(t, "", tok.DecodeID(12345))
}

func TestDecodeSkipsRegisteredUnknown(t *testing.T) {
	vocab := map[string]int{"hell": 10, "o</w>": 3, "<unk>": testUNK}
	v, mt := testTables(t, vocab, helloWorldMerges)
	tok, err := NewDecodingBPE(v, mt, testSpecials(t), WithUnknownFallback())
	require.NoError(t, err)

	enc, err := tok.Encode("hello xyz", 4)
	require.NoError(t, err)
	assert.Contains(t, enc.InputIDs(), testUNK)
	assert.Equal(t, "", tok.DecodeID(testUNK))
	assert.Equal(t, "hello", tok.Decode([]int{10, testUNK, 3}))

	// Without the role the same id is ordinary vocabulary.
	plain, err := NewDecodingBPE(v, mt, nil)
	require.NoError(t, err)
	assert.Equal(t, "<unk>", plain.DecodeID(testUNK))
}

func TestDecodeRoundTrip(t *testing.T) {
	tok := newHelloBPE(t)
	for _, text := range []string{"hello", "Hello   World", "world hello world", ""} {
		enc, err := tok.Encode(text, 32)
		require.NoError(t, err)
		mask := enc.AttentionMask()
		var content []int
		for i, id := range enc.InputIDs() {
			if mask[i] == 1 && !tok.specials.IsSpecial(id) {
				content = append(content, id)
			}
		}
		assert.Equal(t, Normalize(text), tok.Decode(content), text)
	}
}

func TestByteLevelRoundTrip(t *testing.T) {
	// é is C3 A9; both bytes map to themselves in the GPT-2 table.
	v, mt := testTables(t, map[string]int{"hi": 5, "Ã©": 6, "h": 7}, "h i\nÃ ©\n")
	tok, err := NewDecodingBPE(v, mt, nil, WithByteLevel(), WithEndOfWordMarker(""))
	require.NoError(t, err)

	enc, err := tok.Encode("hi é", 4)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6, 0, 0}, enc.InputIDs())
	assert.Equal(t, "é", tok.DecodeID(6))
	assert.Equal(t, "hié", tok.Decode([]int{5, 6}))
}

func TestByteTableIsBijective(t *testing.T) {
	b2u, u2b := buildByteTable()
	require.Len(t, u2b, 256)
	for b := 0; b < 256; b++ {
		assert.Equal(t, byte(b), u2b[b2u[b]])
	}
	assert.Equal(t, 'A', b2u['A'])
	assert.Equal(t, rune(0x120), b2u[' '])
}

func TestLoadCLIP(t *testing.T) {
	dir := t.TempDir()
	vocab := `{"<|startoftext|>": 49406, "<|endoftext|>": 49407, "hell": 10, "o</w>": 3, "!</w>": 11}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.json"), []byte(vocab), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "merges.txt"), []byte("#version: 0.2\nh e\nhe l\nhel l\n"), 0o644))

	tok, err := LoadCLIP(dir)
	require.NoError(t, err)
	enc, err := tok.Encode("Hello!", 0)
	require.NoError(t, err)
	assert.Equal(t, 77, enc.Len())
	assert.Equal(t, []int{49406, 10, 3, 11, 49407}, enc.InputIDs()[:5])
	assert.Equal(t, "hello !", tok.Decode(enc.InputIDs()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.json"), []byte(`{"hell": 10}`), 0o644))
	_, err = LoadCLIP(dir)
	assert.ErrorIs(t, err, ErrMissingSpecial)
}

func TestLoadBPE(t *testing.T) {
	dir := t.TempDir()
	vocabPath := filepath.Join(dir, "vocab.json")
	mergesPath := filepath.Join(dir, "merges.txt")
	require.NoError(t, os.WriteFile(vocabPath, []byte(`{"hell": 10, "o</w>": 3, "<unk>": 1}`), 0o644))
	require.NoError(t, os.WriteFile(mergesPath, []byte("h e\nhe l\nhel l\n"), 0o644))

	names := map[Role]string{RoleUnknown: "<unk>", RoleBeginOfSeq: "<s>"}
	tok, err := LoadBPE(vocabPath, mergesPath, names, WithUnknownFallback())
	require.NoError(t, err)
	enc, err := tok.Encode("hello hex", 6)
	require.NoError(t, err)
	// "hex" merges to "he" + "x</w>", neither of which is in the vocabulary.
	assert.Equal(t, []int{10, 3, 1, 1, 0, 0}, enc.InputIDs())

	_, err = LoadBPE(vocabPath, mergesPath, names, WithBOS())
	assert.ErrorIs(t, err, ErrMissingSpecial)

	_, err = LoadBPE(vocabPath, filepath.Join(dir, "absent.txt"), names)
	assert.Error(t, err)
}
