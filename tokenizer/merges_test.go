package tokenizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMergeTable(t *testing.T) {
	src := "#version: 0.2\nh e\nhe l\n\nhel   l\nh e\n"
	mt, err := ReadMergeTable(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 3, mt.Len())

	r, ok := mt.Rank("h", "e")
	require.True(t, ok)
	assert.Equal(t, 0, r)
	r, ok = mt.Rank("hel", "l")
	require.True(t, ok)
	assert.Equal(t, 2, r)
	_, ok = mt.Rank("e", "h")
	assert.False(t, ok)

	p, ok := mt.Pair(1)
	require.True(t, ok)
	assert.Equal(t, MergePair{A: "he", B: "l"}, p)
	_, ok = mt.Pair(3)
	assert.False(t, ok)
}

func TestReadMergeTableHashSymbols(t *testing.T) {
	mt, err := ReadMergeTable(strings.NewReader("\n#version: 0.2\n# #\n## #\n#version x\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, mt.Len())

	r, ok := mt.Rank("#", "#")
	require.True(t, ok)
	assert.Equal(t, 0, r)
	r, ok = mt.Rank("##", "#")
	require.True(t, ok)
	assert.Equal(t, 1, r)
	// Only the leading header is a comment.
	r, ok = mt.Rank("#version", "x")
	require.True(t, ok)
	assert.Equal(t, 2, r)

	mt, err = ReadMergeTable(strings.NewReader("# #\n"))
	require.NoError(t, err)
	_, ok = mt.Rank("#", "#")
	assert.True(t, ok)
}

func TestReadMergeTableMalformed(t *testing.T) {
	for _, src := range []string{"h e\nh e l\n", "h e\nsolo\n"} {
		mt, err := ReadMergeTable(strings.NewReader(src))
		require.Error(t, err, src)
		assert.Nil(t, mt)
		assert.Contains(t, err.Error(), "line 2")
	}
}

func TestLoadMergeTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merges.txt")
	require.NoError(t, os.WriteFile(path, []byte("a b\n"), 0o644))
	mt, err := LoadMergeTable(path)
	require.NoError(t, err)
	assert.Equal(t, 1, mt.Len())

	_, err = LoadMergeTable(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestSpecialTokens(t *testing.T) {
	st, err := NewSpecialTokens(map[Role]int{
		RoleClassification: 101,
		RoleBeginOfSeq:     101,
		RoleSeparator:      102,
		RoleUnknown:        100,
	})
	require.NoError(t, err)
	assert.True(t, st.IsSpecial(101))
	assert.False(t, st.IsSpecial(7))
	assert.Equal(t, []int{100, 101, 102}, st.IDs())
	assert.NoError(t, st.Require(RoleClassification, RoleSeparator))

	err = st.Require(RoleEndOfSeq)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSpecial)
	assert.Contains(t, err.Error(), string(RoleEndOfSeq))

	_, err = NewSpecialTokens(map[Role]int{RoleUnknown: 1, RolePad: 1})
	require.Error(t, err)

	_, err = NewSpecialTokens(map[Role]int{RoleUnknown: -3})
	require.Error(t, err)

	var none *SpecialTokens
	assert.False(t, none.IsSpecial(0))
	assert.Error(t, none.Require(RoleUnknown))
	assert.Nil(t, none.IDs())
}

func TestResolveSpecialTokens(t *testing.T) {
	vocab, err := NewVocabulary(map[string]int{"<|startoftext|>": 49406, "<|endoftext|>": 49407})
	require.NoError(t, err)

	st, err := ResolveSpecialTokens(vocab, CLIPSpecialNames)
	require.NoError(t, err)
	id, ok := st.ID(RoleEndOfSeq)
	require.True(t, ok)
	assert.Equal(t, 49407, id)

	_, err = ResolveSpecialTokens(vocab, BERTSpecialNames)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSpecial)
}
