package tokenizer

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// MergePair is one BPE merge rule.
type MergePair struct {
	A, B string
}

// MergeTable is the ordered list of merge rules. The index of a rule is its rank;
// lower rank merges first. Immutable once built.
type MergeTable struct {
	pairs []MergePair
	rank  map[MergePair]int
}

// NewMergeTable freezes pairs in priority order. A repeated pair keeps its first rank.
func NewMergeTable(pairs []MergePair) (*MergeTable, error) {
	mt := &MergeTable{
		pairs: make([]MergePair, 0, len(pairs)),
		rank:  make(map[MergePair]int, len(pairs)),
	}
	for i, p := range pairs {
		if p.A == "" || p.B == "" {
			return nil, errors.Errorf("merges: rule %d has an empty symbol", i)
		}
		if _, dup := mt.rank[p]; dup {
			continue
		}
		mt.rank[p] = len(mt.pairs)
		mt.pairs = append(mt.pairs, p)
	}
	return mt, nil
}

// Rank returns the priority of merging a followed by b.
func (mt *MergeTable) Rank(a, b string) (int, bool) {
	r, ok := mt.rank[MergePair{A: a, B: b}]
	return r, ok
}

// Pair returns the rule at rank r.
func (mt *MergeTable) Pair(r int) (MergePair, bool) {
	if r < 0 || r >= len(mt.pairs) {
		return MergePair{}, false
	}
	return mt.pairs[r], true
}

// Len is the number of distinct rules.
func (mt *MergeTable) Len() int { return len(mt.pairs) }

// ReadMergeTable parses merges.txt: two whitespace-separated symbols per line,
// file order = priority. Blank lines are skipped, as is a "#version" header on
// the first non-blank line. Symbols may themselves start with "#" ("# #").
func ReadMergeTable(r io.Reader) (*MergeTable, error) {
	var pairs []MergePair
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	header := true
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if header {
			header = false
			if strings.HasPrefix(line, "#version") {
				continue
			}
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, errors.Errorf("parse merges: line %d: want 2 symbols, got %d (%q)", lineNo, len(parts), line)
		}
		pairs = append(pairs, MergePair{A: parts[0], B: parts[1]})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read merges")
	}
	return NewMergeTable(pairs)
}

// LoadMergeTable reads a merges file from disk.
func LoadMergeTable(path string) (*MergeTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "read merges")
	}
	defer f.Close()
	mt, err := ReadMergeTable(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return mt, nil
}
