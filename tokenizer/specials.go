package tokenizer

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
)

// Role names a reserved token.
type Role string

const (
	RoleClassification Role = "[CLS]"
	RoleSeparator      Role = "[SEP]"
	RoleUnknown        Role = "[UNK]"
	RolePad            Role = "[PAD]"
	RoleMask           Role = "[MASK]"
	RoleBeginOfSeq     Role = "<bos>"
	RoleEndOfSeq       Role = "<eos>"
)

// ErrMissingSpecial is returned when a tokenizer needs a role that was not configured.
var ErrMissingSpecial = errors.New("missing special token")

// CLS/BOS and SEP/EOS are the same marker in several model families.
var roleAliases = map[Role]Role{
	RoleClassification: RoleBeginOfSeq,
	RoleBeginOfSeq:     RoleClassification,
	RoleSeparator:      RoleEndOfSeq,
	RoleEndOfSeq:       RoleSeparator,
}

// SpecialTokens binds roles to fixed ids. Immutable.
type SpecialTokens struct {
	ids map[Role]int
	set mapset.Set[int]
}

// NewSpecialTokens validates and freezes a role -> id binding.
func NewSpecialTokens(bindings map[Role]int) (*SpecialTokens, error) {
	st := &SpecialTokens{
		ids: make(map[Role]int, len(bindings)),
		set: mapset.NewThreadUnsafeSet[int](),
	}
	owner := make(map[int]Role, len(bindings))
	roles := make([]Role, 0, len(bindings))
	for r := range bindings {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	for _, r := range roles {
		id := bindings[r]
		if id < 0 {
			return nil, errors.Errorf("special tokens: %s has negative id %d", r, id)
		}
		if prev, ok := owner[id]; ok && roleAliases[prev] != r {
			return nil, errors.Errorf("special tokens: id %d bound to both %s and %s", id, prev, r)
		}
		owner[id] = r
		st.ids[r] = id
		st.set.Add(id)
	}
	return st, nil
}

// ResolveSpecialTokens looks each role's token string up in vocab.
func ResolveSpecialTokens(vocab *Vocabulary, names map[Role]string) (*SpecialTokens, error) {
	bindings := make(map[Role]int, len(names))
	for r, name := range names {
		id, ok := vocab.ID(name)
		if !ok {
			return nil, errors.Wrapf(ErrMissingSpecial, "%s token %q not in vocabulary", r, name)
		}
		bindings[r] = id
	}
	return NewSpecialTokens(bindings)
}

// ID returns the id bound to role.
func (st *SpecialTokens) ID(r Role) (int, bool) {
	if st == nil {
		return 0, false
	}
	id, ok := st.ids[r]
	return id, ok
}

// Require fails with the first missing role.
func (st *SpecialTokens) Require(roles ...Role) error {
	for _, r := range roles {
		if _, ok := st.ID(r); !ok {
			return errors.Wrapf(ErrMissingSpecial, "%s", r)
		}
	}
	return nil
}

// IsSpecial reports whether id is bound to any role.
func (st *SpecialTokens) IsSpecial(id int) bool {
	if st == nil {
		return false
	}
	return st.set.Contains(id)
}

// IDs returns every reserved id in ascending order.
func (st *SpecialTokens) IDs() []int {
	if st == nil {
		return nil
	}
	ids := st.set.ToSlice()
	sort.Ints(ids)
	return ids
}
