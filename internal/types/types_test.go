package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPairCanonicalizes(t *testing.T) {
	p1 := NewPair("b", "a")
	p2 := NewPair("a", "b")

	assert.Equal(t, p1, p2)
	assert.Equal(t, "a", p1.A)
	assert.Equal(t, "b", p1.B)
	assert.NoError(t, p1.Validate())
}

func TestPairValidate(t *testing.T) {
	tests := []struct {
		name    string
		pair    Pair
		wantErr bool
	}{
		{"canonical", Pair{A: "1", B: "2"}, false},
		{"self pair", Pair{A: "1", B: "1"}, true},
		{"reversed", Pair{A: "2", B: "1"}, true},
		{"empty endpoint", Pair{A: "", B: "2"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pair.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRelationKind(t *testing.T) {
	for _, k := range []RelationKind{KindNewMatch, KindNotDuplicate, KindNearDuplicate, KindSimilar, KindSameSet} {
		assert.True(t, k.IsValid(), "kind %s should be valid", k)
	}
	assert.False(t, RelationKind("duplicate").IsValid())
	assert.False(t, RelationKind("").IsValid())

	assert.False(t, KindNewMatch.Annotated())
	assert.True(t, KindNotDuplicate.Annotated())
	assert.True(t, KindSameSet.Annotated())
	assert.False(t, RelationKind("bogus").Annotated())
}

func TestRelationValidate(t *testing.T) {
	r := Relation{Pair: NewPair("1", "2"), Kind: KindNewMatch, Distance: 3}
	assert.NoError(t, r.Validate())

	r.Distance = -1
	assert.Error(t, r.Validate())

	r.Distance = 0
	r.Kind = "nope"
	assert.Error(t, r.Validate())
}

func TestScope(t *testing.T) {
	empty := Scope{}
	assert.True(t, empty.IsEmpty())
	assert.True(t, empty.Matches("anything"))

	s := Scope{Roots: []string{"/photos", "/backup"}}
	assert.True(t, s.Matches("/photos"))
	assert.False(t, s.Matches("/other"))
}
