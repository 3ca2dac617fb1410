package datalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryString(t *testing.T) {
	q := &Query{Productions: []Production{
		{Head: "n", Refs: []Ref{{Name: "e"}}},
		{Head: "n", Refs: []Ref{{Name: "n"}, {Name: "e", Dir: Reverse}}},
		{Head: "m"},
	}}
	assert.Equal(t, "n e\nn n ~e\nm", q.String())
}

func TestQueryNames(t *testing.T) {
	q := &Query{Productions: []Production{
		{Head: "sg", Refs: []Ref{{Name: "flat"}}},
		{Head: "sg", Refs: []Ref{{Name: "up"}, {Name: "sg"}, {Name: "up", Dir: Reverse}}},
	}}
	// Heads and references alike, deduplicated, sorted.
	assert.Equal(t, []string{"flat", "sg", "up"}, q.Names())
}

func TestQueryValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		q := &Query{Productions: []Production{
			{Head: "n", Refs: []Ref{{Name: "e"}}},
		}}
		assert.NoError(t, q.Validate())
	})

	t.Run("NoProductions", func(t *testing.T) {
		q := &Query{}
		assert.EqualError(t, q.Validate(), "query has no productions")
	})

	t.Run("BadHead", func(t *testing.T) {
		q := &Query{Productions: []Production{
			{Head: "~n", Refs: []Ref{{Name: "e"}}},
		}}
		err := q.Validate()
		assert.EqualError(t, err, `production 0: head: relation name "~n" starts with the reverse marker`)
	})

	t.Run("BadReference", func(t *testing.T) {
		q := &Query{Productions: []Production{
			{Head: "n", Refs: []Ref{{Name: "e"}, {Name: ""}}},
		}}
		err := q.Validate()
		assert.EqualError(t, err, "production 0: reference 1: empty relation name")
	})
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("edge_2"))
	assert.Error(t, ValidateName(""))
	assert.Error(t, ValidateName("~e"))
	assert.Error(t, ValidateName("a b"))
	assert.Error(t, ValidateName("a\tb"))
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "forward", Forward.String())
	assert.Equal(t, "reverse", Reverse.String())
	assert.Equal(t, "direction(7)", Direction(7).String())
}
