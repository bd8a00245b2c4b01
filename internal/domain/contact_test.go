package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestRootID(t *testing.T) {
	assert.Equal(t, int64(3), Contact{ID: 3, Precedence: PrecedencePrimary}.RootID())

	linked := int64(3)
	assert.Equal(t, int64(3), Contact{ID: 8, Precedence: PrecedenceSecondary, LinkedID: &linked}.RootID())
}

func TestSamePairTreatsAbsentAsEqual(t *testing.T) {
	c := Contact{Email: strPtr("a@t.io")}

	assert.True(t, c.SamePair(strPtr("a@t.io"), nil))
	assert.False(t, c.SamePair(strPtr("a@t.io"), strPtr("111")))
	assert.False(t, c.SamePair(nil, nil))
}

func TestEqualField(t *testing.T) {
	assert.True(t, EqualField(nil, nil))
	assert.True(t, EqualField(strPtr("x"), strPtr("x")))
	assert.False(t, EqualField(strPtr("x"), nil))
	assert.False(t, EqualField(strPtr("x"), strPtr("y")))
}

func TestOlderThan(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := Contact{ID: 2, CreatedAt: base}
	younger := Contact{ID: 1, CreatedAt: base.Add(time.Second)}
	assert.True(t, older.OlderThan(younger), "creation time dominates id")

	tieLow := Contact{ID: 1, CreatedAt: base}
	tieHigh := Contact{ID: 2, CreatedAt: base}
	assert.True(t, tieLow.OlderThan(tieHigh), "ties broken by lower id")
	assert.False(t, tieHigh.OlderThan(tieLow))
}
