package coerce

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestBool_TruthySetIsExact(t *testing.T) {
	c := New()

	for _, v := range []string{"1", "Y", "Yes", "TRUE"} {
		assert.True(t, c.Bool(ptr(v)), "expected %q to be truthy", v)
	}
	for _, v := range []string{"0", "N", "No", "FALSE", "no", "yes", "true", "y", "", " Yes", "Yes ", "2", "garbage"} {
		assert.False(t, c.Bool(ptr(v)), "expected %q to be falsy", v)
	}
	assert.False(t, c.Bool(nil))
}

func TestBool_CustomLiterals(t *testing.T) {
	c := New(WithTruthyLiterals("T", "on"))

	assert.True(t, c.Bool(ptr("T")))
	assert.True(t, c.Bool(ptr("on")))
	assert.False(t, c.Bool(ptr("Yes")))
}

func TestTime(t *testing.T) {
	c := New()

	tests := []struct {
		raw  *string
		want time.Time
		ok   bool
	}{
		{ptr("2024-01-10"), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), true},
		{ptr("2024-01-10 08:30:00"), time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC), true},
		{ptr("2024-01-10T08:30:00Z"), time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC), true},
		{ptr("01/10/2024"), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), true},
		{ptr("  2024-01-10  "), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), true},
		{ptr("bad-date"), time.Time{}, false},
		{ptr(""), time.Time{}, false},
		{nil, time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := c.Time(tt.raw)
		assert.Equal(t, tt.ok, ok)
		if tt.ok {
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
		}
	}
}

func TestTime_CustomLayouts(t *testing.T) {
	c := New(WithDatetimeLayouts("02.01.2006"))

	got, ok := c.Time(ptr("10.01.2024"))
	require.True(t, ok)
	assert.Equal(t, time.January, got.Month())

	_, ok = c.Time(ptr("2024-01-10"))
	assert.False(t, ok)
}

func TestFloat(t *testing.T) {
	c := New()

	f, ok := c.Float(ptr("4.5"))
	require.True(t, ok)
	assert.Equal(t, 4.5, f)

	f, ok = c.Float(ptr(" 3 "))
	require.True(t, ok)
	assert.Equal(t, 3.0, f)

	for _, raw := range []*string{nil, ptr(""), ptr("n/a"), ptr("NaN"), ptr("Inf"), ptr("4 days")} {
		_, ok := c.Float(raw)
		assert.False(t, ok)
	}
}

func TestCheck(t *testing.T) {
	c := New()

	tests := []struct {
		raw  *string
		kind Kind
		want Outcome
	}{
		{ptr("Yes"), KindBoolean, OutcomeConverted},
		{ptr("No"), KindBoolean, OutcomeConverted},
		{ptr("maybe"), KindBoolean, OutcomeUnconvertible},
		{nil, KindBoolean, OutcomeNull},
		{ptr("2024-01-10"), KindDatetime, OutcomeConverted},
		{ptr("bad-date"), KindDatetime, OutcomeUnconvertible},
		{ptr("  "), KindDatetime, OutcomeNull},
		{ptr("12"), KindNumeric, OutcomeConverted},
		{ptr("twelve"), KindNumeric, OutcomeUnconvertible},
		{nil, KindNumeric, OutcomeNull},
	}
	for _, tt := range tests {
		got, err := c.Check(tt.raw, tt.kind)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "kind=%s", tt.kind)
	}
}

func TestCheck_UnknownKind(t *testing.T) {
	_, err := New().Check(ptr("x"), Kind("currency"))
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("numeric")
	require.NoError(t, err)
	assert.Equal(t, KindNumeric, k)

	_, err = ParseKind("Numeric")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
