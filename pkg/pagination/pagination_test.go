package pagination

import (
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 10, NormalizeLimit(10))
}

func TestCursorRoundTripKeepsNanoseconds(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 10, 1, 9, 30, 0, 123, time.UTC), ID: uuid.New()}
	got, err := ParseCursor(EncodeCursor(want))
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
	assert.Equal(t, want.ID, got.ID)

	empty, err := ParseCursor(" ")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestCursorIsQuerySafe(t *testing.T) {
	for i := 0; i < 50; i++ {
		c := EncodeCursor(Cursor{CreatedAt: time.Now().Add(time.Duration(i) * time.Hour), ID: uuid.New()})
		assert.Equal(t, c, url.QueryEscape(c), "cursor needs escaping: %s", c)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, value := range []string{"not-base64!", EncodeSequenceCursor(42), encode(kindTime, "x", uuid.NewString())} {
		_, err := ParseCursor(value)
		assert.True(t, errors.Is(err, ErrInvalidCursor), "value %q err %v", value, err)
	}
}

func TestSequenceCursor(t *testing.T) {
	seq, err := ParseSequenceCursor(EncodeSequenceCursor(42))
	require.NoError(t, err)
	assert.EqualValues(t, 42, seq)

	seq, err = ParseSequenceCursor("")
	require.NoError(t, err)
	assert.Zero(t, seq)

	_, err = ParseSequenceCursor(EncodeCursor(Cursor{CreatedAt: time.Now(), ID: uuid.New()}))
	assert.ErrorIs(t, err, ErrInvalidCursor)
	_, err = ParseSequenceCursor(EncodeSequenceCursor(0))
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestTrim(t *testing.T) {
	rows := []int{5, 4, 3, 2}
	cursorOf := func(v int) string { return strconv.Itoa(v) }

	page, next := Trim(rows, 3, cursorOf)
	assert.Equal(t, []int{5, 4, 3}, page)
	assert.Equal(t, "3", next)

	page, next = Trim(rows[:3], 3, cursorOf)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}
