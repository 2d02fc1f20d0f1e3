package pagination

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowClampsLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -4: DefaultLimit, 10: 10, 500: MaxLimit}
	for in, want := range cases {
		limit, cursor, err := Params{Limit: in}.Window()
		require.NoError(t, err)
		assert.Nil(t, cursor)
		assert.Equal(t, want, limit, "limit %d", in)
	}
}

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	at := time.Date(2026, 10, 1, 9, 30, 0, 123, time.FixedZone("CET", 3600))
	id := uuid.New()

	token := Encode(Cursor{CreatedAt: at, ID: id})
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")

	_, cursor, err := Params{Cursor: token}.Window()
	require.NoError(t, err)
	assert.True(t, cursor.CreatedAt.Equal(at))
	assert.Equal(t, id, cursor.ID)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm90IGpzb24", Encode(Cursor{})} {
		_, err := Decode(token)
		assert.True(t, errors.Is(err, ErrInvalidCursor), token)
	}
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	position := func(i int) Cursor { return Cursor{CreatedAt: base.Add(-time.Duration(i) * time.Hour), ID: ids[i]} }

	page, next := Trim([]int{0, 1, 2}, 2, position)
	assert.Equal(t, []int{0, 1}, page)
	cursor, err := Decode(next)
	require.NoError(t, err)
	assert.Equal(t, ids[1], cursor.ID)

	page, next = Trim([]int{0, 1}, 2, position)
	assert.Len(t, page, 2)
	assert.Empty(t, next)
}
