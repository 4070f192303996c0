package dbtclickhouse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable(t *testing.T) {
	t.Parallel()

	t.Run("round trip preserves order and values", func(t *testing.T) {
		t.Parallel()
		columns := []Column{{Name: "id", Type: "Int64"}, {Name: "name", Type: "String"}}
		rows := [][]any{{int64(1), "a"}, {int64(2), "b"}}

		table, err := NewTable(columns, rows)
		require.NoError(t, err)

		assert.Equal(t, []string{"id", "name"}, table.ColumnNames())
		assert.Equal(t, 2, table.NumRows())
		assert.Equal(t, 2, table.NumColumns())
		assert.Equal(t, int64(1), table.Rows()[0][0])
		assert.Equal(t, "a", table.Rows()[0][1])
		assert.Equal(t, int64(2), table.Rows()[1][0])
		assert.Equal(t, "b", table.Rows()[1][1])
	})

	t.Run("empty rows keep declared columns", func(t *testing.T) {
		t.Parallel()
		columns := []Column{{Name: "id", Type: "Int64"}}
		table, err := NewTable(columns, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, table.NumRows())
		assert.Equal(t, []string{"id"}, table.ColumnNames())
	})

	t.Run("row arity mismatch is rejected", func(t *testing.T) {
		t.Parallel()
		columns := []Column{{Name: "id", Type: "Int64"}, {Name: "name", Type: "String"}}
		_, err := NewTable(columns, [][]any{{int64(1)}})
		require.ErrorIs(t, err, ErrRuntime)
		assert.Contains(t, err.Error(), "row 0")
	})
}

func TestMaterializeRows(t *testing.T) {
	t.Parallel()

	t.Run("drains rows with column metadata", func(t *testing.T) {
		t.Parallel()
		rows := newMockRows(
			[]Column{{Name: "count", Type: "UInt64"}, {Name: "label", Type: "String"}},
			[][]any{{uint64(10), "x"}, {uint64(20), "y"}},
		)

		table, err := materializeRows(rows)
		require.NoError(t, err)

		assert.Equal(t, []Column{{Name: "count", Type: "UInt64"}, {Name: "label", Type: "String"}}, table.Columns())
		require.Equal(t, 2, table.NumRows())
		assert.Equal(t, uint64(10), table.Rows()[0][0])
		assert.Equal(t, "y", table.Rows()[1][1])
	})

	t.Run("zero driver rows yield declared columns", func(t *testing.T) {
		t.Parallel()
		rows := newMockRows([]Column{{Name: "id", Type: "UInt64"}}, nil)

		table, err := materializeRows(rows)
		require.NoError(t, err)
		assert.Equal(t, 0, table.NumRows())
		assert.Equal(t, []string{"id"}, table.ColumnNames())
	})

	t.Run("propagates deferred row errors", func(t *testing.T) {
		t.Parallel()
		rows := newMockRows([]Column{{Name: "id", Type: "UInt64"}}, nil)
		rows.err = errors.New("stream aborted")

		_, err := materializeRows(rows)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stream aborted")
	})
}

func TestIsAdapterError(t *testing.T) {
	t.Parallel()

	assert.True(t, isAdapterError(ErrConfiguration))
	assert.True(t, isAdapterError(ErrConnection))
	assert.True(t, isAdapterError(ErrQuery))
	assert.True(t, isAdapterError(ErrRuntime))
	assert.True(t, isAdapterError(ErrNotOpen))
	assert.False(t, isAdapterError(errors.New("read tcp: reset")))
	assert.False(t, isAdapterError(nil))
}
