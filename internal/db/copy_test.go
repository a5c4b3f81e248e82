package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	id, err := ParseTable("geo.block_groups")
	require.NoError(t, err)
	assert.Equal(t, pgx.Identifier{"geo", "block_groups"}, id)

	id, err = ParseTable("stores")
	require.NoError(t, err)
	assert.Equal(t, pgx.Identifier{"stores"}, id)

	for _, bad := range []string{"", "a.b.c", "geo.bg;drop", "1abc", "geo."} {
		_, err := ParseTable(bad)
		assert.Error(t, err, bad)
	}
}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, pgx.Identifier{"test_table"}, []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"geo", "income"}, []string{"a", "b"}).WillReturnResult(3)

	rows := [][]any{{1, "x"}, {2, "y"}, {3, "z"}}
	n, err := CopyFrom(context.Background(), mock, pgx.Identifier{"geo", "income"}, []string{"a", "b"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"geo", "income"}, []string{"a"}).WillReturnError(fmt.Errorf("permission denied"))

	_, err = CopyFrom(context.Background(), mock, pgx.Identifier{"geo", "income"}, []string{"a"}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO geo.income")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	table := pgx.Identifier{"geo", "block_groups"}
	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE "geo"\."block_groups"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(table, []string{"geoid", "geom"}).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := ReplaceTable(context.Background(), mock, table, []string{"geoid", "geom"}, [][]any{{"1", nil}, {"2", nil}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_EmptyRowsStillTruncates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE "stores"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCommit()

	n, err := ReplaceTable(context.Background(), mock, pgx.Identifier{"stores"}, []string{"a"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_CopyFailsRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	table := pgx.Identifier{"geo", "income"}
	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(table, []string{"a"}).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = ReplaceTable(context.Background(), mock, table, []string{"a"}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: replace geo.income: COPY")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz", &PoolConfig{MaxConns: 4})
	assert.Error(t, err)
}
