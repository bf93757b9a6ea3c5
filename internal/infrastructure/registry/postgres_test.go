package registry

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/StoryLink-Intelligence/pkg/errors"
	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// fakeRows implements pgx.Rows over an in-memory value grid.
type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d dests for %d columns", len(dest), len(row))
	}
	for i, src := range row {
		switch d := dest[i].(type) {
		case *string:
			s, ok := src.(string)
			if !ok {
				return fmt.Errorf("scan: column %d is %T, want string", i, src)
			}
			*d = s
		case *[]string:
			v, _ := src.([]string)
			*d = v
		case *[]byte:
			v, _ := src.([]byte)
			*d = v
		default:
			return fmt.Errorf("scan: unsupported dest %T", d)
		}
	}
	return nil
}

type fakeQuerier struct {
	rows     *fakeRows
	err      error
	lastSQL  string
	lastArgs []any
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.lastSQL = sql
	q.lastArgs = args
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func entityRow(id, entityType, name string, aliases []string, attrs string) []any {
	var attrsBytes []byte
	if attrs != "" {
		attrsBytes = []byte(attrs)
	}
	return []any{id, "proj-1", entityType, name, aliases, attrsBytes, "major", []string(nil)}
}

func TestListEntities_DecodesRows(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{rows: [][]any{
		entityRow("e1", "character", "Aria Moonwhisper", []string{"Aria"}, `{"hair_color":"silver"}`),
		entityRow("e2", "location", "Thornged Keep", nil, ""),
	}}}
	reg := newPostgresRegistry(q, logging.NewNopLogger())

	entities, err := reg.ListEntities(context.Background(), "proj-1", nil)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	assert.Equal(t, "Aria Moonwhisper", entities[0].Name)
	assert.Equal(t, story.EntityCharacter, entities[0].Type)
	assert.Equal(t, []string{"Aria"}, entities[0].Aliases)
	assert.Equal(t, "silver", entities[0].Attributes["hair_color"])
	assert.Equal(t, story.EntityLocation, entities[1].Type)
	assert.Nil(t, entities[1].Attributes)
}

func TestListEntities_TypeFilter(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{}}
	reg := newPostgresRegistry(q, logging.NewNopLogger())

	_, err := reg.ListEntities(context.Background(), "proj-1",
		[]story.EntityType{story.EntityCharacter, story.EntityLocation})
	require.NoError(t, err)

	assert.Contains(t, q.lastSQL, "entity_type = ANY($2)")
	require.Len(t, q.lastArgs, 2)
	assert.Equal(t, []string{"character", "location"}, q.lastArgs[1])
}

func TestListEntities_SkipsMalformedRows(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{rows: [][]any{
		entityRow("e1", "character", "Aria", nil, ""),
		entityRow("e2", "dragonkind", "Smaug", nil, ""), // unknown type
		entityRow("e3", "character", "", nil, ""),       // empty name
		entityRow("e4", "object", "Moonblade", nil, ""),
	}}}
	reg := newPostgresRegistry(q, logging.NewNopLogger())

	entities, err := reg.ListEntities(context.Background(), "proj-1", nil)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "Aria", entities[0].Name)
	assert.Equal(t, "Moonblade", entities[1].Name)
}

func TestListEntities_CorruptAttributesKeepsEntity(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{rows: [][]any{
		entityRow("e1", "character", "Aria", nil, `{not json`),
	}}}
	reg := newPostgresRegistry(q, logging.NewNopLogger())

	entities, err := reg.ListEntities(context.Background(), "proj-1", nil)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Nil(t, entities[0].Attributes)
}

func TestListEntities_QueryError(t *testing.T) {
	q := &fakeQuerier{err: fmt.Errorf("connection refused")}
	reg := newPostgresRegistry(q, logging.NewNopLogger())

	_, err := reg.ListEntities(context.Background(), "proj-1", nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRegistryQueryFailed, apperrors.GetCode(err))
	assert.True(t, strings.Contains(err.Error(), "proj-1"))
}
