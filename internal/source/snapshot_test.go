package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheelhouse-labs/wheelhouse/internal/catalog"
)

type fakeSource struct {
	listed  []ListedObject
	ddl     map[string]string
	columns map[string][]catalog.Feature
	listErr error
}

func (f *fakeSource) Connect(context.Context, Config) error { return nil }
func (f *fakeSource) Close() error                          { return nil }

func (f *fakeSource) ListObjects(context.Context) ([]ListedObject, error) {
	return f.listed, f.listErr
}

func (f *fakeSource) FetchDDL(_ context.Context, obj ListedObject) (string, error) {
	ddl, ok := f.ddl[obj.Path.String()]
	if !ok {
		return "", errors.New("no ddl")
	}
	return ddl, nil
}

func (f *fakeSource) FetchColumns(_ context.Context, obj ListedObject) ([]catalog.Feature, error) {
	return f.columns[obj.Path.String()], nil
}

func listed(dotted string, kind catalog.ObjectKind) ListedObject {
	p, err := catalog.ParsePath(dotted)
	if err != nil {
		panic(err)
	}
	return ListedObject{Path: p, Kind: kind}
}

func TestSnapshot_RegistersAndEnriches(t *testing.T) {
	src := &fakeSource{
		listed: []ListedObject{
			listed("db.sc.t", catalog.KindTable),
			listed("db.sc.v", catalog.KindView),
		},
		ddl: map[string]string{
			"db.sc.t": "CREATE TABLE db.sc.t (a int)",
			"db.sc.v": "CREATE VIEW db.sc.v AS SELECT * FROM db.sc.t",
		},
		columns: map[string][]catalog.Feature{
			"db.sc.t": {{Name: "a", DataType: "int"}},
		},
	}

	reg, err := Snapshot(context.Background(), src, SnapshotOptions{Concurrency: 2})
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	p, _ := catalog.ParsePath("db.sc.t")
	o, ok := reg.Get(p)
	require.True(t, ok)
	assert.Equal(t, "CREATE TABLE db.sc.t (a int)", o.DDL)
	require.Len(t, o.Columns, 1)
	assert.Equal(t, "a", o.Columns[0].Name)
}

func TestSnapshot_TemporaryNeverRegistered(t *testing.T) {
	src := &fakeSource{
		listed: []ListedObject{
			listed("db.sc.t", catalog.KindTable),
			listed("db.sc.tmp_stage", catalog.KindTable),
		},
	}

	reg, err := Snapshot(context.Background(), src, SnapshotOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	tmp, _ := catalog.ParsePath("db.sc.tmp_stage")
	_, ok := reg.Get(tmp)
	assert.False(t, ok)
}

func TestSnapshot_FetchFailureLeavesEntryBare(t *testing.T) {
	src := &fakeSource{
		listed: []ListedObject{listed("db.sc.broken", catalog.KindTable)},
	}

	reg, err := Snapshot(context.Background(), src, SnapshotOptions{})
	require.NoError(t, err, "a failed DDL fetch must not abort the run")

	p, _ := catalog.ParsePath("db.sc.broken")
	o, ok := reg.Get(p)
	require.True(t, ok)
	assert.Empty(t, o.DDL)
}

func TestSnapshot_ListFailureAborts(t *testing.T) {
	src := &fakeSource{listErr: errors.New("connection refused")}

	_, err := Snapshot(context.Background(), src, SnapshotOptions{})
	assert.Error(t, err)
}

func TestRegistry_UnknownType(t *testing.T) {
	_, err := New(Config{Type: "oracle"}, nil)
	var unknown *UnknownSourceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Type)
}
