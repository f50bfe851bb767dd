// Package testserver spins up a full in-memory backend for integration
// tests: sqlite store, push broker and HTTP surface behind httptest.
package testserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/server"
)

type TestServer struct {
	Server *httptest.Server
	Store  *server.Store
}

// New starts a backend over a fresh in-memory database and registers its
// teardown with the test.
func New(t *testing.T) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := server.OpenDB(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	store := server.NewStore(db)
	ts := httptest.NewServer(server.New(store, nil).Router())

	t.Cleanup(func() {
		ts.Close()
		db.Close()
	})
	return &TestServer{Server: ts, Store: store}
}

// URL returns the backend's base URL.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// CreateProject inserts a project directly through the store.
func (ts *TestServer) CreateProject(t *testing.T, draft project.Draft) project.Project {
	t.Helper()
	p, err := ts.Store.CreateProject(context.Background(), draft)
	require.NoError(t, err)
	return p
}
