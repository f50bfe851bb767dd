package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/server"
)

func newTestServer(t *testing.T) (*httptest.Server, *server.Store) {
	t.Helper()
	store := newStore(t)
	ts := httptest.NewServer(server.New(store, nil).Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateAndGetProject(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/projects", project.Draft{Title: "Alpha", Owner: "ada"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[project.Project](t, resp)
	require.Equal(t, "Alpha", created.Title)
	require.Equal(t, int64(1), created.Version)

	resp = doJSON(t, http.MethodGet, ts.URL+"/projects/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[project.Project](t, resp)
	require.Equal(t, created.ID, got.ID)
}

func TestGetMissingProjectDetailBody(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/projects/999", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	require.Equal(t, "Project not found", body["detail"])
}

func TestUpdateWithIfMatch(t *testing.T) {
	ts, _ := newTestServer(t)
	doJSON(t, http.MethodPost, ts.URL+"/projects", project.Draft{Title: "Alpha"}).Body.Close()

	payload, _ := json.Marshal(map[string]any{"title": "Beta"})
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/projects/1", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("If-Match", "7")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPut, ts.URL+"/projects/1", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("If-Match", "1")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "2", resp.Header.Get("ETag"))
	updated := decodeBody[project.Project](t, resp)
	require.Equal(t, "Beta", updated.Title)
}

func TestValidationErrorUsesDetailList(t *testing.T) {
	ts, _ := newTestServer(t)
	doJSON(t, http.MethodPost, ts.URL+"/projects", project.Draft{Title: "Alpha"}).Body.Close()

	resp := doJSON(t, http.MethodPatch, ts.URL+"/projects/1", map[string]any{"status": "paused"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decodeBody[struct {
		Detail []map[string]any `json:"detail"`
	}](t, resp)
	require.Len(t, body.Detail, 1)
	require.Contains(t, body.Detail[0]["msg"], "unknown status")
}

func TestDeleteReturnsNoContent(t *testing.T) {
	ts, _ := newTestServer(t)
	doJSON(t, http.MethodPost, ts.URL+"/projects", project.Draft{Title: "Alpha"}).Body.Close()

	resp := doJSON(t, http.MethodDelete, ts.URL+"/projects/1", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/projects/1", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecoverSemantics(t *testing.T) {
	ts, _ := newTestServer(t)
	doJSON(t, http.MethodPost, ts.URL+"/projects", project.Draft{Title: "Alpha"}).Body.Close()

	// Recovering a live project is not recoverable.
	resp := doJSON(t, http.MethodPost, ts.URL+"/projects/1/recover", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	require.Equal(t, "Project not recoverable", body["detail"])

	doJSON(t, http.MethodDelete, ts.URL+"/projects/1", nil).Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/projects/1/recover", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	recovered := decodeBody[project.Project](t, resp)
	require.Nil(t, recovered.DeletedAt)
}

func TestBulkEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	doJSON(t, http.MethodPost, ts.URL+"/projects", project.Draft{Title: "Alpha"}).Body.Close()
	doJSON(t, http.MethodPost, ts.URL+"/projects", project.Draft{Title: "Beta"}).Body.Close()

	resp := doJSON(t, http.MethodPost, ts.URL+"/projects/bulk", project.BulkRequest{
		Action:           project.BulkUpdateStatus,
		IDs:              []int64{1, 2},
		NewStatus:        project.StatusCompleted,
		ExpectedVersions: map[int64]int64{1: 1, 2: 9},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody[project.BulkResponse](t, resp)
	require.Equal(t, 1, out.UpdatedCount)
	require.Len(t, out.Conflicts, 1)
	require.Equal(t, int64(2), out.Conflicts[0].ID)
}

func TestSubresourcesOfDeletedProjectStayReadable(t *testing.T) {
	ts, store := newTestServer(t)
	p, err := store.CreateProject(context.Background(), project.Draft{Title: "Alpha"})
	require.NoError(t, err)
	_, err = store.AddMilestone(context.Background(), project.Milestone{ProjectID: p.ID, Title: "Kickoff"})
	require.NoError(t, err)
	require.NoError(t, store.SoftDeleteProject(context.Background(), p.ID))

	resp := doJSON(t, http.MethodGet, ts.URL+"/projects/1/milestones", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	milestones := decodeBody[[]project.Milestone](t, resp)
	require.Len(t, milestones, 1)
}

func TestEventsNewestFirst(t *testing.T) {
	ts, _ := newTestServer(t)
	doJSON(t, http.MethodPost, ts.URL+"/projects", project.Draft{Title: "Alpha"}).Body.Close()
	doJSON(t, http.MethodPatch, ts.URL+"/projects/1", map[string]any{"owner": "ada"}).Body.Close()

	resp := doJSON(t, http.MethodGet, ts.URL+"/projects/1/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decodeBody[[]project.EventItem](t, resp)
	require.Len(t, events, 2)
	require.Equal(t, "updated", events[0].Kind)
	require.Equal(t, "created", events[1].Kind)
}

func TestStreamDeliversWrites(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan string, 8)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data: ") {
				frames <- strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	doJSON(t, http.MethodPost, ts.URL+"/projects", project.Draft{Title: "Alpha"}).Body.Close()

	var types []string
	for len(types) < 2 {
		select {
		case frame := <-frames:
			var msg struct {
				Type string `json:"type"`
			}
			require.NoError(t, json.Unmarshal([]byte(frame), &msg))
			types = append(types, msg.Type)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for stream frames, got %v", types)
		}
	}
	require.Equal(t, []string{"project_created", "event_created"}, types)
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	require.Equal(t, "ok", body["status"])
}
