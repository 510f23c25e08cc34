// ABOUTME: Tests for server lifecycle, port probing, and the misc endpoints
// ABOUTME: Uses a real listener for Run and the recorder for handler checks

package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/grimoire/internal/updater"
)

func TestHealth(t *testing.T) {
	h := newTestHarness(t)

	rec := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestUpdateStatusWithoutChecker(t *testing.T) {
	h := newTestHarness(t)

	rec := h.do(t, http.MethodGet, "/api/updates/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatusWithChecker(t *testing.T) {
	h := newTestHarness(t)
	h.server.checker = updater.New(h.server.cfg.Updater, "1.0.0", nil)

	rec := h.do(t, http.MethodGet, "/api/updates/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status updater.Status
	decode(t, rec, &status)
	assert.Equal(t, updater.StateUpToDate, status.State)
}

func TestProjectPreview(t *testing.T) {
	h := newTestHarness(t)
	id := h.saveProject(t, SaveProjectRequest{
		Name:        "Preview Me",
		ProjectType: "web",
		CurrentCode: "let x = 1",
		Messages: []MessagePayload{
			{Role: "user", Content: "# Heading\n\nSome **bold** text"},
		},
	})

	rec := h.do(t, http.MethodGet, "/ui/projects/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "Preview Me")
	assert.Contains(t, body, "<h1>Heading</h1>")
	assert.Contains(t, body, "<strong>bold</strong>")
	assert.Contains(t, body, "let x = 1")
}

func TestProjectPreviewNotFound(t *testing.T) {
	h := newTestHarness(t)

	rec := h.do(t, http.MethodGet, "/ui/projects/proj-missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunServesAndShutsDown(t *testing.T) {
	h := newTestHarness(t)
	h.server.PortFile = filepath.Join(t.TempDir(), "server.port")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.server.Run(ctx) }()

	// Wait for the port file to appear, then hit /health
	var port int
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(h.server.PortFile)
		if err != nil {
			return false
		}
		port, err = strconv.Atoi(string(data))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	// Port file is removed on shutdown
	_, err = os.Stat(h.server.PortFile)
	assert.True(t, os.IsNotExist(err))
}

func TestListenProbesForFreePort(t *testing.T) {
	h := newTestHarness(t)
	h.server.cfg.Server.Port = 0

	ln, err := h.server.listen()
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port
	assert.GreaterOrEqual(t, port, portProbeStart)
	assert.LessOrEqual(t, port, portProbeEnd)
}

func TestListenFixedPortConflict(t *testing.T) {
	// Occupy a port, then ask the server for exactly that port
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = occupied.Close() }()

	h := newTestHarness(t)
	h.server.cfg.Server.Port = occupied.Addr().(*net.TCPAddr).Port

	_, err = h.server.listen()
	assert.Error(t, err)
}
