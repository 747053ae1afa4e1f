package nnload

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArch(t *testing.T) {
	out8l := `Identifying board
Control Protocol Version: 2
Firmware Version: 4.17.0
Device Architecture: HAILO8L
Serial Number: XXXX`
	arch, err := ParseArch(out8l)
	require.NoError(t, err)
	require.Equal(t, "hailo8l", arch)

	out8 := "Device Architecture: HAILO8\n"
	arch, err = ParseArch(out8)
	require.NoError(t, err)
	require.Equal(t, "hailo8", arch)

	_, err = ParseArch("Device Architecture: HAILO15H\n")
	require.Error(t, err)
}

func TestModelForArch(t *testing.T) {
	require.Equal(t, "yolov8m", ModelForArch("hailo8"))
	require.Equal(t, "yolov8s", ModelForArch("hailo8l"))
}

func TestModelStub(t *testing.T) {
	require.Equal(t, "yolov8m_640_640", ModelStub("yolov8m", 640, 640))
}

func TestDownloadFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/zoo/yolov8s_640_640.json" {
			w.Write([]byte(`{"architecture":"yolov8","width":640,"height":640,"classes":["bird"]}`))
		} else {
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "models", "yolov8s_640_640.json")
	require.NoError(t, downloadFile(server.URL+"/zoo/yolov8s_640_640.json", target))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Contains(t, string(data), "yolov8")

	// No .tmp file left behind
	_, err = os.Stat(target + ".tmp")
	require.True(t, os.IsNotExist(err))

	require.Error(t, downloadFile(server.URL+"/zoo/missing.json", filepath.Join(dir, "missing.json")))
}
