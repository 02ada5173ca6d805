package web

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/xsg_export/config"
	"github.com/mogaika/xsg_export/export"
)

const boxScene = `
objects:
  - name: box
    location: [0, 0, 1]
    mesh:
      vertices: [[0, 0, 0], [1, 0, 0], [1, 1, 0], [0, 1, 0]]
      polygons: [{v: [0, 1, 2, 3]}]
`

func testServer(t *testing.T) *Server {
	cfg := config.Default()
	cfg.Animation.Enabled = false
	cfg.Server.WorkDir = t.TempDir()
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func upload(t *testing.T, h http.Handler, name, content string, fields map[string]string, files ...string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("scene", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	for i := 0; i+1 < len(files); i += 2 {
		fw, err := mw.CreateFormFile("files", files[i])
		require.NoError(t, err)
		_, err = fw.Write([]byte(files[i+1]))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", url, nil))
	return rec
}

func TestConvertAndDownload(t *testing.T) {
	s := testServer(t)
	h := s.Handler()

	rec := upload(t, h, "box.yaml", boxScene, map[string]string{"separate": "0"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var j Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &j))
	assert.Equal(t, JobDone, j.State)
	assert.Equal(t, "box.yaml", j.Source)
	require.NotNil(t, j.Report)
	assert.Equal(t, 1, j.Report.Meshes)

	rec = get(h, "/json/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, j.ID, list[0].ID)

	rec = get(h, "/json/jobs/"+j.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(h, "/download/"+j.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, zipNames(t, rec), "box.xsg")
}

func zipNames(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	names := make([]string, 0)
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

const confinedScene = `
materials:
  - name: leak
    nodes:
      - {kind: OUTPUT_MATERIAL}
      - {kind: BSDF_PRINCIPLED}
      - {kind: TEX_IMAGE, image: %q}
    links:
      - {from: Principled BSDF, to: Material Output, input: Surface}
      - {from: Image Texture, to: Principled BSDF, input: Base Color}
  - name: wood
    nodes:
      - {kind: OUTPUT_MATERIAL}
      - {kind: BSDF_PRINCIPLED}
      - {kind: TEX_IMAGE, image: //wood.png}
    links:
      - {from: Principled BSDF, to: Material Output, input: Surface}
      - {from: Image Texture, to: Principled BSDF, input: Base Color}
objects:
  - name: box
    mesh:
      vertices: [[0, 0, 0], [1, 0, 0], [1, 1, 0], [0, 1, 0]]
      polygons: [{v: [0, 1, 2]}, {v: [0, 2, 3], material: 1}]
      materials: [leak, wood]
  - name: escape
    instance: //../../../outside.yaml
`

func TestConvertConfinesScenePaths(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "secret.png")
	require.NoError(t, os.WriteFile(secret, []byte("private"), 0644))

	h := testServer(t).Handler()
	rec := upload(t, h, "box.yaml", fmt.Sprintf(confinedScene, secret), nil, "wood.png", "grain")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var j Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &j))
	require.Equal(t, JobDone, j.State, j.Error)
	kinds := make(map[string]int)
	for _, p := range j.Report.Problems {
		kinds[p.Kind]++
	}
	assert.Equal(t, 1, kinds[export.UnresolvedTexture])
	assert.Equal(t, 1, kinds[export.UnresolvedReference])

	rec = get(h, "/download/"+j.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"box.xsg", "_image/wood.png"}, zipNames(t, rec))
}

func TestConvertFailedJob(t *testing.T) {
	s := testServer(t)
	h := s.Handler()

	rec := upload(t, h, "bad.yaml", "objects: [{name: a, parent: missing}]", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var j Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &j))
	assert.Equal(t, JobFailed, j.State)
	assert.Contains(t, j.Error, "missing")

	rec = get(h, "/download/"+j.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvertRejectsUnknownFormat(t *testing.T) {
	rec := upload(t, testServer(t).Handler(), "scene.blend", "BLENDER", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported scene file")
}

func TestUnknownJob(t *testing.T) {
	h := testServer(t).Handler()
	assert.Equal(t, http.StatusNotFound, get(h, "/json/jobs/nope").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/download/nope").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, get(h, "/convert").Code)
}
