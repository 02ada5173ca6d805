package web

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/config"
	"github.com/mogaika/xsg_export/export"
	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/source"
	"github.com/mogaika/xsg_export/source/gltfsrc"
	"github.com/mogaika/xsg_export/status"
	"github.com/mogaika/xsg_export/webutils"
)

const (
	JobDone   = "done"
	JobFailed = "failed"
)

// Job is one finished conversion request.
type Job struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Created  time.Time      `json:"created"`
	Duration float64        `json:"duration"`
	State    string         `json:"state"`
	Error    string         `json:"error,omitempty"`
	Report   *export.Report `json:"report,omitempty"`

	outDir string
}

func (s *Server) addJob(j *Job) {
	s.jobsLock.Lock()
	defer s.jobsLock.Unlock()
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
}

func (s *Server) job(id string) *Job {
	s.jobsLock.RLock()
	defer s.jobsLock.RUnlock()
	return s.jobs[id]
}

// HandlerConvert takes a multipart upload: "scene" is the scene file,
// "files" are companions such as glTF buffers and textures. Optional form
// values "selected", "separate", "anim" and "sets" override the server
// config for this job.
func (s *Server) HandlerConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Failed to parse upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	j := &Job{ID: uuid.New().String(), Created: time.Now()}
	jobDir := filepath.Join(s.workDir, j.ID)
	srcDir := filepath.Join(jobDir, "src")
	j.outDir = filepath.Join(jobDir, "out")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		webutils.WriteErrorCode(w, http.StatusInternalServerError, errors.Wrapf(err, "Failed to create job dir"))
		return
	}

	scenes, err := webutils.SaveFormFiles(r, "scene", srcDir)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	if len(scenes) != 1 {
		webutils.WriteError(w, errors.Errorf("Expected one scene file, got %d", len(scenes)))
		return
	}
	if !source.Supported(scenes[0]) {
		webutils.WriteError(w, errors.Errorf("Unsupported scene file %q", filepath.Base(scenes[0])))
		return
	}
	if _, err := webutils.SaveFormFiles(r, "files", srcDir); err != nil {
		webutils.WriteError(w, err)
		return
	}
	j.Source = filepath.Base(scenes[0])

	cfg := *s.cfg
	cfg.Export.SelectedOnly = webutils.FormBool(r, "selected", cfg.Export.SelectedOnly)
	cfg.Export.Separate = webutils.FormBool(r, "separate", cfg.Export.Separate)
	cfg.Animation.Enabled = webutils.FormBool(r, "anim", cfg.Animation.Enabled)
	cfg.Animation.ActionsAsSets = webutils.FormBool(r, "sets", cfg.Animation.ActionsAsSets)

	start := time.Now()
	s.convertLock.Lock()
	err = convert(r.Context(), &cfg, j, scenes[0])
	s.convertLock.Unlock()
	j.Duration = time.Since(start).Seconds()

	if err != nil {
		j.State = JobFailed
		j.Error = err.Error()
		status.Error("[web] job %s failed: %v", j.ID, err)
	} else {
		j.State = JobDone
		status.Info("[web] job %s done", j.ID)
	}
	s.addJob(j)
	logger.Info("[web] job finished", zap.String("id", j.ID), zap.String("source", j.Source),
		zap.String("state", j.State), zap.Float64("seconds", j.Duration))
	webutils.WriteJson(w, j)
}

func convert(ctx context.Context, cfg *config.Config, j *Job, scenePath string) error {
	sc, err := source.Open(scenePath)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(scenePath), filepath.Ext(scenePath))
	e := export.New(cfg)
	e.Loader = source.Open
	e.Roots = []string{filepath.Dir(scenePath), gltfsrc.ImageDir(scenePath)}
	report, err := e.Run(ctx, sc, filepath.Join(j.outDir, name+".xsg"))
	j.Report = report
	return err
}

func (s *Server) HandlerAjaxJobs(w http.ResponseWriter, r *http.Request) {
	s.jobsLock.RLock()
	list := make([]*Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		list = append(list, s.jobs[s.order[i]])
	}
	s.jobsLock.RUnlock()
	webutils.WriteJson(w, list)
}

func (s *Server) HandlerAjaxJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	j := s.job(id)
	if j == nil {
		webutils.WriteErrorCode(w, http.StatusNotFound, errors.Errorf("Job %q not found", id))
		return
	}
	webutils.WriteJson(w, j)
}

// HandlerDownload streams the output directory of a job as a zip archive.
func (s *Server) HandlerDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	j := s.job(id)
	if j == nil {
		webutils.WriteErrorCode(w, http.StatusNotFound, errors.Errorf("Job %q not found", id))
		return
	}
	if j.State != JobDone {
		webutils.WriteError(w, errors.Errorf("Job %q has no output: %s", id, j.Error))
		return
	}
	files, err := listFiles(j.outDir)
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusInternalServerError, err)
		return
	}

	name := strings.TrimSuffix(j.Source, filepath.Ext(j.Source))
	webutils.WriteFileHeaders(w, name+".zip")
	w.Header().Set("Content-Type", "application/zip")
	if err := writeZip(w, j.outDir, files); err != nil {
		logger.Warn("[web] zip write failed", zap.String("id", id), zap.Error(err))
	}
}

func (s *Server) HandlerStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("[web] websocket upgrade failed", zap.Error(err))
		return
	}
	status.NewClient(conn)
}

// listFiles returns the files under dir relative to it, sorted.
func listFiles(dir string) ([]string, error) {
	files := make([]string, 0)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to list %q", dir)
	}
	sort.Strings(files)
	return files, nil
}

func writeZip(w io.Writer, dir string, files []string) error {
	zw := zip.NewWriter(w)
	for _, name := range files {
		if err := addZipFile(zw, filepath.Join(dir, filepath.FromSlash(name)), name); err != nil {
			return err
		}
	}
	return zw.Close()
}

func addZipFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to open %q", path)
	}
	defer f.Close()
	out, err := zw.Create(name)
	if err != nil {
		return errors.Wrapf(err, "Failed to add %q", name)
	}
	if _, err := io.Copy(out, f); err != nil {
		return errors.Wrapf(err, "Failed to compress %q", name)
	}
	return nil
}
