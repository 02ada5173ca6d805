package webutils

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/utils"
)

func WriteFileHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
}

func WriteFile(w http.ResponseWriter, in io.Reader, name string) {
	WriteFileHeaders(w, name)
	if _, err := io.Copy(w, in); err != nil {
		logger.Warn("[web] file write interrupted", zap.String("name", name), zap.Error(err))
	}
}

func WriteJson(w http.ResponseWriter, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		WriteError(w, err)
	} else {
		w.Header().Set("Content-Type", "application/json")
		WriteResult(w, res)
	}
}

func WriteResult(w http.ResponseWriter, data []byte) {
	if _, err := w.Write(data); err != nil {
		logger.Warn("[web] error when writing response", zap.Error(err))
	}
}

// WriteError answers with a json {"error": ...} body and status 400.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorCode(w, http.StatusBadRequest, err)
}

func WriteErrorCode(w http.ResponseWriter, code int, err error) {
	type jError struct {
		Error string `json:"error"`
	}
	data, merr := json.Marshal(&jError{Error: err.Error()})
	if merr != nil {
		logger.Error("[web] error marshaling error", zap.NamedError("original", err), zap.Error(merr))
		return
	}
	logger.Info("[web] request failed", zap.Int("code", code), zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	WriteResult(w, data)
}

// SaveFormFiles stores every upload under key into dir, keeping only the
// base name of each. It returns the stored paths in upload order.
func SaveFormFiles(r *http.Request, key string, dir string) ([]string, error) {
	if strings.ToUpper(r.Method) != "POST" {
		return nil, errors.Errorf("Invalid http method %q", r.Method)
	}
	if r.MultipartForm == nil {
		return nil, errors.New("Request is not multipart")
	}
	headers := r.MultipartForm.File[key]
	paths := make([]string, 0, len(headers))
	for _, h := range headers {
		path, err := saveFormFile(h, dir)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func saveFormFile(h *multipart.FileHeader, dir string) (string, error) {
	name := filepath.Base(filepath.FromSlash(h.Filename))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", errors.Errorf("Invalid upload name %q", h.Filename)
	}
	name = utils.FileName(name)

	in, err := h.Open()
	if err != nil {
		return "", errors.Wrapf(err, "Failed to open upload %q", h.Filename)
	}
	defer in.Close()

	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to create %q", path)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return "", errors.Wrapf(err, "Failed to store upload %q", h.Filename)
	}
	return path, out.Close()
}

// FormBool reads a checkbox style form value; missing means def.
func FormBool(r *http.Request, key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(r.FormValue(key)))
	switch v {
	case "":
		return def
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
