package export

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/utils"
)

// UnresolvedReference is reported when a linked library cannot be loaded.
const UnresolvedReference = "UnresolvedReference"

type reference struct {
	source string
	target string
}

// referenceQueue collects linked libraries met while exporting. Output files
// mirror the library layout relative to the root scene directory.
type referenceQueue struct {
	rootSource string
	rootOutput string
	roots      []string
	pending    []reference
	seen       map[string]bool
}

func newReferenceQueue(rootSource, rootOutput string) *referenceQueue {
	return &referenceQueue{
		rootSource: rootSource,
		rootOutput: rootOutput,
		seen:       make(map[string]bool),
	}
}

// LibraryPath resolves a library path as written in the scene. A leading
// "//" and other relative paths are taken from sourceDir.
func LibraryPath(sourceDir, library string) string {
	p := strings.ReplaceAll(library, "\\", "/")
	p = strings.TrimPrefix(p, "//")
	p = filepath.FromSlash(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(sourceDir, p)
	}
	return filepath.Clean(p)
}

// ReferenceID is the src attribute of a reference: the library path relative
// to the referencing scene with the extension replaced by .xsg.
func ReferenceID(sourceDir, library string) string {
	abs := LibraryPath(sourceDir, library)
	rel, err := filepath.Rel(sourceDir, abs)
	if err != nil {
		rel = filepath.Base(abs)
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + ".xsg"
}

// add queues library for export and returns its src attribute. Libraries
// outside the roots are refused.
func (q *referenceQueue) add(sourceDir, library string) (string, bool) {
	abs := LibraryPath(sourceDir, library)
	if len(q.roots) != 0 && !utils.WithinAny(q.roots, abs) {
		return "", false
	}
	if !q.seen[abs] {
		q.seen[abs] = true
		q.pending = append(q.pending, reference{source: abs, target: q.targetFor(abs)})
	}
	return ReferenceID(sourceDir, library), true
}

func (q *referenceQueue) targetFor(abs string) string {
	rel, err := filepath.Rel(q.rootSource, abs)
	if err != nil {
		rel = filepath.Base(abs)
	}
	return filepath.Join(q.rootOutput, strings.TrimSuffix(rel, filepath.Ext(rel))+".xsg")
}

func (q *referenceQueue) pop() (reference, bool) {
	if len(q.pending) == 0 {
		return reference{}, false
	}
	r := q.pending[0]
	q.pending = q.pending[1:]
	return r, true
}

// exportReferences converts queued libraries until none are left. Libraries
// referencing each other are exported once.
func (e *Exporter) exportReferences(ctx context.Context, q *referenceQueue, report *Report) error {
	for {
		r, ok := q.pop()
		if !ok {
			return nil
		}
		if e.Loader == nil {
			logger.Debug("[export] linked library left unexported", zap.String("library", r.source))
			continue
		}
		sc, err := e.Loader(r.source)
		if err != nil {
			report.problem(UnresolvedReference, r.source, "%v", err)
			continue
		}
		logger.Info("[export] linked library", zap.String("library", r.source), zap.String("output", r.target))
		objects := make([]*scene.Object, 0, len(sc.Objects))
		for _, o := range sc.Objects {
			if !o.Hidden {
				objects = append(objects, o)
			}
		}
		if err := e.convert(ctx, sc, objects, r.target, 0, report, q); err != nil {
			return err
		}
	}
}
