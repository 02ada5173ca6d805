// Package export drives a whole scene conversion: it picks the objects,
// builds geometry, skins, materials and animation sets, and writes XSG files.
package export

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/anim"
	"github.com/mogaika/xsg_export/config"
	"github.com/mogaika/xsg_export/fbxout"
	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/material"
	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/status"
	"github.com/mogaika/xsg_export/utils"
	"github.com/mogaika/xsg_export/xsg"
)

// Custom properties holding raw markup.
const (
	PropertyScene  = "xsg.scene"
	PropertyObject = "xsg.object"
)

// Loader opens a linked library scene.
type Loader func(path string) (*scene.Scene, error)

type Exporter struct {
	cfg *config.Config
	// Loader is used to export linked libraries. Nil leaves them unexported.
	Loader Loader
	// Roots, when set, confine texture and library paths named inside the
	// scene. Anything outside is reported as unresolved.
	Roots []string
}

func New(cfg *config.Config) *Exporter {
	return &Exporter{cfg: cfg}
}

// Run exports sc into outPath, or into one file per object next to outPath
// in separate mode. Linked libraries are exported after the main scene.
func (e *Exporter) Run(ctx context.Context, sc *scene.Scene, outPath string) (*Report, error) {
	if err := config.SetEncoding(e.cfg.Export.Encoding); err != nil {
		return nil, err
	}

	report := newReport()
	refs := newReferenceQueue(filepath.Dir(sc.SourcePath), filepath.Dir(outPath))
	refs.roots = e.Roots
	refs.seen[filepath.Clean(sc.SourcePath)] = true
	objects := e.exportList(sc)

	logger.Info("[export] convert scene", zap.String("source", sc.SourcePath), zap.String("output", outPath),
		zap.Int("objects", len(objects)), zap.Bool("separate", e.cfg.Export.Separate))

	if e.cfg.Export.Separate {
		dir := filepath.Dir(outPath)
		for _, o := range objects {
			path := filepath.Join(dir, utils.FileName(o.Name)+".xsg")
			if err := e.convert(ctx, sc, []*scene.Object{o}, path, xsg.FlagSeparate, report, refs); err != nil {
				return report, err
			}
		}
	} else {
		if err := e.convert(ctx, sc, objects, outPath, 0, report, refs); err != nil {
			return report, err
		}
	}

	if err := e.exportReferences(ctx, refs, report); err != nil {
		return report, err
	}

	status.Info("[export] done: %d files, %d problems", len(report.Files), len(report.Problems))
	return report, nil
}

// exportList returns visible objects, limited to the selection when configured.
func (e *Exporter) exportList(sc *scene.Scene) []*scene.Object {
	list := sc.Objects
	if e.cfg.Export.SelectedOnly {
		list = sc.Selected()
	}
	result := make([]*scene.Object, 0, len(list))
	for _, o := range list {
		if !o.Hidden {
			result = append(result, o)
		}
	}
	return result
}

// conversion is the state of writing one XSG file.
type conversion struct {
	cfg       *config.Config
	report    *Report
	refs      *referenceQueue
	sourceDir string

	textures  *material.TextureStore
	flattener *material.Flattener

	materials    []*material.Material
	materialIDs  map[string]bool
	needsDefault bool

	nodes map[*scene.Object]*xsg.Node
}

func (e *Exporter) convert(ctx context.Context, sc *scene.Scene, objects []*scene.Object, outPath string, flags int, report *Report, refs *referenceQueue) error {
	outDir := filepath.Dir(outPath)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return errors.Wrapf(err, "Failed to create output directory %q", outDir)
	}

	c := &conversion{
		cfg:         e.cfg,
		report:      report,
		refs:        refs,
		sourceDir:   filepath.Dir(sc.SourcePath),
		textures:    material.NewTextureStore(filepath.Dir(sc.SourcePath), outDir, e.cfg.Texture),
		materialIDs: make(map[string]bool),
		nodes:       make(map[*scene.Object]*xsg.Node),
	}
	c.textures.Roots = e.Roots
	c.flattener = material.NewFlattener(c.textures)

	for i, o := range objects {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "Export of %q interrupted", outPath)
		}
		status.Progress(float32(i)/float32(len(objects)), "[export] %s", o.Name)
		if n := c.node(o); n != nil {
			c.nodes[o] = n
		}
		if err := c.flattener.Err(); err != nil {
			return errors.Wrapf(err, "Failed to export textures of %q", o.Name)
		}
	}

	doc := &xsg.Document{
		Ambient: sc.World.Ambient,
		Nodes:   c.link(),
	}
	if doc.Ambient == nil {
		a := mgl64.Vec3{e.cfg.Export.DefaultAmbient, e.cfg.Export.DefaultAmbient, e.cfg.Export.DefaultAmbient}
		doc.Ambient = &a
	}
	if text, ok := sc.World.Properties[PropertyScene]; ok {
		doc.Extra = append(doc.Extra, text)
	}
	if text, ok := sc.Properties[PropertyScene]; ok {
		doc.Extra = append(doc.Extra, text)
	}
	doc.Materials = c.materials
	if c.needsDefault && !c.materialIDs[material.DefaultID] {
		doc.Materials = append(doc.Materials, material.Default())
	}

	if e.cfg.Animation.Enabled {
		sets, err := anim.BuildSets(ctx, sc, c.animated(), anim.OptionsFromConfig(e.cfg, sc.Timeline))
		if err != nil {
			return err
		}
		doc.Animations = sets
		for _, s := range sets {
			report.Channels += s.Channels()
		}
		report.Sets += len(sets)
	}

	if err := writeFile(outPath, doc, flags); err != nil {
		return err
	}
	report.Files = append(report.Files, outPath)
	report.Materials += len(doc.Materials)
	report.Textures += len(c.textures.Exported())

	if e.cfg.Export.FBXPreview {
		fbxPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".fbx"
		if err := fbxout.WriteFile(fbxPath, doc); err != nil {
			return err
		}
		report.Files = append(report.Files, fbxPath)
	}

	logger.Info("[export] written", zap.String("file", outPath), zap.Int("nodes", len(c.nodes)),
		zap.Int("materials", len(doc.Materials)), zap.Int("sets", len(doc.Animations)))
	return nil
}

func writeFile(path string, doc *xsg.Document, flags int) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", path)
	}
	if err := xsg.Write(f, doc, flags); err != nil {
		f.Close()
		return errors.Wrapf(err, "Failed to write %q", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "Failed to close %q", path)
	}
	return nil
}

// link attaches exported children to their exported parents and returns
// the roots: nodes whose parent is not exported.
func (c *conversion) link() []*xsg.Node {
	roots := make([]*xsg.Node, 0)
	for o, n := range c.nodes {
		for _, child := range o.SortedChildren() {
			if cn, ok := c.nodes[child]; ok {
				n.Children = append(n.Children, cn)
			}
		}
		if _, ok := c.nodes[o.Parent]; o.Parent == nil || !ok {
			roots = append(roots, n)
		}
	}
	sort.SliceStable(roots, func(i, j int) bool { return roots[i].ID < roots[j].ID })
	return roots
}

// animated returns exported objects ordered by name.
func (c *conversion) animated() []*scene.Object {
	objects := make([]*scene.Object, 0, len(c.nodes))
	for o := range c.nodes {
		objects = append(objects, o)
	}
	return scene.SortByName(objects)
}
