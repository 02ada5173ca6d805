package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/xsg_export/config"
	"github.com/mogaika/xsg_export/material"
	"github.com/mogaika/xsg_export/scene"
)

func staticConfig() *config.Config {
	cfg := config.Default()
	cfg.Animation.Enabled = false
	return cfg
}

func cubeScene(t *testing.T) *scene.Scene {
	t.Helper()
	s := scene.New("cubes")
	s.SourcePath = filepath.Join(t.TempDir(), "cubes.yaml")

	root := s.Add(&scene.Object{Name: "root", Type: scene.TypeEmpty, Transform: mgl64.Translate3D(1, 2, 3)}, nil)
	cube := scene.Cube(1)
	cube.CalcNormals()
	s.Add(&scene.Object{Name: "cube", Type: scene.TypeMesh, Mesh: cube}, root)
	s.Add(&scene.Object{Name: "cam", Type: scene.TypeCamera, Camera: &scene.Camera{}}, nil)
	s.Add(&scene.Object{Name: "ghost", Type: scene.TypeEmpty, Hidden: true}, nil)
	return s
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunWritesScene(t *testing.T) {
	s := cubeScene(t)
	out := filepath.Join(t.TempDir(), "out", "cubes.xsg")

	report, err := New(staticConfig()).Run(context.Background(), s, out)
	require.NoError(t, err)
	assert.Equal(t, []string{out}, report.Files)
	assert.Equal(t, 3, report.Nodes)
	assert.Equal(t, 1, report.Meshes)
	assert.Equal(t, 1, report.Materials)
	assert.Empty(t, report.Problems)

	text := readFile(t, out)
	assert.True(t, strings.HasPrefix(text, "<?xml version=\"1.0\"?>\n<xsg version=\"0.99\">\n<scene ambient=\"0.25 0.25 0.25\">\n"), text)
	assert.True(t, strings.HasSuffix(text, "</scene>\n</xsg>\n"))
	assert.Contains(t, text, `<material id="default"`)
	assert.Contains(t, text, "<camera/>")
	assert.NotContains(t, text, "ghost")

	// cube is nested inside root
	rootAt := strings.Index(text, `<node id="root"`)
	cubeAt := strings.Index(text, `<node id="cube"`)
	camAt := strings.Index(text, `<node id="cam"`)
	require.True(t, rootAt >= 0 && cubeAt >= 0 && camAt >= 0)
	assert.Less(t, camAt, rootAt)
	assert.Less(t, rootAt, cubeAt)
}

func TestRunSelectedOnly(t *testing.T) {
	s := cubeScene(t)
	s.Object("cube").Selected = true
	cfg := staticConfig()
	cfg.Export.SelectedOnly = true
	out := filepath.Join(t.TempDir(), "sel.xsg")

	report, err := New(cfg).Run(context.Background(), s, out)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Nodes)

	text := readFile(t, out)
	assert.Contains(t, text, `<node id="cube"`)
	assert.NotContains(t, text, `<node id="root"`)
}

func TestRunSeparate(t *testing.T) {
	s := scene.New("parts")
	s.SourcePath = filepath.Join(t.TempDir(), "parts.yaml")
	s.Add(&scene.Object{Name: "a", Type: scene.TypeEmpty, Transform: mgl64.Translate3D(5, 0, 0)}, nil)
	s.Add(&scene.Object{Name: "b/c", Type: scene.TypeEmpty}, nil)

	cfg := staticConfig()
	cfg.Export.Separate = true
	dir := t.TempDir()

	report, err := New(cfg).Run(context.Background(), s, filepath.Join(dir, "ignored.xsg"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.xsg"), filepath.Join(dir, "b_c.xsg")}, report.Files)

	// translation is cleared in separate mode
	text := readFile(t, filepath.Join(dir, "a.xsg"))
	assert.Contains(t, text, `<node id="a" transform="1.000000 0.000000 0.000000  0.000000 1.000000 0.000000  0.000000 0.000000 1.000000  0.000000 0.000000 0.000000  ">`)
	_, err = os.Stat(filepath.Join(dir, "ignored.xsg"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunProblems(t *testing.T) {
	s := scene.New("bad")
	s.SourcePath = filepath.Join(t.TempDir(), "bad.yaml")

	s.Add(&scene.Object{Name: "curve", Type: scene.TypeUnsupported, Properties: map[string]string{"type": "CURVE"}}, nil)

	m := scene.Cube(1)
	m.AddPolygon([]int{0, 1}, 0, false)
	m.CalcNormals()
	s.Add(&scene.Object{Name: "broken", Type: scene.TypeMesh, Mesh: m}, nil)

	arm := &scene.Armature{}
	arm.AddBone("root", -1, mgl64.Ident4())
	rig := s.Add(&scene.Object{Name: "rig", Type: scene.TypeArmature, Armature: arm}, nil)
	body := scene.Cube(1)
	body.CalcNormals()
	for i := range body.Vertices {
		body.Vertices[i].Groups = []scene.GroupWeight{{Group: 1, Weight: 1}}
	}
	s.Add(&scene.Object{
		Name:              "body",
		Type:              scene.TypeMesh,
		Mesh:              body,
		ArmatureModifiers: []*scene.Object{rig},
		VertexGroups:      []string{"root", "missing"},
	}, rig)
	stray := scene.Cube(1)
	stray.CalcNormals()
	s.Add(&scene.Object{
		Name:              "stray",
		Type:              scene.TypeMesh,
		Mesh:              stray,
		ArmatureModifiers: []*scene.Object{rig},
		VertexGroups:      []string{"nope"},
	}, nil)

	report, err := New(staticConfig()).Run(context.Background(), s, filepath.Join(t.TempDir(), "bad.xsg"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(UnsupportedNodeType))
	assert.Equal(t, 1, report.Count(DegeneratePolygon))
	assert.Equal(t, 1, report.Count(ZeroWeightVertex))
	assert.Equal(t, 1, report.Count(MissingBone))

	var unsupported *Problem
	for _, p := range report.Problems {
		if p.Kind == UnsupportedNodeType {
			unsupported = p
		}
	}
	require.NotNil(t, unsupported)
	assert.Equal(t, "curve", unsupported.Object)
	assert.Contains(t, unsupported.Detail, "CURVE")
}

func TestRunMissingTexture(t *testing.T) {
	s := scene.New("tex")
	s.SourcePath = filepath.Join(t.TempDir(), "tex.yaml")

	g := &scene.ShaderGraph{}
	bsdf := g.Add(scene.NewPrincipledNode(mgl64.Vec3{1, 1, 1}))
	tex := g.Add(scene.NewTexImageNode("//nowhere.png", "REPEAT"))
	require.NoError(t, g.Connect(tex, 0, bsdf, "Base Color"))

	m := scene.Cube(1)
	m.CalcNormals()
	m.Materials = []*scene.Material{{Name: "paint", Graph: g}, nil}
	s.Add(&scene.Object{Name: "box", Type: scene.TypeMesh, Mesh: m}, nil)

	out := filepath.Join(t.TempDir(), "tex.xsg")
	report, err := New(staticConfig()).Run(context.Background(), s, out)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(UnresolvedTexture))
	assert.Equal(t, 2, report.Materials)

	text := readFile(t, out)
	assert.Contains(t, text, `<material id="paint">`)
	assert.Contains(t, text, `<material id="default_1">`)
}

func TestRunReferences(t *testing.T) {
	srcDir := t.TempDir()
	s := scene.New("main")
	s.SourcePath = filepath.Join(srcDir, "main.yaml")
	s.Add(&scene.Object{
		Name:       "tree_ref",
		Type:       scene.TypeEmpty,
		Instance:   &scene.Instance{Library: "//lib/tree.yaml"},
		Properties: map[string]string{PropertyObject: `<lod level="1"/>`},
	}, nil)
	s.Add(&scene.Object{
		Name:     "broken_ref",
		Type:     scene.TypeEmpty,
		Instance: &scene.Instance{Library: "//lib/missing.yaml"},
	}, nil)

	loaded := make([]string, 0)
	e := New(staticConfig())
	e.Loader = func(path string) (*scene.Scene, error) {
		loaded = append(loaded, path)
		if filepath.Base(path) != "tree.yaml" {
			return nil, errors.Errorf("no such library")
		}
		lib := scene.New("tree")
		lib.SourcePath = path
		lib.Add(&scene.Object{Name: "trunk", Type: scene.TypeEmpty}, nil)
		// cycle back to the root scene
		lib.Add(&scene.Object{Name: "back", Type: scene.TypeEmpty, Instance: &scene.Instance{Library: "//../main.yaml"}}, nil)
		return lib, nil
	}

	outDir := t.TempDir()
	report, err := e.Run(context.Background(), s, filepath.Join(outDir, "main.xsg"))
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Equal(t, 1, report.Count(UnresolvedReference))
	assert.Contains(t, report.Files, filepath.Join(outDir, "lib", "tree.xsg"))

	text := readFile(t, filepath.Join(outDir, "main.xsg"))
	assert.Contains(t, text, "<object src=\"lib/tree.xsg\">\n\t\t\t<lod level=\"1\"/>\n\t\t</>")
	assert.Contains(t, text, `<object src="lib/missing.xsg"/>`)

	lib := readFile(t, filepath.Join(outDir, "lib", "tree.xsg"))
	assert.Contains(t, lib, `<node id="trunk"`)
	assert.Contains(t, lib, `<object src="../main.xsg"/>`)
}

func TestRunReferencesDisabled(t *testing.T) {
	s := scene.New("main")
	s.SourcePath = filepath.Join(t.TempDir(), "main.yaml")
	s.Add(&scene.Object{Name: "ref", Type: scene.TypeEmpty, Instance: &scene.Instance{Library: "//lib.yaml"}}, nil)

	cfg := staticConfig()
	cfg.Export.ExportReferences = false
	out := filepath.Join(t.TempDir(), "main.xsg")
	_, err := New(cfg).Run(context.Background(), s, out)
	require.NoError(t, err)
	assert.NotContains(t, readFile(t, out), "<object")
}

func TestRunAnimation(t *testing.T) {
	s := scene.New("anim")
	s.SourcePath = filepath.Join(t.TempDir(), "anim.yaml")
	s.Timeline = scene.NewTimeline(1, 11, 10, 1)
	box := s.Add(&scene.Object{Name: "box", Type: scene.TypeEmpty}, nil)
	box.Action = scene.NewAction("slide")
	box.Action.Ensure("").Translation = []scene.VecKey{
		{Frame: 1, Value: mgl64.Vec3{0, 0, 0}},
		{Frame: 11, Value: mgl64.Vec3{0, 10, 0}},
	}
	s.Library = []*scene.Action{box.Action}

	out := filepath.Join(t.TempDir(), "anim.xsg")
	report, err := New(config.Default()).Run(context.Background(), s, out)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sets)
	assert.Equal(t, 1, report.Channels)

	text := readFile(t, out)
	assert.Contains(t, text, `<animation period="1" seq="l">`)
	assert.Contains(t, text, `<channel id="box" target="node">`)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(staticConfig()).Run(ctx, cubeScene(t), filepath.Join(t.TempDir(), "c.xsg"))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFBXPreview(t *testing.T) {
	cfg := staticConfig()
	cfg.Export.FBXPreview = true
	out := filepath.Join(t.TempDir(), "cubes.xsg")

	report, err := New(cfg).Run(context.Background(), cubeScene(t), out)
	require.NoError(t, err)
	assert.Contains(t, report.Files, strings.TrimSuffix(out, ".xsg")+".fbx")
}

func TestReferenceID(t *testing.T) {
	dir := filepath.FromSlash("/scenes/level")
	assert.Equal(t, "props/crate.xsg", ReferenceID(dir, "//props/crate.blend"))
	assert.Equal(t, "props/crate.xsg", ReferenceID(dir, `//props\crate.blend`))
	assert.Equal(t, "../shared/tree.xsg", ReferenceID(dir, "//../shared/tree.blend"))
	assert.Equal(t, filepath.Join(dir, "props", "crate.blend"), LibraryPath(dir, "//props/crate.blend"))
}

func texturedCube(t *testing.T, image string) *scene.Mesh {
	t.Helper()
	g := &scene.ShaderGraph{}
	bsdf := g.Add(scene.NewPrincipledNode(mgl64.Vec3{1, 1, 1}))
	tex := g.Add(scene.NewTexImageNode(image, "REPEAT"))
	require.NoError(t, g.Connect(tex, 0, bsdf, "Base Color"))

	m := scene.Cube(1)
	m.CalcNormals()
	m.Materials = []*scene.Material{{Name: "paint", Graph: g}}
	return m
}

func TestRunRootsConfinePaths(t *testing.T) {
	base := t.TempDir()
	srcDir := filepath.Join(base, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "other"), 0755))
	secret := filepath.Join(base, "other", "secret.png")
	require.NoError(t, os.WriteFile(secret, []byte("not for download"), 0644))

	s := scene.New("main")
	s.SourcePath = filepath.Join(srcDir, "main.yaml")
	s.Add(&scene.Object{Name: "abs", Type: scene.TypeMesh, Mesh: texturedCube(t, secret)}, nil)
	s.Add(&scene.Object{Name: "ref", Type: scene.TypeEmpty, Instance: &scene.Instance{Library: "//../other/lib.yaml"}}, nil)

	loaded := 0
	e := New(staticConfig())
	e.Roots = []string{srcDir}
	e.Loader = func(path string) (*scene.Scene, error) {
		loaded++
		return nil, errors.Errorf("unexpected load of %q", path)
	}

	outDir := filepath.Join(base, "out")
	report, err := e.Run(context.Background(), s, filepath.Join(outDir, "main.xsg"))
	require.NoError(t, err)
	assert.Equal(t, 0, loaded)
	assert.Equal(t, 1, report.Count(UnresolvedTexture))
	assert.Equal(t, 1, report.Count(UnresolvedReference))
	assert.Equal(t, 0, report.Textures)
	assert.NoFileExists(t, filepath.Join(outDir, "_image", "secret.png"))

	text := readFile(t, filepath.Join(outDir, "main.xsg"))
	assert.NotContains(t, text, "<object")
	assert.NotContains(t, text, "secret.png\"")
}

func TestRunUnwritableTextureDir(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "wood.png"), []byte("wood"), 0644))

	s := scene.New("wood")
	s.SourcePath = filepath.Join(srcDir, "wood.yaml")
	s.Add(&scene.Object{Name: "crate", Type: scene.TypeMesh, Mesh: texturedCube(t, "//wood.png")}, nil)

	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "_image"), nil, 0644))

	report, err := New(staticConfig()).Run(context.Background(), s, filepath.Join(outDir, "wood.xsg"))
	require.Error(t, err)
	assert.Equal(t, 0, report.Count(UnresolvedTexture))
	assert.NoFileExists(t, filepath.Join(outDir, "wood.xsg"))
}

func TestRunUserDefaultMaterial(t *testing.T) {
	s := scene.New("defaults")
	s.SourcePath = filepath.Join(t.TempDir(), "defaults.yaml")

	painted := scene.Cube(1)
	painted.CalcNormals()
	painted.Materials = []*scene.Material{{Name: material.DefaultID, DiffuseColor: mgl64.Vec3{1, 0, 0}, DiffuseIntensity: 1}}
	s.Add(&scene.Object{Name: "painted", Type: scene.TypeMesh, Mesh: painted}, nil)

	bare := scene.Cube(1)
	bare.CalcNormals()
	s.Add(&scene.Object{Name: "bare", Type: scene.TypeMesh, Mesh: bare}, nil)

	out := filepath.Join(t.TempDir(), "defaults.xsg")
	report, err := New(staticConfig()).Run(context.Background(), s, out)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Materials)
	assert.Equal(t, 1, strings.Count(readFile(t, out), `<material id="default">`))
}
