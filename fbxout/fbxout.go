// Package fbxout writes a binary FBX preview of a converted document so the
// result can be inspected in common DCC tools.
package fbxout

import (
	"io"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/coord"
	"github.com/mogaika/xsg_export/geometry"
	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/material"
	"github.com/mogaika/xsg_export/utils"
	"github.com/mogaika/xsg_export/xsg"
)

const (
	creator            = "FBX SDK/FBX Plugins version 2013.3 build=20121223"
	applicationVendor  = "mogaika"
	applicationName    = "xsg_export"
	applicationVersion = "1.0"
	dateTimeGMT        = "01/01/1970 00:00:00.000"
	creationTime       = "1970-01-01 10:00:00:000"
)

var fileID = []byte{
	0x28, 0xb3, 0x2a, 0xeb, 0xb6, 0x24, 0xcc, 0xc2,
	0xbf, 0xc8, 0xb0, 0x2a, 0xa9, 0x2b, 0xfc, 0xf1}

// Builder accumulates FBX objects and connections for one document.
type Builder struct {
	f      *fbx.FBX
	lastID int64

	objects     *fbx.Node
	connections *fbx.Node

	materials map[string]int64
}

func NewBuilder(filename string) *Builder {
	b := &Builder{
		f:           fbx.NewFBX(7400),
		lastID:      1000000,
		objects:     bfbx73.Objects(),
		connections: bfbx73.Connections(),
		materials:   make(map[string]int64),
	}
	b.createHeaders(filename)
	return b
}

func (b *Builder) Root() *fbx.Node { return &b.f.Root }

func (b *Builder) GenerateID() int64 {
	b.lastID++
	return b.lastID
}

func (b *Builder) createHeaders(filename string) {
	b.Root().AddNodes(
		bfbx73.FBXHeaderExtension().AddNodes(
			bfbx73.FBXHeaderVersion(1003),
			bfbx73.FBXVersion(7400),
			bfbx73.EncryptionType(0),
			bfbx73.CreationTimeStamp().AddNodes(
				bfbx73.Version(1000),
				bfbx73.Year(1970),
				bfbx73.Month(1),
				bfbx73.Day(1),
				bfbx73.Hour(10),
				bfbx73.Minute(0),
				bfbx73.Second(0),
				bfbx73.Millisecond(0),
			),
			bfbx73.Creator(creator),
			bfbx73.SceneInfo("GlobalInfo\x00\x01SceneInfo", "UserData").AddNodes(
				bfbx73.Type("UserData"),
				bfbx73.Version(100),
				bfbx73.MetaData().AddNodes(
					bfbx73.Version(100),
					bfbx73.Title(""),
					bfbx73.Subject(""),
					bfbx73.Author(""),
					bfbx73.Keywords(""),
					bfbx73.Revision(""),
					bfbx73.Comment(""),
				),
				bfbx73.Properties70().AddNodes(
					bfbx73.P("DocumentUrl", "KString", "Url", "", filename),
					bfbx73.P("SrcDocumentUrl", "KString", "Url", "", filename),
					bfbx73.P("Original", "Compound", "", ""),
					bfbx73.P("Original|ApplicationVendor", "KString", "", "", applicationVendor),
					bfbx73.P("Original|ApplicationName", "KString", "", "", applicationName),
					bfbx73.P("Original|ApplicationVersion", "KString", "", "", applicationVersion),
					bfbx73.P("Original|DateTime_GMT", "DateTime", "", "", dateTimeGMT),
					bfbx73.P("Original|FileName", "KString", "", "", filepath.Base(filename)),
				),
			),
		),
		bfbx73.FileId(fileID),
		bfbx73.CreationTime(creationTime),
		bfbx73.Creator(creator),
		// geometry stays in the source Z-up right-handed space
		bfbx73.GlobalSettings().AddNodes(
			bfbx73.Version(1000),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("UpAxis", "int", "Integer", "", int32(2)),
				bfbx73.P("UpAxisSign", "int", "Integer", "", int32(1)),
				bfbx73.P("FrontAxis", "int", "Integer", "", int32(1)),
				bfbx73.P("FrontAxisSign", "int", "Integer", "", int32(-1)),
				bfbx73.P("CoordAxis", "int", "Integer", "", int32(0)),
				bfbx73.P("CoordAxisSign", "int", "Integer", "", int32(1)),
				bfbx73.P("OriginalUpAxis", "int", "Integer", "", int32(2)),
				bfbx73.P("OriginalUpAxisSign", "int", "Integer", "", int32(1)),
				bfbx73.P("UnitScaleFactor", "double", "Number", "", float64(1)),
				bfbx73.P("OriginalUnitScaleFactor", "double", "Number", "", float64(1)),
				bfbx73.P("AmbientColor", "ColorRGB", "Color", "", float64(0), float64(0), float64(0)),
			),
		),
		bfbx73.Documents().AddNodes(
			bfbx73.Count(1),
			bfbx73.Document(b.GenerateID(), "Scene", "Scene").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("SourceObject", "object", "", ""),
					bfbx73.P("ActiveAnimStackName", "KString", "", "", ""),
				),
				bfbx73.RootNode(0),
			),
		),
		bfbx73.References(),
		bfbx73.Definitions().AddNodes(
			bfbx73.Version(100),
			bfbx73.Count(1),
			bfbx73.ObjectType("GlobalSettings").AddNodes(
				bfbx73.Count(1),
			),
			bfbx73.ObjectType("Model").AddNodes(
				bfbx73.Count(0),
				bfbx73.PropertyTemplate("FbxNode").AddNodes(
					bfbx73.Properties70().AddNodes(
						bfbx73.P("Show", "bool", "", "", int32(1)),
						bfbx73.P("Lcl Translation", "Lcl Translation", "", "A", float64(0), float64(0), float64(0)),
						bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A", float64(0), float64(0), float64(0)),
						bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A", float64(1), float64(1), float64(1)),
						bfbx73.P("Visibility", "Visibility", "", "A", float64(1)),
					),
				),
			),
			bfbx73.ObjectType("Material").AddNodes(
				bfbx73.Count(0),
				bfbx73.PropertyTemplate("FbxSurfaceLambert").AddNodes(
					bfbx73.Properties70().AddNodes(
						bfbx73.P("ShadingModel", "KString", "", "", "Lambert"),
						bfbx73.P("DiffuseColor", "Color", "", "A", float64(0.8), float64(0.8), float64(0.8)),
						bfbx73.P("DiffuseFactor", "Number", "", "A", float64(1)),
					),
				),
			),
			bfbx73.ObjectType("Geometry").AddNodes(
				bfbx73.Count(0),
				bfbx73.PropertyTemplate("FbxMesh").AddNodes(
					bfbx73.Properties70().AddNodes(
						bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
						bfbx73.P("Primary Visibility", "bool", "", "", int32(1)),
						bfbx73.P("Casts Shadows", "bool", "", "", int32(1)),
						bfbx73.P("Receive Shadows", "bool", "", "", int32(1)),
					),
				),
			),
			bfbx73.ObjectType("NodeAttribute").AddNodes(
				bfbx73.Count(0),
				bfbx73.PropertyTemplate("FbxNull").AddNodes(
					bfbx73.Properties70().AddNodes(
						bfbx73.P("Size", "double", "Number", "", float64(100)),
						bfbx73.P("Look", "enum", "", "", int32(1)),
					),
				),
			),
		),
		b.objects,
		b.connections,
		bfbx73.Takes().AddNodes(
			bfbx73.Current(""),
		),
	)
}

// countDefinitions fills Definitions counts from the collected objects.
func (b *Builder) countDefinitions() {
	counts := make(map[string]int32)
	for _, object := range b.objects.Nodes {
		counts[object.Name]++
	}

	definitions := b.Root().GetNode("Definitions")
	total := int32(1) // GlobalSettings
	for name, count := range counts {
		total += count

		var objectType *fbx.Node
		for _, ot := range definitions.GetNodes("ObjectType") {
			if ot.Properties[0].(string) == name {
				objectType = ot
			}
		}
		if objectType == nil {
			objectType = bfbx73.ObjectType(name)
			definitions.AddNode(objectType)
		}
		objectType.GetOrAddNode(bfbx73.Count(0)).Properties[0] = count
	}
	definitions.GetOrAddNode(bfbx73.Count(0)).Properties[0] = total
}

func (b *Builder) AddObjects(nodes ...*fbx.Node)     { b.objects.AddNodes(nodes...) }
func (b *Builder) AddConnections(nodes ...*fbx.Node) { b.connections.AddNodes(nodes...) }

// AddDocument adds every material and node of doc. Root nodes are attached
// to the scene root.
func (b *Builder) AddDocument(doc *xsg.Document) {
	for _, m := range doc.Materials {
		b.addMaterial(m)
	}
	for _, n := range doc.Nodes {
		b.addNode(n, 0)
	}
}

func (b *Builder) addMaterial(m *material.Material) {
	color := mgl64.Vec3{0.8, 0.8, 0.8}
	for _, p := range m.Parts {
		if c, ok := p.Input.(*material.Color); ok && p.ID == material.PartDiffuse {
			color = c.Value
		}
	}

	id := b.GenerateID()
	b.materials[m.ID] = id
	b.AddObjects(bfbx73.Material(id, m.ID+"\x00\x01Material", "").AddNodes(
		bfbx73.Version(102),
		bfbx73.ShadingModel("lambert"),
		bfbx73.MultiLayer(0),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("AmbientColor", "Color", "", "A", float64(0), float64(0), float64(0)),
			bfbx73.P("DiffuseColor", "Color", "", "A", color[0], color[1], color[2]),
			bfbx73.P("Diffuse", "Vector3D", "Vector", "", color[0], color[1], color[2]),
			bfbx73.P("Opacity", "double", "Number", "", float64(1)),
		),
	))
}

func modelProperties(t mgl64.Mat4) *fbx.Node {
	translation, rotation, scale := utils.Decompose(t)
	euler := utils.RadiansToDegreeV3(utils.QuatToEuler(rotation))
	return bfbx73.Properties70().AddNodes(
		bfbx73.P("InheritType", "enum", "", "", int32(1)),
		bfbx73.P("DefaultAttributeIndex", "int", "Integer", "", int32(0)),
		bfbx73.P("Lcl Translation", "Lcl Translation", "", "A", translation[0], translation[1], translation[2]),
		bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A", euler[0], euler[1], euler[2]),
		bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A", scale[0], scale[1], scale[2]),
	)
}

func (b *Builder) addNode(n *xsg.Node, parent int64) {
	id := b.GenerateID()
	props := modelProperties(coord.ConvertInverse(n.Transform))

	if n.Kind == xsg.NodeMesh && n.Mesh != nil {
		b.AddObjects(bfbx73.Model(id, n.ID+"\x00\x01Model", "Mesh").AddNodes(
			bfbx73.Version(232),
			props,
			bfbx73.Shading(true),
			bfbx73.Culling("CullingOff"),
		))
		geometryID := b.GenerateID()
		b.AddObjects(b.geometry(geometryID, n.Mesh.Buffer))
		b.AddConnections(bfbx73.C("OO", geometryID, id))
		for _, name := range n.Mesh.Materials {
			if materialID, ok := b.materials[name]; ok {
				b.AddConnections(bfbx73.C("OO", materialID, id))
			}
		}
	} else {
		b.AddObjects(bfbx73.Model(id, n.ID+"\x00\x01Model", "Null").AddNodes(
			bfbx73.Version(232),
			props,
			bfbx73.Shading(true),
			bfbx73.Culling("CullingOff"),
		))
		attributeID := b.GenerateID()
		b.AddObjects(bfbx73.NodeAttribute(attributeID, n.ID+"\x00\x01NodeAttribute", "Null").AddNodes(
			bfbx73.TypeFlags("Null"),
		))
		b.AddConnections(bfbx73.C("OO", attributeID, id))
	}
	b.AddConnections(bfbx73.C("OO", id, parent))

	for _, bone := range n.Bones {
		b.addNode(bone, id)
	}
	for _, child := range n.Children {
		b.addNode(child, id)
	}
}

// PolygonIndices lists the corners of every polygon. The last corner of a
// polygon is stored as -(index)-1.
func PolygonIndices(buf *geometry.Buffer) []int32 {
	indices := make([]int32, 0, len(buf.Polygons)*4)
	for _, p := range buf.Polygons {
		for k, v := range p.Vertices {
			if k == len(p.Vertices)-1 {
				indices = append(indices, -int32(v)-1)
			} else {
				indices = append(indices, int32(v))
			}
		}
	}
	return indices
}

func (b *Builder) geometry(id int64, buf *geometry.Buffer) *fbx.Node {
	vertices := make([]float64, 0, len(buf.Positions)*3)
	for _, p := range buf.Positions {
		vertices = append(vertices, p[0], p[1], p[2])
	}

	normals := make([]float64, 0)
	materials := make([]int32, 0, len(buf.Polygons))
	for _, p := range buf.Polygons {
		for _, ni := range p.Normals {
			n := buf.Normals[ni]
			normals = append(normals, n[0], n[1], n[2])
		}
		materials = append(materials, int32(p.Material))
	}

	layer := bfbx73.Layer(0).AddNodes(
		bfbx73.Version(100),
		bfbx73.LayerElement().AddNodes(
			bfbx73.Type("LayerElementNormal"),
			bfbx73.TypedIndex(0),
		),
		bfbx73.LayerElement().AddNodes(
			bfbx73.Type("LayerElementMaterial"),
			bfbx73.TypedIndex(0),
		),
	)

	g := bfbx73.Geometry(id, "\x00\x01Geometry", "Mesh").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
		),
		bfbx73.GeometryVersion(124),
		bfbx73.Vertices(vertices),
		bfbx73.PolygonVertexIndex(PolygonIndices(buf)),
		bfbx73.LayerElementNormal(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByPolygonVertex"),
			bfbx73.ReferenceInformationType("Direct"),
			bfbx73.Normals(normals),
		),
	)

	if buf.TexCoordSets() != 0 {
		uv := make([]float64, 0, len(buf.TexCoords[0])*2)
		for _, t := range buf.TexCoords[0] {
			uv = append(uv, t[0], t[1])
		}
		uvIndices := make([]int32, 0)
		for _, p := range buf.Polygons {
			for _, ti := range p.TexCoords[0] {
				uvIndices = append(uvIndices, int32(ti))
			}
		}
		g.AddNodes(bfbx73.LayerElementUV(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByPolygonVertex"),
			bfbx73.ReferenceInformationType("IndexToDirect"),
			bfbx73.UV(uv),
			bfbx73.UVIndex(uvIndices),
		))
		layer.AddNodes(bfbx73.LayerElement().AddNodes(
			bfbx73.Type("LayerElementUV"),
			bfbx73.TypedIndex(0),
		))
	}

	g.AddNodes(
		bfbx73.LayerElementMaterial(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByPolygon"),
			bfbx73.ReferenceInformationType("IndexToDirect"),
			bfbx73.Materials(materials),
		),
		layer,
	)
	return g
}

// Write encodes the collected scene to w.
func (b *Builder) Write(w io.Writer) error {
	b.countDefinitions()

	// the encoder needs a seekable stream
	tempFile, err := os.CreateTemp("", "xsgexport.*.fbx")
	if err != nil {
		return errors.Wrapf(err, "Unable to create temp file")
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	if err := fbx.Write(tempFile, b.f); err != nil {
		return errors.Wrapf(err, "Fbx encoding failed")
	}
	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "Unable to seek")
	}
	_, err = io.Copy(w, tempFile)
	return err
}

// WriteFile writes a preview of doc to path.
func WriteFile(path string, doc *xsg.Document) error {
	b := NewBuilder(path)
	b.AddDocument(doc)

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", path)
	}
	if err := b.Write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "Failed to write %q", path)
	}
	logger.Debug("[fbx] preview written", zap.String("file", path), zap.Int("objects", len(b.objects.Nodes)))
	return errors.Wrapf(f.Close(), "Failed to close %q", path)
}
