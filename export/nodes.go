package export

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/coord"
	"github.com/mogaika/xsg_export/geometry"
	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/material"
	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/skin"
	"github.com/mogaika/xsg_export/utils"
	"github.com/mogaika/xsg_export/xsg"
)

// node converts one object. Unsupported objects yield nil.
func (c *conversion) node(o *scene.Object) *xsg.Node {
	n := &xsg.Node{
		ID:        utils.SafeName(o.Name),
		Transform: coord.Convert(o.MatrixLocal()),
	}

	switch o.Type {
	case scene.TypeMesh:
		if o.Mesh == nil {
			n.Kind = xsg.NodeNull
			break
		}
		n.Kind = xsg.NodeMesh
		c.mesh(o, n)
	case scene.TypeEmpty:
		n.Kind = xsg.NodeNull
		if o.Instance != nil && c.cfg.Export.ExportReferences {
			src, ok := c.refs.add(c.sourceDir, o.Instance.Library)
			if !ok {
				c.report.problem(UnresolvedReference, o.Name, "library %q is outside the source directory", o.Instance.Library)
				break
			}
			n.Kind = xsg.NodeReference
			n.Reference = &xsg.Reference{Src: src}
			if text, ok := o.Property(PropertyObject); ok {
				n.Reference.Object = text
			}
		}
	case scene.TypeArmature:
		n.Kind = xsg.NodeSkin
		if o.Armature != nil {
			n.Bones = c.bones(o, o.Armature.Roots())
		}
	case scene.TypeCamera:
		n.Kind = xsg.NodeCamera
		n.Transform = coord.AdjustProjector(n.Transform)
	case scene.TypeLight:
		if o.Light == nil {
			c.report.problem(UnsupportedNodeType, o.Name, "light without light data")
			return nil
		}
		n.Kind = xsg.NodeLight
		n.Light = o.Light
		n.Transform = coord.AdjustProjector(n.Transform)
	default:
		detail := o.Type.String()
		if t, ok := o.Property("type"); ok {
			detail = t
		}
		c.report.problem(UnsupportedNodeType, o.Name, "object type %s", detail)
		return nil
	}

	c.report.Nodes++
	logger.Debug("[export] node", zap.String("name", o.Name), zap.Stringer("kind", n.Kind))
	return n
}

func (c *conversion) mesh(o *scene.Object, n *xsg.Node) {
	buf := geometry.Build(o.Mesh, c.cfg.Export.MaxTexCoordSets)
	if buf.Degenerate != 0 {
		c.report.problem(DegeneratePolygon, o.Name, "%d polygons with fewer than 3 vertices skipped", buf.Degenerate)
	}

	sk, err := skin.Build(o, o.Mesh)
	if err != nil {
		kind := MissingBone
		if errors.Cause(err) == skin.ErrMultipleArmatures {
			kind = MultipleArmatures
		}
		c.report.problem(kind, o.Name, "%v", err)
	}
	if sk != nil {
		// skinned vertices are placed in world space by their bones
		n.Transform = mgl64.Ident4()
		if len(sk.ZeroWeight) != 0 {
			c.report.problem(ZeroWeightVertex, o.Name, "%d vertices have no bone weight", len(sk.ZeroWeight))
		}
		if sk.MaxInfluences > c.report.MaxInfluences {
			c.report.MaxInfluences = sk.MaxInfluences
		}
	}

	names := geometry.SlotNames(o.Mesh)
	n.Mesh = &xsg.Mesh{Buffer: buf, Skin: sk, Materials: names}
	c.report.Meshes++

	if len(o.Mesh.Materials) == 0 {
		c.needsDefault = true
		return
	}
	for i, m := range o.Mesh.Materials {
		if c.materialIDs[names[i]] {
			continue
		}
		c.materialIDs[names[i]] = true
		if m == nil {
			placeholder := material.Default()
			placeholder.ID = names[i]
			c.materials = append(c.materials, placeholder)
			continue
		}
		c.materials = append(c.materials, c.flatten(m))
	}
}

func (c *conversion) flatten(m *scene.Material) *material.Material {
	out := c.flattener.Flatten(m)
	for _, issue := range c.flattener.Issues {
		c.report.problem(issue.Kind, issue.Material, "%s", issue.Detail)
	}
	c.flattener.Issues = c.flattener.Issues[:0]
	return out
}

// bones builds the bone node hierarchy from the current pose.
func (c *conversion) bones(o *scene.Object, indices []int) []*xsg.Node {
	arm := o.Armature
	result := make([]*xsg.Node, 0, len(indices))
	for _, i := range indices {
		b := &arm.Bones[i]
		pose := o.PoseMatrix(i)
		if b.Parent >= 0 {
			pose = o.PoseMatrix(b.Parent).Inv().Mul4(pose)
		}
		result = append(result, &xsg.Node{
			ID:        utils.SafeName(b.Name),
			Kind:      xsg.NodeNull,
			Transform: coord.Convert(pose),
			Children:  c.bones(o, b.Children),
		})
		c.report.Nodes++
	}
	return result
}
