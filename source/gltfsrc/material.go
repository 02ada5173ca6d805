package gltfsrc

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/scene"
)

// material converts material mi into a Principled BSDF graph the way an
// importing DCC tool would build it.
func (l *loader) material(mi uint32) (*scene.Material, error) {
	if m, ok := l.materials[mi]; ok {
		return m, nil
	}
	if int(mi) >= len(l.doc.Materials) {
		return nil, errors.Errorf("material %d out of range", mi)
	}
	src := l.doc.Materials[mi]

	name := src.Name
	if name == "" {
		name = fmt.Sprintf("Material_%d", mi)
	}
	g := &scene.ShaderGraph{}
	m := &scene.Material{
		Name:              name,
		Graph:             g,
		DiffuseColor:      mgl64.Vec3{0.8, 0.8, 0.8},
		DiffuseIntensity:  1,
		SpecularColor:     mgl64.Vec3{1, 1, 1},
		SpecularIntensity: 0.5,
	}

	base := mgl64.Vec3{1, 1, 1}
	pbr := src.PBRMetallicRoughness
	if pbr != nil && pbr.BaseColorFactor != nil {
		f := *pbr.BaseColorFactor
		base = mgl64.Vec3{float64(f[0]), float64(f[1]), float64(f[2])}
	}
	m.DiffuseColor = base

	out := g.Add(scene.NewOutputNode())
	bsdf := g.Add(scene.NewPrincipledNode(base))
	if err := g.Connect(bsdf, 0, out, "Surface"); err != nil {
		return nil, err
	}

	if pbr != nil {
		if pbr.MetallicFactor != nil {
			g.Nodes[bsdf].Input("Metallic").Default = mgl64.Vec4{float64(*pbr.MetallicFactor)}
		}
		if pbr.RoughnessFactor != nil {
			g.Nodes[bsdf].Input("Roughness").Default = mgl64.Vec4{float64(*pbr.RoughnessFactor)}
		}
		if pbr.BaseColorTexture != nil {
			tex, err := l.texture(g, pbr.BaseColorTexture.Index, pbr.BaseColorTexture.TexCoord)
			if err != nil {
				return nil, err
			}
			if tex >= 0 {
				from := tex
				if base != (mgl64.Vec3{1, 1, 1}) {
					mix := g.Add(scene.NewMixRGBNode("MULTIPLY"))
					g.Nodes[mix].Input("Fac").Default = mgl64.Vec4{1}
					rgb := g.Add(scene.NewRGBNode(base))
					if err := connectAll(g,
						link{rgb, 0, mix, "Color1"},
						link{tex, 0, mix, "Color2"}); err != nil {
						return nil, err
					}
					from = mix
				}
				if err := g.Connect(from, 0, bsdf, "Base Color"); err != nil {
					return nil, err
				}
			}
		}
	}

	emissive := mgl64.Vec3{float64(src.EmissiveFactor[0]), float64(src.EmissiveFactor[1]), float64(src.EmissiveFactor[2])}
	if emissive != (mgl64.Vec3{}) {
		g.Nodes[bsdf].Input("Emission").Default = emissive.Vec4(1)
	}
	if src.EmissiveTexture != nil {
		tex, err := l.texture(g, src.EmissiveTexture.Index, src.EmissiveTexture.TexCoord)
		if err != nil {
			return nil, err
		}
		if tex >= 0 {
			if err := g.Connect(tex, 0, bsdf, "Emission"); err != nil {
				return nil, err
			}
		}
	}

	if nt := src.NormalTexture; nt != nil && nt.Index != nil {
		tex, err := l.texture(g, *nt.Index, nt.TexCoord)
		if err != nil {
			return nil, err
		}
		if tex >= 0 {
			strength := 1.0
			if nt.Scale != nil {
				strength = float64(*nt.Scale)
			}
			nm := g.Add(scene.NewNormalMapNode(strength))
			if err := connectAll(g,
				link{tex, 0, nm, "Color"},
				link{nm, 0, bsdf, "Normal"}); err != nil {
				return nil, err
			}
		}
	}

	m = l.sc.AddMaterial(m)
	l.materials[mi] = m
	return m, nil
}

type link struct {
	from, output, to int
	input            string
}

func connectAll(g *scene.ShaderGraph, links ...link) error {
	for _, k := range links {
		if err := g.Connect(k.from, k.output, k.to, k.input); err != nil {
			return err
		}
	}
	return nil
}

// texture adds an image texture node for texture ti and returns its index,
// or -1 when the texture has no usable image.
func (l *loader) texture(g *scene.ShaderGraph, ti uint32, texCoord uint32) (int, error) {
	if int(ti) >= len(l.doc.Textures) {
		return -1, errors.Errorf("texture %d out of range", ti)
	}
	t := l.doc.Textures[ti]
	if t.Source == nil || int(*t.Source) >= len(l.doc.Images) {
		logger.Warn("[gltf] texture without image", zap.Uint32("texture", ti))
		return -1, nil
	}
	path, err := l.imagePath(*t.Source)
	if err != nil {
		return -1, err
	}

	extension := "REPEAT"
	if t.Sampler != nil && int(*t.Sampler) < len(l.doc.Samplers) {
		s := l.doc.Samplers[*t.Sampler]
		if s.WrapS == gltf.WrapClampToEdge && s.WrapT == gltf.WrapClampToEdge {
			extension = "CLIP"
		}
	}
	tex := g.Add(scene.NewTexImageNode(path, extension))

	if texCoord != 0 {
		uv := g.Add(scene.NewUVMapNode(uvLayerName(int(texCoord))))
		if err := g.Connect(uv, 0, tex, "Vector"); err != nil {
			return -1, err
		}
	}
	return tex, nil
}

var mimeExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// ImageDir is the scratch directory receiving the embedded images of the
// scene at path. Scenes with equal names in different places do not share it.
func ImageDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	h := fnv.New32a()
	h.Write([]byte(abs))
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(os.TempDir(), "xsg_export", fmt.Sprintf("%s_%08x", base, h.Sum32()))
}

// imagePath returns a source relative path for external images. Embedded
// images are extracted into a scratch directory and referenced absolutely.
func (l *loader) imagePath(ii uint32) (string, error) {
	img := l.doc.Images[ii]
	if img.URI != "" && !img.IsEmbeddedResource() {
		uri, err := url.PathUnescape(img.URI)
		if err != nil {
			uri = img.URI
		}
		return "//" + uri, nil
	}

	var data []byte
	var err error
	if img.BufferView != nil {
		if int(*img.BufferView) >= len(l.doc.BufferViews) {
			return "", errors.Errorf("image %d buffer view out of range", ii)
		}
		data, err = modeler.ReadBufferView(l.doc, l.doc.BufferViews[*img.BufferView])
	} else {
		data, err = img.MarshalData()
	}
	if err != nil {
		return "", errors.Wrapf(err, "Failed to read embedded image %d", ii)
	}

	if l.imageDir == "" {
		l.imageDir = ImageDir(l.path)
		if err := os.MkdirAll(l.imageDir, 0755); err != nil {
			return "", errors.Wrapf(err, "Failed to create image dir")
		}
	}

	name := img.Name
	if name == "" {
		name = fmt.Sprintf("image_%d", ii)
	}
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	if filepath.Ext(name) == "" {
		name += mimeExtensions[img.MimeType]
	}
	path := filepath.Join(l.imageDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrapf(err, "Failed to extract image %q", path)
	}
	logger.Debug("[gltf] embedded image extracted", zap.String("path", path), zap.Int("size", len(data)))
	return path, nil
}
