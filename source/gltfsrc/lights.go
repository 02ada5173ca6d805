package gltfsrc

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/ext/lightspuntual"

	"github.com/mogaika/xsg_export/scene"
)

const lightsExtension = "KHR_lights_punctual"

// light resolves the punctual light referenced by node n.
func (l *loader) light(n *gltf.Node) (*scene.Light, error) {
	idx, ok := n.Extensions[lightsExtension].(lightspuntual.LightIndex)
	if !ok {
		return nil, errors.Errorf("node %q: malformed %s", n.Name, lightsExtension)
	}
	lights, ok := l.doc.Extensions[lightsExtension].(lightspuntual.Lights)
	if !ok || int(idx) >= len(lights) {
		return nil, errors.Errorf("node %q: light %d not defined", n.Name, idx)
	}
	src := lights[idx]

	light := &scene.Light{
		Type:           scene.LightPoint,
		UseShadow:      true,
		ClipStart:      0.05,
		CutoffDistance: 40,
		ShadowSoftSize: 0.25,
	}
	c := src.ColorOrDefault()
	light.Color = mgl64.Vec3{float64(c[0]), float64(c[1]), float64(c[2])}
	if src.Range != nil && *src.Range > 0 && !math.IsInf(float64(*src.Range), 0) {
		light.CutoffDistance = float64(*src.Range)
	}

	switch src.Type {
	case lightspuntual.TypeDirectional:
		light.Type = scene.LightSun
	case lightspuntual.TypeSpot:
		light.Type = scene.LightSpot
		outer := math.Pi / 4
		inner := 0.0
		if src.Spot != nil {
			inner = float64(src.Spot.InnerConeAngle)
			if src.Spot.OuterConeAngle != nil {
				outer = float64(*src.Spot.OuterConeAngle)
			}
		}
		light.SpotSize = 2 * outer
		if outer > 0 {
			light.SpotBlend = (outer - inner) / outer
		}
	}
	return light, nil
}
