package xsg

import (
	"strconv"
	"strings"

	"github.com/mogaika/xsg_export/coord"
	"github.com/mogaika/xsg_export/geometry"
	"github.com/mogaika/xsg_export/skin"
)

func (e *writer) mesh(m *Mesh) {
	e.line("<mesh>")
	e.tabsInc()

	if m.Skin != nil {
		for _, c := range m.Skin.Clusters {
			e.influence(c)
		}
	}

	b := m.Buffer
	e.fillTabs(0)
	e.print("<position>")
	for _, p := range b.Positions {
		v := coord.Vector(p)
		e.printf("%f %f %f  ", clean(v[0]), clean(v[1]), clean(v[2]))
	}
	e.print("</position>\n")

	e.fillTabs(0)
	e.print("<normal>")
	for _, n := range b.Normals {
		v := coord.Vector(n)
		e.printf("%f %f %f  ", clean(v[0]), clean(v[1]), clean(v[2]))
	}
	e.print("</normal>\n")

	for _, channel := range b.TexCoords {
		e.fillTabs(0)
		e.print("<texture>")
		for _, t := range channel {
			e.printf("%f %f  ", clean(t[0]), clean(t[1]))
		}
		e.print("</texture>\n")
	}

	for i, g := range b.Groups {
		name := geometry.DefaultMaterial
		if i < len(m.Materials) {
			name = m.Materials[i]
		}
		e.line(`<material id="%s">`, name)
		e.tabsInc()
		e.faces(4, &g.Quads)
		e.faces(3, &g.Triangles)
		e.tabsDec()
		e.line("</material>")
	}

	e.tabsDec()
	e.line("</mesh>")
}

func (e *writer) faces(arity int, s *geometry.IndexStreams) {
	if s.Empty() {
		return
	}
	e.line("<faces size=%d>", arity)
	e.tabsInc()
	e.indices("position", arity, s.Position)
	e.indices("normal", arity, s.Normal)
	for _, tc := range s.TexCoord {
		e.indices("texture", arity, tc)
	}
	e.tabsDec()
	e.line("</faces>")
}

// indices writes one face per group of arity values, faces separated by two spaces.
func (e *writer) indices(tag string, arity int, values []int) {
	e.fillTabs(0)
	e.printf("<%s>", tag)
	for i, v := range values {
		e.print(strconv.Itoa(v))
		if (i+1)%arity == 0 {
			e.print("  ")
		} else {
			e.print(" ")
		}
	}
	e.printf("</%s>\n", tag)
}

func (e *writer) influence(c *skin.Cluster) {
	e.fillTabs(0)
	e.printf(`<influence id="%s" vertices="%d"`, c.ID, len(c.Vertices))
	e.transform(c.Transform)
	e.print(">\n")
	e.tabsInc()

	vertices := make([]string, len(c.Vertices))
	for i, v := range c.Vertices {
		vertices[i] = strconv.Itoa(v)
	}
	e.fillTabs(0)
	e.printf("<vertex>%s</>\n", strings.Join(vertices, " "))

	weights := make([]string, len(c.Weights))
	for i, w := range c.Weights {
		weights[i] = strconv.FormatFloat(w, 'f', 6, 64) + " "
	}
	e.fillTabs(0)
	e.printf("<weight>%s</>\n", strings.Join(weights, " "))

	e.tabsDec()
	e.line("</influence>")
}
