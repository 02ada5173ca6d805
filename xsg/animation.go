package xsg

import (
	"github.com/mogaika/xsg_export/anim"
)

func (e *writer) animation(set *anim.Set) {
	e.print("\n")
	e.line(`<animation period="%s" seq="l">`, num(set.Period))
	e.tabsInc()
	for _, t := range set.Tracks {
		if t.IsStatic() {
			continue
		}
		e.line(`<channel id="%s" target="node">`, t.Name)
		e.tabsInc()
		if len(t.Rotation) > 1 {
			e.keyframesBegin("rotation")
			for _, k := range t.Rotation {
				e.printf("%9f ", k.Time)
			}
			e.keyframesValues()
			for _, k := range t.Rotation {
				q := k.Value
				e.printf("%9f %9f %9f %9f ", clean(q.V[0]), clean(q.V[1]), clean(q.V[2]), clean(q.W))
			}
			e.keyframesEnd()
		}
		e.vecKeyframes("scale", t.Scale)
		e.vecKeyframes("position", t.Position)
		e.tabsDec()
		e.line("</channel>")
	}
	e.tabsDec()
	e.line("</animation>")
}

func (e *writer) vecKeyframes(dest string, keys []anim.VecKey) {
	if len(keys) < 2 {
		return
	}
	e.keyframesBegin(dest)
	for _, k := range keys {
		e.printf("%9f ", k.Time)
	}
	e.keyframesValues()
	for _, k := range keys {
		e.printf("%9f %9f %9f  ", clean(k.Value[0]), clean(k.Value[1]), clean(k.Value[2]))
	}
	e.keyframesEnd()
}

func (e *writer) keyframesBegin(dest string) {
	e.line(`<keyframes dest="%s">`, dest)
	e.tabsInc()
	e.fillTabs(0)
	e.print("<time>")
}

func (e *writer) keyframesValues() {
	e.print("</time>\n")
	e.fillTabs(0)
	e.print("<value>")
}

func (e *writer) keyframesEnd() {
	e.print("</value>\n")
	e.tabsDec()
	e.line("</keyframes>")
}
