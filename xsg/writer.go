// Package xsg writes the text form of the eXtendable Scene Graph format.
package xsg

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/xsg_export/utils"
)

// FlagSeparate marks files written in separate-object mode. Nulls, cameras
// and lights lose their translation in such files.
const FlagSeparate = 1

type writer struct {
	tabs  int
	enc   io.WriteCloser
	w     *bufio.Writer
	flags int
}

func newWriter(w io.Writer, flags int) *writer {
	enc := utils.EncodingWriter(w)
	return &writer{enc: enc, w: bufio.NewWriter(enc), flags: flags}
}

func (e *writer) close() error {
	if err := e.w.Flush(); err != nil {
		return err
	}
	return e.enc.Close()
}

func (e *writer) fillTabs(diff int) {
	for i := 0; i < e.tabs+diff; i++ {
		e.w.WriteRune('\t')
	}
}

func (e *writer) tabsInc() { e.tabs++ }

func (e *writer) tabsDec() {
	if e.tabs > 0 {
		e.tabs--
	}
}

func (e *writer) printf(format string, args ...interface{}) {
	e.w.WriteString(fmt.Sprintf(format, args...))
}

func (e *writer) print(s string) {
	e.w.WriteString(s)
}

// line writes one indented line terminated by a newline.
func (e *writer) line(format string, args ...interface{}) {
	e.fillTabs(0)
	e.printf(format, args...)
	e.print("\n")
}

func (e *writer) transform(t mgl64.Mat4) {
	c := utils.AffineColumns(t)
	e.print(` transform="`)
	for i := 0; i < 12; i += 3 {
		e.printf("%f %f %f  ", clean(c[i]), clean(c[i+1]), clean(c[i+2]))
	}
	e.print(`"`)
}

func (e *writer) nodeBegin(id string, t mgl64.Mat4) {
	e.fillTabs(0)
	e.printf(`<node id="%s"`, id)
	e.transform(t)
	e.print(">\n")
	e.tabsInc()
}

func (e *writer) nodeEnd() {
	e.tabsDec()
	e.line("</node>")
}

// block writes free-form text at the current indentation, one tab deeper.
func (e *writer) block(text string) {
	e.tabsInc()
	e.line("%s", text)
	e.tabsDec()
}

// num formats attribute scalars with the shortest exact representation.
func num(v float64) string {
	return strconv.FormatFloat(clean(v), 'f', -1, 64)
}

func vec3(v mgl64.Vec3) string {
	return num(v[0]) + " " + num(v[1]) + " " + num(v[2])
}
