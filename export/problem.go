package export

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/logger"
)

// Problem kinds. None of them stops the export.
const (
	UnsupportedNodeType = "UnsupportedNodeType"
	MultipleArmatures   = "MultipleArmatures"
	MissingBone         = "MissingBone"
	ZeroWeightVertex    = "ZeroWeightVertex"
	UnresolvedTexture   = "UnresolvedTexture"
	DegeneratePolygon   = "DegeneratePolygon"
	BadInputAttributes  = "BadInputAttributes"
)

// Problem is a recoverable conversion issue attached to one object or material.
type Problem struct {
	Kind   string `json:"kind"`
	Object string `json:"object"`
	Detail string `json:"detail"`
}

func (p *Problem) Error() string {
	return fmt.Sprintf("%s: %s: %s", p.Kind, p.Object, p.Detail)
}

// Report summarizes one Run.
type Report struct {
	Files         []string   `json:"files"`
	Nodes         int        `json:"nodes"`
	Meshes        int        `json:"meshes"`
	Materials     int        `json:"materials"`
	Textures      int        `json:"textures"`
	Sets          int        `json:"sets"`
	Channels      int        `json:"channels"`
	MaxInfluences int        `json:"max_influences"`
	Problems      []*Problem `json:"problems"`
}

func newReport() *Report {
	return &Report{Files: make([]string, 0), Problems: make([]*Problem, 0)}
}

func (r *Report) problem(kind, object, format string, args ...interface{}) {
	p := &Problem{Kind: kind, Object: object, Detail: fmt.Sprintf(format, args...)}
	r.Problems = append(r.Problems, p)
	logger.Warn("[export] "+p.Kind, zap.String("object", p.Object), zap.String("detail", p.Detail))
}

// Count returns the number of problems of the given kind.
func (r *Report) Count(kind string) int {
	n := 0
	for _, p := range r.Problems {
		if p.Kind == kind {
			n++
		}
	}
	return n
}
