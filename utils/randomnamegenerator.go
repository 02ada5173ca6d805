package utils

import (
	"fmt"
	"math/rand"

	"github.com/Pallinder/go-randomdata"
)

// NameRegistry hands out unique object names. Unnamed source objects get
// deterministic silly names so repeated conversions produce the same ids.
type NameRegistry map[string]struct{}

func (nr *NameRegistry) init() {
	if *nr == nil {
		*nr = make(map[string]struct{})
		randomdata.CustomRand(rand.New(rand.NewSource(0)))
	}
}

// Reserve marks name as taken and reports whether it was free.
func (nr *NameRegistry) Reserve(name string) bool {
	nr.init()
	if _, exists := (*nr)[name]; exists {
		return false
	}
	(*nr)[name] = struct{}{}
	return true
}

func (nr *NameRegistry) RandomName() string {
	nr.init()
	for {
		name := randomdata.SillyName()
		if nr.Reserve(name) {
			return name
		}
	}
}

// Unique returns name if free, otherwise name with a numeric suffix.
func (nr *NameRegistry) Unique(name string) string {
	if name == "" {
		return nr.RandomName()
	}
	if nr.Reserve(name) {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%03d", name, i)
		if nr.Reserve(candidate) {
			return candidate
		}
	}
}
