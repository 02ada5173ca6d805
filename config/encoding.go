package config

import (
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// nil means UTF-8 output
var currentCharMap *charmap.Charmap

// SetEncoding selects the output charmap by name. Empty name or "UTF-8" restores UTF-8.
func SetEncoding(name string) error {
	if name == "" || name == "UTF-8" {
		currentCharMap = nil
		return nil
	}
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if cm.String() == name {
				currentCharMap = cm
				return nil
			}
		}
	}
	return errors.Errorf("Failed to find encoding %q", name)
}

func ListEncodings() []string {
	list := []string{"UTF-8"}
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

func GetEncoding() *charmap.Charmap {
	return currentCharMap
}
