package material

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// LabelPrefix marks a shader node label carrying raw <input> attributes.
const LabelPrefix = "xsg.input:"

const (
	TOKEN_NAME = iota
	TOKEN_EQUALS
	TOKEN_STRING
	TOKEN_NUMBER
)

var lexer *lexmachine.Lexer

func init() {
	lexer = lexmachine.NewLexer()
	lexer.Add([]byte(`[a-zA-Z_][a-zA-Z0-9_\.:\-]*`), getToken(TOKEN_NAME))
	lexer.Add([]byte(`=`), getToken(TOKEN_EQUALS))
	lexer.Add([]byte(`"(\\.|[^"])*"`), getToken(TOKEN_STRING))
	lexer.Add([]byte(`'[^']*'`), getToken(TOKEN_STRING))
	lexer.Add([]byte(`[\+\-]?[0-9]*\.?[0-9]+`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`\s+`), skip)
	if err := lexer.Compile(); err != nil {
		panic(err)
	}
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

type Attr struct {
	Name  string
	Value string
}

// Attributes are extra <input> attributes. Raw is kept when the label
// text does not parse as name=value pairs.
type Attributes struct {
	Pairs []Attr
	Raw   string
}

func (a Attributes) Empty() bool { return len(a.Pairs) == 0 && a.Raw == "" }

func (a Attributes) String() string {
	if a.Raw != "" {
		return a.Raw
	}
	var sb strings.Builder
	for i, p := range a.Pairs {
		if i != 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(p.Name)
		sb.WriteString(`="`)
		sb.WriteString(strings.ReplaceAll(p.Value, `"`, "&quot;"))
		sb.WriteByte('"')
	}
	return sb.String()
}

// LabelAttributes extracts attributes from a node label. Labels without
// the prefix yield empty attributes.
func LabelAttributes(label string) (Attributes, error) {
	if !strings.HasPrefix(label, LabelPrefix) {
		return Attributes{}, nil
	}
	text := strings.TrimSpace(label[len(LabelPrefix):])
	pairs, err := ParseAttributes(text)
	if err != nil {
		return Attributes{Raw: text}, err
	}
	return Attributes{Pairs: pairs}, nil
}

// ParseAttributes parses a sequence of name=value pairs. Values may be
// quoted strings, numbers or bare words.
func ParseAttributes(text string) ([]Attr, error) {
	scanner, err := lexer.Scanner([]byte(text))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create lexer scanner")
	}

	result := make([]Attr, 0, 4)
	var current *Attr
	expectValue := false
	for Itok, err, eos := scanner.Next(); !eos; Itok, err, eos = scanner.Next() {
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse token")
		}
		tok := Itok.(*lexmachine.Token)
		lexeme := string(tok.Lexeme)

		switch {
		case expectValue:
			switch tok.Type {
			case TOKEN_STRING:
				value, err := unquote(lexeme)
				if err != nil {
					return nil, errors.Errorf("Bad string at column %v (%q)", tok.StartColumn, lexeme)
				}
				current.Value = value
			case TOKEN_NUMBER, TOKEN_NAME:
				current.Value = lexeme
			default:
				return nil, errors.Errorf("Expected value for %q at column %v", current.Name, tok.StartColumn)
			}
			result = append(result, *current)
			current = nil
			expectValue = false
		case current != nil:
			if tok.Type != TOKEN_EQUALS {
				return nil, errors.Errorf("Expected '=' after %q at column %v", current.Name, tok.StartColumn)
			}
			expectValue = true
		default:
			if tok.Type != TOKEN_NAME {
				return nil, errors.Errorf("Expected attribute name at column %v (%q)", tok.StartColumn, lexeme)
			}
			current = &Attr{Name: lexeme}
		}
	}
	if current != nil {
		return nil, errors.Errorf("Attribute %q has no value", current.Name)
	}
	return result, nil
}

func unquote(lexeme string) (string, error) {
	if strings.HasPrefix(lexeme, "'") {
		return lexeme[1 : len(lexeme)-1], nil
	}
	return strconv.Unquote(lexeme)
}
