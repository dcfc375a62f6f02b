package graph

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// LiteralKind enumerates the primitive literal types the pipeline emits.
// Values outside this set are rejected with ErrUnsupportedLiteral rather
// than dispatched dynamically.
type LiteralKind int

const (
	LitString LiteralKind = iota
	LitBool
	LitInt32
	LitInt64
	LitUint32
	LitUint64
	LitFloat32
	LitFloat64
	LitDecimal
	LitDateTime
	LitURI
	LitBase64
	LitJSON
)

// ErrUnsupportedLiteral reports a Go value with no literal mapping.
type ErrUnsupportedLiteral struct {
	Value any
}

func (e *ErrUnsupportedLiteral) Error() string {
	return fmt.Sprintf("graph: unsupported literal type %T", e.Value)
}

// Literal is a tagged union over the supported literal primitives.
type Literal struct {
	Kind  LiteralKind
	Str   string
	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Time  time.Time
	Bytes []byte
	Lang  string
}

// NewLiteral converts a Go value into a Literal. The mapping is a closed
// table; unsupported types return *ErrUnsupportedLiteral.
func NewLiteral(v any) (Literal, error) {
	switch x := v.(type) {
	case Literal:
		return x, nil
	case string:
		return Literal{Kind: LitString, Str: x}, nil
	case bool:
		return Literal{Kind: LitBool, Bool: x}, nil
	case int:
		return Literal{Kind: LitInt64, Int: int64(x)}, nil
	case int32:
		return Literal{Kind: LitInt32, Int: int64(x)}, nil
	case int64:
		return Literal{Kind: LitInt64, Int: x}, nil
	case uint32:
		return Literal{Kind: LitUint32, Uint: uint64(x)}, nil
	case uint64:
		return Literal{Kind: LitUint64, Uint: x}, nil
	case float32:
		return Literal{Kind: LitFloat32, Float: float64(x)}, nil
	case float64:
		return Literal{Kind: LitFloat64, Float: x}, nil
	case time.Time:
		return Literal{Kind: LitDateTime, Time: x}, nil
	case []byte:
		return Literal{Kind: LitBase64, Bytes: x}, nil
	default:
		return Literal{}, &ErrUnsupportedLiteral{Value: v}
	}
}

// Decimal builds an xsd:decimal literal from its lexical form.
func Decimal(lexical string) Literal {
	return Literal{Kind: LitDecimal, Str: lexical}
}

// URILiteral builds a literal whose lexical form is a URI (xsd:anyURI).
func URILiteral(uri string) Literal {
	return Literal{Kind: LitURI, Str: uri}
}

// LangString builds a language-tagged string literal.
func LangString(s, lang string) Literal {
	return Literal{Kind: LitString, Str: s, Lang: lang}
}

// Lexical returns the literal's lexical form.
func (l Literal) Lexical() string {
	switch l.Kind {
	case LitString, LitDecimal, LitURI, LitJSON:
		return l.Str
	case LitBool:
		return strconv.FormatBool(l.Bool)
	case LitInt32, LitInt64:
		return strconv.FormatInt(l.Int, 10)
	case LitUint32, LitUint64:
		return strconv.FormatUint(l.Uint, 10)
	case LitFloat32:
		return strconv.FormatFloat(l.Float, 'g', -1, 32)
	case LitFloat64:
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case LitDateTime:
		return l.Time.UTC().Format(time.RFC3339)
	case LitBase64:
		return base64.StdEncoding.EncodeToString(l.Bytes)
	}
	return l.Str
}

// Datatype returns the literal's datatype URI; language-tagged strings and
// plain strings return the empty string.
func (l Literal) Datatype() string {
	switch l.Kind {
	case LitString:
		return ""
	case LitBool:
		return XSD.URI + "boolean"
	case LitInt32:
		return XSD.URI + "int"
	case LitInt64:
		return XSD.URI + "long"
	case LitUint32:
		return XSD.URI + "unsignedInt"
	case LitUint64:
		return XSD.URI + "unsignedLong"
	case LitFloat32:
		return XSD.URI + "float"
	case LitFloat64:
		return XSD.URI + "double"
	case LitDecimal:
		return XSD.URI + "decimal"
	case LitDateTime:
		return XSD.URI + "dateTime"
	case LitURI:
		return XSD.URI + "anyURI"
	case LitBase64:
		return XSDBase64Binary.URI()
	case LitJSON:
		return RDFJSON.URI()
	}
	return ""
}

// wrapJSON preserves an unsafe string losslessly as a JSON literal with an
// explicit @value field.
func wrapJSON(s string) Literal {
	payload, _ := json.Marshal(map[string]string{"@value": s})
	return Literal{Kind: LitJSON, Str: string(payload)}
}
