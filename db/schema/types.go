package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type TypeKind int

const (
	KindBoolean TypeKind = iota + 1
	KindInteger
	KindBigInt
	KindDouble
	KindText
	KindVarchar
	KindTimestamp
)

// Type is an engine independent column type. Dialects map it to their own spelling.
type Type struct {
	Kind   TypeKind
	Length int
}

var (
	Boolean   = Type{Kind: KindBoolean}
	Integer   = Type{Kind: KindInteger}
	BigInt    = Type{Kind: KindBigInt}
	Double    = Type{Kind: KindDouble}
	Text      = Type{Kind: KindText}
	Timestamp = Type{Kind: KindTimestamp}
)

func Varchar(length int) Type {
	return Type{Kind: KindVarchar, Length: length}
}

func (t Type) IsZero() bool {
	return t.Kind == 0
}

func (t Type) String() string {
	switch t.Kind {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindBigInt:
		return "bigint"
	case KindDouble:
		return "double"
	case KindText:
		return "text"
	case KindVarchar:
		return fmt.Sprintf("varchar(%d)", t.Length)
	case KindTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("unknown(%d)", int(t.Kind))
	}
}

var varcharRegex = regexp.MustCompile(`^varchar\((\d+)\)$`)

func ParseType(s string) (Type, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(s), ""))
	switch normalized {
	case "boolean", "bool":
		return Boolean, nil
	case "integer", "int":
		return Integer, nil
	case "bigint":
		return BigInt, nil
	case "double", "float", "real":
		return Double, nil
	case "text":
		return Text, nil
	case "timestamp", "datetime":
		return Timestamp, nil
	}
	if match := varcharRegex.FindStringSubmatch(normalized); match != nil {
		length, err := strconv.Atoi(match[1])
		if err != nil || length <= 0 {
			return Type{}, fmt.Errorf("invalid varchar length: %s", s)
		}
		return Varchar(length), nil
	}
	return Type{}, fmt.Errorf("unknown column type: %q", s)
}

func (t Type) validate() error {
	if t.Kind < KindBoolean || t.Kind > KindTimestamp {
		return fmt.Errorf("unknown column type kind %d", int(t.Kind))
	}
	if t.Kind == KindVarchar && t.Length <= 0 {
		return fmt.Errorf("varchar length must be positive, got %d", t.Length)
	}
	return nil
}

type Column struct {
	Name     string
	Type     Type
	Nullable bool
	// Default is rendered as a literal, nil means no default
	Default    any
	PrimaryKey bool
}

func (c Column) validate() error {
	if c.Name == "" {
		return fmt.Errorf("column name is empty")
	}
	if err := c.Type.validate(); err != nil {
		return fmt.Errorf("column %s: %w", c.Name, err)
	}
	if c.PrimaryKey && c.Nullable {
		return fmt.Errorf("column %s: primary key can't be nullable", c.Name)
	}
	return nil
}
