package args

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
)

// Entity ID bounds accepted by the vmid type.
const (
	MinVMID = 100
	MaxVMID = 999999999
)

const (
	mebibyte = 1 << 20
	// maxMemory is the largest size whose MiB count still fits an int64.
	maxMemory = math.MaxInt64 / mebibyte * mebibyte
)

var (
	// Global validator instance using built-in validations
	validate *validator.Validate

	storagePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9\-_.]*$`)
	memoryUnit     = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*([kKmMgGtT])(?:[iI]?[bB])?$`)
)

func init() {
	validate = validator.New()
}

// Kind is the type of a schema parameter.
type Kind string

const (
	KindVMID    Kind = "vmid"
	KindInt     Kind = "int"
	KindString  Kind = "string"
	KindIP      Kind = "ip"
	KindStorage Kind = "storage"
	KindMemory  Kind = "memory"
	KindFlag    Kind = "flag"
	KindList    Kind = "list"
	KindNode    Kind = "node"
	KindChoice  Kind = "choice"
)

// Type is a parameter type: a Kind plus, for choice, the allowed words.
type Type struct {
	Kind    Kind
	Choices []string
}

func (t Type) String() string {
	if t.Kind == KindChoice {
		return "choice(" + strings.Join(t.Choices, "|") + ")"
	}
	return string(t.Kind)
}

// parseType parses the type part of a descriptor.
func parseType(s string) (Type, error) {
	if strings.HasPrefix(s, "choice(") && strings.HasSuffix(s, ")") {
		body := strings.TrimSuffix(strings.TrimPrefix(s, "choice("), ")")
		words := strings.Split(body, "|")
		for _, w := range words {
			// Words end up in a oneof validation tag.
			if w == "" || strings.ContainsAny(w, " \t,=") {
				return Type{}, fmt.Errorf("malformed choice list %q", s)
			}
		}
		return Type{Kind: KindChoice, Choices: words}, nil
	}

	switch k := Kind(s); k {
	case KindVMID, KindInt, KindString, KindIP, KindStorage,
		KindMemory, KindFlag, KindList, KindNode:
		return Type{Kind: k}, nil
	default:
		return Type{}, fmt.Errorf("unknown type %q", s)
	}
}

// convert checks raw against the type and returns the typed value. The
// returned reason is suitable for a UsageError.
func (t Type) convert(raw string) (any, string) {
	switch t.Kind {
	case KindVMID:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, "not an integer"
		}
		if err := validate.Var(n, fmt.Sprintf("min=%d,max=%d", MinVMID, MaxVMID)); err != nil {
			return nil, fmt.Sprintf("must be between %d and %d", MinVMID, MaxVMID)
		}
		return n, ""

	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, "not an integer"
		}
		return n, ""

	case KindString:
		if raw == "" {
			return nil, "must not be empty"
		}
		return raw, ""

	case KindIP:
		if err := validate.Var(raw, "required,ipv4"); err != nil {
			return nil, "not an IPv4 address"
		}
		return raw, ""

	case KindStorage:
		if !storagePattern.MatchString(raw) {
			return nil, "not a storage identifier"
		}
		return raw, ""

	case KindMemory:
		n, err := parseMemory(raw)
		if err != nil {
			return nil, err.Error()
		}
		return n, ""

	case KindNode:
		if err := validate.Var(raw, "required,hostname"); err != nil {
			return nil, "not a node name"
		}
		return raw, ""

	case KindChoice:
		if err := validate.Var(raw, "required,oneof="+strings.Join(t.Choices, " ")); err != nil {
			return nil, "must be one of " + strings.Join(t.Choices, ", ")
		}
		return raw, ""

	case KindFlag:
		return true, ""

	default:
		return nil, "unsupported type " + string(t.Kind)
	}
}

// parseMemory returns a size in bytes. A bare number is MiB. K, M, G and T
// are binary units whether written 4G, 4GB or 4GiB, matching how the
// platform tools read memory sizes. The size must be a whole number of MiB.
func parseMemory(raw string) (uint64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("must not be empty")
	}

	var n uint64
	if mib, err := strconv.ParseUint(s, 10, 64); err == nil {
		if mib > maxMemory/mebibyte {
			return 0, fmt.Errorf("too large")
		}
		n = mib * mebibyte
	} else if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("too large")
	} else {
		if m := memoryUnit.FindStringSubmatch(s); m != nil {
			s = m[1] + strings.ToUpper(m[2]) + "iB"
		}
		n, err = humanize.ParseBytes(s)
		if err != nil {
			if strings.Contains(err.Error(), "too large") {
				return 0, fmt.Errorf("too large")
			}
			return 0, fmt.Errorf("not a memory size")
		}
		if n > maxMemory {
			return 0, fmt.Errorf("too large")
		}
	}

	if n < mebibyte {
		return 0, fmt.Errorf("must be at least 1 MiB")
	}
	if n%mebibyte != 0 {
		return 0, fmt.Errorf("must be a whole number of MiB")
	}
	return n, nil
}
