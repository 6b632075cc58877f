package eval

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fabvit86/jsonnet-go/ast"
	"github.com/fabvit86/jsonnet-go/internal/jerr"
)

// Stringify is the exported form of stringify, for std.toString.
func Stringify(v *Value) (string, error) { return stringify(v) }

// FormatOp is the exported form of evalFormatOp, for std.format.
func FormatOp(format string, arg *Value, span ast.Span) (*Value, error) {
	return evalFormatOp(format, arg, span)
}

// stringify renders a Value the way string concatenation (`"x: " + 3`)
// and `%s` do: strings pass through unchanged, everything else renders
// as its JSON-ish text form.
func stringify(v *Value) (string, error) {
	if v.Kind == VStr {
		return v.Str, nil
	}
	return jsonish(v)
}

func jsonish(v *Value) (string, error) {
	switch v.Kind {
	case VNull:
		return "null", nil
	case VBool:
		return strconv.FormatBool(v.Bool), nil
	case VNum:
		return formatNumber(v.Num), nil
	case VStr:
		b, err := jsonStringLit(v.Str)
		return b, err
	case VArr:
		parts := make([]string, len(v.Arr))
		for i, t := range v.Arr {
			ev, err := t.Force()
			if err != nil {
				return "", err
			}
			s, err := jsonish(ev)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case VObj:
		names := v.Obj.VisibleFields()
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			if v.Obj.hiddenOf(name) == ast.Hidden {
				continue
			}
			t, _, _ := v.Obj.FieldThunk(name)
			fv, err := t.Force()
			if err != nil {
				return "", err
			}
			s, err := jsonish(fv)
			if err != nil {
				return "", err
			}
			key, _ := jsonStringLit(name)
			parts = append(parts, key+": "+s)
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	case VFun:
		return "", jerr.New(jerr.RuntimeError, "cannot convert function to string", ast.Span{})
	default:
		return "", jerr.New(jerr.RuntimeError, "cannot convert value to string", ast.Span{})
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func jsonStringLit(s string) (string, error) {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String(), nil
}

// evalFormatOp implements the `%` string-format operator: format is a
// printf-style template; arg supplies the substitution values, either
// directly (one conversion), as an array (positional, in order), or as
// an object (named, via %(key)verb).
func evalFormatOp(format string, arg *Value, span ast.Span) (*Value, error) {
	var args []*Value
	named := map[string]*Value{}
	switch arg.Kind {
	case VArr:
		for _, t := range arg.Arr {
			v, err := t.Force()
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
	case VObj:
		for _, name := range arg.Obj.VisibleFields() {
			t, _, _ := arg.Obj.FieldThunk(name)
			v, err := t.Force()
			if err != nil {
				return nil, err
			}
			named[name] = v
		}
	default:
		args = []*Value{arg}
	}

	var out strings.Builder
	i := 0
	argIdx := 0
	for i < len(format) {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			i++
			continue
		}
		i++
		if i >= len(format) {
			return nil, jerr.New(jerr.RuntimeError, "unterminated %% conversion", span)
		}
		if format[i] == '%' {
			out.WriteByte('%')
			i++
			continue
		}
		var key string
		if format[i] == '(' {
			end := strings.IndexByte(format[i:], ')')
			if end < 0 {
				return nil, jerr.New(jerr.RuntimeError, "unterminated %%(name) conversion", span)
			}
			key = format[i+1 : i+end]
			i += end + 1
		}
		specStart := i
		for i < len(format) && strings.ContainsRune("-+ 0123456789.", rune(format[i])) {
			i++
		}
		if i >= len(format) {
			return nil, jerr.New(jerr.RuntimeError, "unterminated %% conversion", span)
		}
		verb := format[i]
		spec := "%" + format[specStart:i] + string(verb)
		i++

		var val *Value
		if key != "" {
			v, ok := named[key]
			if !ok {
				return nil, jerr.New(jerr.RuntimeError, fmt.Sprintf("no such format argument %q", key), span)
			}
			val = v
		} else {
			if argIdx >= len(args) {
				return nil, jerr.New(jerr.RuntimeError, "not enough arguments for format string", span)
			}
			val = args[argIdx]
			argIdx++
		}
		s, err := formatOne(spec, verb, val, span)
		if err != nil {
			return nil, err
		}
		out.WriteString(s)
	}
	return Str(out.String()), nil
}

func formatOne(spec string, verb byte, val *Value, span ast.Span) (string, error) {
	switch verb {
	case 's':
		s, err := stringify(val)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(spec, s), nil
	case 'd', 'i':
		if val.Kind != VNum {
			return "", jerr.New(jerr.TypeError, "%d requires a number", span)
		}
		spec = spec[:len(spec)-1] + "d"
		return fmt.Sprintf(spec, int64(val.Num)), nil
	case 'f', 'e', 'g', 'G', 'E':
		if val.Kind != VNum {
			return "", jerr.New(jerr.TypeError, "numeric format requires a number", span)
		}
		return fmt.Sprintf(spec, val.Num), nil
	case 'x', 'X', 'o':
		if val.Kind != VNum {
			return "", jerr.New(jerr.TypeError, "%x/%o requires a number", span)
		}
		return fmt.Sprintf(spec, int64(val.Num)), nil
	case 'c':
		switch val.Kind {
		case VNum:
			return string(rune(int(val.Num))), nil
		case VStr:
			return val.Str, nil
		default:
			return "", jerr.New(jerr.TypeError, "%c requires a number or string", span)
		}
	default:
		return "", jerr.New(jerr.RuntimeError, fmt.Sprintf("unsupported format verb %%%c", verb), span)
	}
}
