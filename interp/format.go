package interp

import (
	"fmt"

	"github.com/dynvm-project/dynvm/runtime"
	"github.com/dynvm-project/dynvm/value"
)

// formatValues implements the Format opcode's to-text conversion (§4.I),
// mirroring ir.EvalFormat's constant-folding counterpart but reading from
// live heap Values instead of compile-time Consts.
func formatValues(types *value.TypeRegistry, args []value.Value) (string, error) {
	var out []byte
	for _, v := range args {
		switch {
		case v.IsNull():
			out = append(out, "null"...)
		case v.IsInt():
			out = append(out, fmt.Sprintf("%d", v.Int64())...)
		default:
			switch types.TypeOf(v) {
			case value.PublicInteger:
				out = append(out, fmt.Sprintf("%d", types.Int64Value(v))...)
			case value.PublicFloat:
				out = append(out, formatFloat(types.Float64Value(v))...)
			case value.PublicString:
				out = append(out, types.StringBytes(v)...)
			case value.PublicSymbol:
				out = append(out, '#')
				out = append(out, types.SymbolBytes(v)...)
			default:
				return "", &runtime.RuntimeError{Op: "format", Err: fmt.Sprintf("%s is not formattable", types.TypeOf(v))}
			}
		}
	}
	return string(out), nil
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}
