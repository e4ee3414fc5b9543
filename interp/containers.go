package interp

import (
	"fmt"

	"github.com/dynvm-project/dynvm/runtime"
	"github.com/dynvm-project/dynvm/value"
)

// makeContainer allocates an Array/Tuple/Set/Map/Record from the top n
// operand-stack slots (or n key/value pairs for Map), in source order
// (§4.I's Make* opcodes). args is already popped by the caller.
func makeContainer(types *value.TypeRegistry, vt value.ValueType, args []value.Value) value.Value {
	v := types.Alloc(vt, len(args))
	for i, a := range args {
		types.SetElem(v, i, a)
	}
	return v
}

// loadField reads a Record's i'th slot — field names are resolved to slot
// indices at compile time, so this is a plain dynamic-array read (§4.I).
func loadField(types *value.TypeRegistry, rec value.Value, slot int) (value.Value, error) {
	if types.TypeOf(rec) != value.PublicRecord {
		return value.Null, &runtime.RuntimeError{Op: "load_field", Err: "value is not a Record"}
	}
	if slot < 0 || slot >= types.Len(rec) {
		return value.Null, &runtime.RuntimeError{Op: "load_field", Err: "field slot out of range"}
	}
	return types.Elem(rec, slot), nil
}

func storeField(types *value.TypeRegistry, rec value.Value, slot int, v value.Value) error {
	if types.TypeOf(rec) != value.PublicRecord {
		return &runtime.RuntimeError{Op: "store_field", Err: "value is not a Record"}
	}
	if slot < 0 || slot >= types.Len(rec) {
		return &runtime.RuntimeError{Op: "store_field", Err: "field slot out of range"}
	}
	types.SetElem(rec, slot, v)
	return nil
}

// loadIndex implements Array/Tuple positional indexing and Map key lookup
// (§4.I's LoadIndex). Sets are not index-addressable.
func loadIndex(types *value.TypeRegistry, container, index value.Value) (value.Value, error) {
	switch types.TypeOf(container) {
	case value.PublicArray, value.PublicTuple:
		i, err := indexOf(types, container, index)
		if err != nil {
			return value.Null, err
		}
		return types.Elem(container, i), nil
	case value.PublicMap:
		n := types.Len(container) / 2
		for i := 0; i < n; i++ {
			if valuesEqual(types, types.Elem(container, 2*i), index) {
				return types.Elem(container, 2*i+1), nil
			}
		}
		return value.Null, &runtime.RuntimeError{Op: "load_index", Err: "key not found"}
	default:
		return value.Null, &runtime.RuntimeError{Op: "load_index", Err: fmt.Sprintf("%s is not indexable", types.TypeOf(container))}
	}
}

func storeIndex(types *value.TypeRegistry, container, index, v value.Value) error {
	switch types.TypeOf(container) {
	case value.PublicArray:
		i, err := indexOf(types, container, index)
		if err != nil {
			return err
		}
		types.SetElem(container, i, v)
		return nil
	case value.PublicMap:
		n := types.Len(container) / 2
		for i := 0; i < n; i++ {
			if valuesEqual(types, types.Elem(container, 2*i), index) {
				types.SetElem(container, 2*i+1, v)
				return nil
			}
		}
		return &runtime.RuntimeError{Op: "store_index", Err: "key not found"}
	default:
		return &runtime.RuntimeError{Op: "store_index", Err: fmt.Sprintf("%s is not assignable by index", types.TypeOf(container))}
	}
}

func indexOf(types *value.TypeRegistry, container, index value.Value) (int, error) {
	if !index.IsInt() {
		return 0, &runtime.RuntimeError{Op: "index", Err: "index is not an Integer"}
	}
	i := int(index.Int64())
	if i < 0 || i >= types.Len(container) {
		return 0, &runtime.RuntimeError{Op: "index", Err: "index out of range"}
	}
	return i, nil
}
