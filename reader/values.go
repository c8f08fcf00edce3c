package reader

import (
	"encoding/binary"
	"fmt"
	"strings"

	"procmem/process"
)

// Vector3 is three consecutive float32 values
type Vector3 struct {
	X, Y, Z float32
}

// Vector4 is four consecutive float32 values, W first
type Vector4 struct {
	W, X, Y, Z float32
}

// Value lists the fixed-layout types ReadValue can decode.
type Value interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~bool |
		Vector3 | Vector4
}

// SizeOf returns the number of bytes ReadValue[T] reads
func SizeOf[T Value]() process.ProcessMemorySize {
	var v T
	return process.ProcessMemorySize(binary.Size(v))
}

// ReadValue reads exactly SizeOf[T] bytes at addr and decodes them in native
// byte order. Under the default policy an unreadable tail decodes as zero
// bytes and the read still succeeds.
func ReadValue[T Value](r *Reader, mem process.MemoryAccess, addr process.ProcessMemoryAddress) (T, error) {
	var v T
	data, err := r.ReadBuffer(mem, addr, SizeOf[T]())
	if err != nil {
		return v, err
	}

	if _, err := binary.Decode(data, binary.NativeEndian, &v); err != nil {
		return v, fmt.Errorf("decode %T at %s: %w", v, addr.ToString(), err)
	}
	return v, nil
}

// DataType names a value type the way script bindings spell it
type DataType string

const (
	BYTE    DataType = "byte"
	INT     DataType = "int"
	INT32   DataType = "int32"
	UINT32  DataType = "uint32"
	INT64   DataType = "int64"
	UINT64  DataType = "uint64"
	DWORD   DataType = "dword"
	SHORT   DataType = "short"
	LONG    DataType = "long"
	FLOAT   DataType = "float"
	DOUBLE  DataType = "double"
	BOOL    DataType = "bool"
	BOOLEAN DataType = "boolean"
	PTR     DataType = "ptr"
	POINTER DataType = "pointer"
	STR     DataType = "str"
	STRING  DataType = "string"
	VEC3    DataType = "vec3"
	VECTOR3 DataType = "vector3"
	VEC4    DataType = "vec4"
	VECTOR4 DataType = "vector4"
)

// ReadTyped reads a value named by dataType (case-insensitive). int and long
// are 32-bit, as on Windows; ptr is 64-bit.
func (r *Reader) ReadTyped(mem process.MemoryAccess, addr process.ProcessMemoryAddress, dataType DataType) (any, error) {
	switch DataType(strings.ToLower(string(dataType))) {
	case BYTE:
		return ReadValue[uint8](r, mem, addr)
	case INT, INT32, LONG:
		return ReadValue[int32](r, mem, addr)
	case UINT32, DWORD:
		return ReadValue[uint32](r, mem, addr)
	case INT64:
		return ReadValue[int64](r, mem, addr)
	case UINT64:
		return ReadValue[uint64](r, mem, addr)
	case SHORT:
		return ReadValue[int16](r, mem, addr)
	case FLOAT:
		return ReadValue[float32](r, mem, addr)
	case DOUBLE:
		return ReadValue[float64](r, mem, addr)
	case BOOL, BOOLEAN:
		return ReadValue[bool](r, mem, addr)
	case PTR, POINTER:
		return r.ReadPointer(mem, addr)
	case STR, STRING:
		return r.ReadString(mem, addr)
	case VEC3, VECTOR3:
		return ReadValue[Vector3](r, mem, addr)
	case VEC4, VECTOR4:
		return ReadValue[Vector4](r, mem, addr)
	}
	return nil, fmt.Errorf("%w: unexpected data type '%s'", process.ErrInvalidArgument, dataType)
}
