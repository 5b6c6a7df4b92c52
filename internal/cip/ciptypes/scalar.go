package ciptypes

import "fmt"

// Encode serializes v, which must hold a Go value compatible with dt,
// into w. It is the Go counterpart of CIPster's EncodeData(), returning an
// error rather than the sentinel -1 the C++ source uses.
func Encode(dt DataType, v interface{}, w *Writer) error {
	switch dt {
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("ciptypes: BOOL expects bool, got %T", v)
		}
		if b {
			return w.PutUint8(1)
		}
		return w.PutUint8(0)
	case Sint, Usint, Byte:
		n, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("ciptypes: %s expects integer, got %T", dt, v)
		}
		return w.PutUint8(byte(n))
	case Int, Uint, Word:
		n, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("ciptypes: %s expects integer, got %T", dt, v)
		}
		return w.PutUint16(uint16(n))
	case Dint, Udint, Dword:
		n, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("ciptypes: %s expects integer, got %T", dt, v)
		}
		return w.PutUint32(uint32(n))
	case Lint, Ulint, Lword:
		n, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("ciptypes: %s expects integer, got %T", dt, v)
		}
		return w.PutUint64(uint64(n))
	case Real:
		f, ok := toFloat32(v)
		if !ok {
			return fmt.Errorf("ciptypes: REAL expects float, got %T", v)
		}
		return w.PutFloat32(f)
	case String:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("ciptypes: STRING expects string, got %T", v)
		}
		return w.PutString(s)
	case ShortString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("ciptypes: SHORT_STRING expects string, got %T", v)
		}
		return w.PutShortString(s)
	case UsintArray:
		b, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("ciptypes: USINT_ARRAY expects []byte, got %T", v)
		}
		return w.PutBytes(b)
	default:
		return fmt.Errorf("ciptypes: unsupported encode type %s: %w", dt, ErrOverflow)
	}
}

// Decode reads a dt-typed value out of r, returning a Go value whose
// concrete type matches Encode's expectation for the same dt.
func Decode(dt DataType, r *Reader) (interface{}, error) {
	switch dt {
	case Bool:
		v, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		return v != 0, nil
	case Sint:
		v, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		return int8(v), nil
	case Usint, Byte:
		return r.Uint8()
	case Int:
		v, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		return int16(v), nil
	case Uint, Word:
		return r.Uint16()
	case Dint:
		v, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	case Udint, Dword:
		return r.Uint32()
	case Lint:
		v, err := r.Uint64()
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case Ulint, Lword:
		return r.Uint64()
	case Real:
		return r.Float32()
	case String:
		return r.String()
	case ShortString:
		return r.ShortString()
	case UsintArray:
		return r.Rest(), nil
	default:
		return nil, fmt.Errorf("ciptypes: unsupported decode type %s: %w", dt, ErrUnderflow)
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat32(v interface{}) (float32, bool) {
	switch f := v.(type) {
	case float32:
		return f, true
	case float64:
		return float32(f), true
	default:
		return 0, false
	}
}
