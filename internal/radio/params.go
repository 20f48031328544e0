package radio

import "fmt"

// ValidateSet checks value against desc's constraints and returns
// ErrInvalidParameter with a descriptive message on violation. Shared
// by ParamRadio implementations so each one doesn't reinvent bounds
// checking.
func ValidateSet(desc ParamDescriptor, value any) error {
	if desc.ReadOnly {
		return fmt.Errorf("%w: %q is read-only", ErrInvalidParameter, desc.Name)
	}

	switch desc.Kind {
	case ParamInt, ParamFloat:
		f, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("%w: %q expects a numeric value, got %T", ErrInvalidParameter, desc.Name, value)
		}
		if f < desc.Min || f > desc.Max {
			return fmt.Errorf("%w: %q value %v out of range [%v, %v]", ErrInvalidParameter, desc.Name, f, desc.Min, desc.Max)
		}
	case ParamEnum:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %q expects a string value, got %T", ErrInvalidParameter, desc.Name, value)
		}
		found := false
		for _, e := range desc.Enum {
			if e == s {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %q value %q not in %v", ErrInvalidParameter, desc.Name, s, desc.Enum)
		}
	case ParamBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: %q expects a bool value, got %T", ErrInvalidParameter, desc.Name, value)
		}
	}
	return nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
