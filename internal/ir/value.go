package ir

import (
	"fmt"
	"math"
)

// IRValue is a sealed interface representing constrained value types.
// Only IRNull, IRString, IRInt, IRFloat, IRBool, IRArray and *IRObject
// implement it.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents an explicit null or an absent value.
// The remote store reports unset columns as null and local declarations
// simply omit them; both become IRNull before hashing.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a number with a fractional part.
// Use NewIRNumber to get an IRInt whenever the value is integral.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an ordered list of values (e.g. multi-select picklists).
type IRArray []IRValue

func (IRArray) irValue() {}

// NewIRNumber returns IRInt for integral values inside the int64 range and
// IRFloat otherwise. NaN and infinities are rejected.
func NewIRNumber(f float64) (IRValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v", f)
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return IRInt(int64(f)), nil
	}
	return IRFloat(f), nil
}

// IsNull reports whether v is IRNull or a nil interface.
func IsNull(v IRValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(IRNull)
	return ok
}
