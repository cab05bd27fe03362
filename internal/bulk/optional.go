package bulk

import "encoding/json"

// Optional tracks if a field was present in a JSON payload.
//
// A present null sets the zero value, which clears pointer fields.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

// apply writes the value to dst if it is set.
func (o Optional[T]) apply(dst *T) {
	if o.Set {
		*dst = o.Value
	}
}
