package binding

// Result is the loading/data/error shape every derivation exposes to
// presentation callers. No other shape is guaranteed.
type Result[T any] struct {
	Value   T
	Loading bool
	Err     error
}

// Ready wraps a computed value.
func Ready[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

// Pending marks a derivation with a request in flight.
func Pending[T any]() Result[T] {
	return Result[T]{Loading: true}
}

// Failed wraps an adapter error.
func Failed[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// None is the defined empty result used when inputs short-circuit a
// derivation. It is not an error and not loading.
func None[T any]() Result[T] {
	return Result[T]{}
}

// HasValue reports whether the result is settled: not loading and not
// failed.
func (r Result[T]) HasValue() bool {
	return !r.Loading && r.Err == nil
}
