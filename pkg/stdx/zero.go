package stdx

// Zero returns the zero value for T.
func Zero[T any]() T {
	var zero T
	return zero
}

// Must1 returns v and panics when err is not nil. Only for values that can't
// fail at runtime, like parsing embedded templates.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Coalesce returns the first value that isn't the zero value of T.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
