package differ

// Option is a functional option for configuring a Differ.
type Option func(*differ)

// WithIgnoredFields sets fields to ignore during comparison, in addition to
// the remote identity field.
func WithIgnoredFields(fields ...string) Option {
	return func(d *differ) {
		d.ignoreFields = append(d.ignoreFields, fields...)
	}
}
