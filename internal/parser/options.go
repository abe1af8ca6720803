package parser

import "sqlerd/internal/schema"

// Option configures parsing behavior.
type Option func(*options)

type options struct {
	defaultSchema     string
	promoteReferenced bool
}

func defaultOptions() *options {
	return &options{
		defaultSchema:     schema.DefaultSchema,
		promoteReferenced: true,
	}
}

// WithDefaultSchema sets the schema used for unqualified table names.
// If not specified, defaults to "dbo".
func WithDefaultSchema(name string) Option {
	return func(o *options) {
		if name != "" {
			o.defaultSchema = name
		}
	}
}

// WithoutReferencePromotion keeps referenced columns exactly as declared. By
// default a column that is the target of a foreign key but is neither PRIMARY
// KEY nor UNIQUE in the source text is promoted so the reference stays valid.
func WithoutReferencePromotion() Option {
	return func(o *options) {
		o.promoteReferenced = false
	}
}

// WithReferencePromotion sets promotion explicitly, for callers driven by configuration.
func WithReferencePromotion(enabled bool) Option {
	return func(o *options) {
		o.promoteReferenced = enabled
	}
}
