package erp

// Domain is an ERP search filter: a list of [field, operator, value]
// conditions (implicitly AND-ed) optionally interleaved with "|" / "&" / "!"
// prefix operators.
type Domain []any

// Cond builds one [field, op, value] term.
func Cond(field, op string, value any) []any {
	return []any{field, op, value}
}

// And appends conditions to the domain.
func (d Domain) And(terms ...[]any) Domain {
	out := make(Domain, 0, len(d)+len(terms))
	out = append(out, d...)
	for _, t := range terms {
		out = append(out, t)
	}
	return out
}

// SearchOptions are the paging/sorting kwargs of search_read.
type SearchOptions struct {
	Limit  int
	Offset int
	Order  string
	// Context is sent as the call's evaluation context, e.g. active_test.
	Context map[string]any
}

func (o SearchOptions) kwargs(fields []string) map[string]any {
	kw := map[string]any{}
	if len(fields) > 0 {
		kw["fields"] = fields
	}
	if o.Limit > 0 {
		kw["limit"] = o.Limit
	}
	if o.Offset > 0 {
		kw["offset"] = o.Offset
	}
	if o.Order != "" {
		kw["order"] = o.Order
	}
	if len(o.Context) > 0 {
		kw["context"] = o.Context
	}
	return kw
}
