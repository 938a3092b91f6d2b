package capability

// ClassFilter is the allow-list of capability classes the connector
// reconciles. Membership checks are lock-free; the set is fixed at startup.
type ClassFilter struct {
	allowed map[string]struct{}
}

// NewClassFilter builds a filter from the configured class names
func NewClassFilter(classes []string) *ClassFilter {
	allowed := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		allowed[c] = struct{}{}
	}
	return &ClassFilter{allowed: allowed}
}

// Allows reports whether the class is on the allow-list
func (f *ClassFilter) Allows(class string) bool {
	_, ok := f.allowed[class]
	return ok
}

// Classes returns the allow-list for logging at startup
func (f *ClassFilter) Classes() []string {
	out := make([]string, 0, len(f.allowed))
	for c := range f.allowed {
		out = append(out, c)
	}
	return out
}
