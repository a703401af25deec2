package catalog

// Registry is the set of course codes known to one classification run.
// It only grows: explicit course lists add codes the catalog did not know.
// A Registry is not safe for concurrent use; each run owns its own.
type Registry struct {
	codes []string
	index map[string]struct{}
}

// NewRegistry returns a registry holding codes in the given order.
func NewRegistry(codes ...string) *Registry {
	r := &Registry{index: make(map[string]struct{}, len(codes))}
	for _, code := range codes {
		r.Add(code)
	}
	return r
}

// Add records code and reports whether it was new.
func (r *Registry) Add(code string) bool {
	if _, ok := r.index[code]; ok {
		return false
	}
	r.index[code] = struct{}{}
	r.codes = append(r.codes, code)
	return true
}

// Contains reports whether code is known.
func (r *Registry) Contains(code string) bool {
	_, ok := r.index[code]
	return ok
}

// Len reports the number of known codes.
func (r *Registry) Len() int { return len(r.codes) }

// Codes returns the known codes in insertion order.
func (r *Registry) Codes() []string {
	out := make([]string, len(r.codes))
	copy(out, r.codes)
	return out
}

// Clone copies the registry so a caller can extend it independently.
func (r *Registry) Clone() *Registry {
	return NewRegistry(r.codes...)
}
