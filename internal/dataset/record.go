package dataset

// Record is one data row. Line counts data rows from 1, header excluded.
type Record struct {
	Line    int
	Values  []string
	dataset *Dataset
}

// Get returns the value of the named column.
func (r Record) Get(name string) (string, bool) {
	if r.dataset == nil {
		return "", false
	}
	i, ok := r.dataset.lookup[name]
	if !ok {
		return "", false
	}
	return r.Values[i], true
}

// Pick returns the named columns that exist in the row.
func (r Record) Pick(names []string) map[string]string {
	picked := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := r.Get(name); ok {
			picked[name] = v
		}
	}
	return picked
}
