package coding

// Vocabulary is an insertion-ordered set of code strings. Codes compare by
// exact string equality.
type Vocabulary struct {
	codes []string
	index map[string]struct{}
}

// NewVocabulary returns an empty vocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{index: make(map[string]struct{})}
}

// Add appends code unless it is already present. It reports whether the code
// was new.
func (v *Vocabulary) Add(code string) bool {
	if _, ok := v.index[code]; ok {
		return false
	}
	v.index[code] = struct{}{}
	v.codes = append(v.codes, code)
	return true
}

// Contains reports whether code is in the vocabulary.
func (v *Vocabulary) Contains(code string) bool {
	_, ok := v.index[code]
	return ok
}

// Codes returns a snapshot of the vocabulary in discovery order. The caller
// owns the returned slice.
func (v *Vocabulary) Codes() []string {
	return append(make([]string, 0, len(v.codes)), v.codes...)
}

// Len returns the number of codes.
func (v *Vocabulary) Len() int {
	return len(v.codes)
}
