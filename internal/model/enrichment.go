package model

// EnrichedFields are the derived fields the enrichment stage attaches to a
// record. The zero-ish value from EmptyEnrichedFields is a valid terminal
// state for records whose inference call failed.
type EnrichedFields struct {
	SummaryOneSentence string
	SummaryShort       string
	Keywords           []string
	PanelistCount      int
	Institutions       []string
	Specialities       []string
}

// EmptyEnrichedFields returns the fixed fallback used on inference failure.
func EmptyEnrichedFields() EnrichedFields {
	return EnrichedFields{
		Keywords:     []string{},
		Institutions: []string{},
		Specialities: []string{},
	}
}

// ListFields names the list-valued enrichment fields eligible for
// normalization, in processing order.
func ListFields() []string {
	return []string{KeyKeywords, KeyInstitutions, KeySpecialities}
}

// IsListField reports whether field is a normalizable list field.
func IsListField(field string) bool {
	switch field {
	case KeyKeywords, KeyInstitutions, KeySpecialities:
		return true
	}
	return false
}

// List returns the values of a list field by wire name.
func (e *EnrichedFields) List(field string) ([]string, bool) {
	if e == nil {
		return nil, false
	}
	switch field {
	case KeyKeywords:
		return e.Keywords, true
	case KeyInstitutions:
		return e.Institutions, true
	case KeySpecialities:
		return e.Specialities, true
	}
	return nil, false
}

// SetList replaces the values of a list field by wire name. It returns false
// for unknown fields.
func (e *EnrichedFields) SetList(field string, values []string) bool {
	if e == nil {
		return false
	}
	values = nonNil(values)
	switch field {
	case KeyKeywords:
		e.Keywords = values
	case KeyInstitutions:
		e.Institutions = values
	case KeySpecialities:
		e.Specialities = values
	default:
		return false
	}
	return true
}

// Clone returns a deep copy.
func (e EnrichedFields) Clone() EnrichedFields {
	e.Keywords = append([]string{}, e.Keywords...)
	e.Institutions = append([]string{}, e.Institutions...)
	e.Specialities = append([]string{}, e.Specialities...)
	return e
}
