package model

import "slices"

// NormalizationMap maps raw terms to canonical terms for one field.
type NormalizationMap map[string]string

// Apply rewrites values through the map. Values without an entry pass through.
func (m NormalizationMap) Apply(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if c, ok := m[v]; ok {
			out[i] = c
		} else {
			out[i] = v
		}
	}
	return out
}

// Covers reports whether every value has an entry.
func (m NormalizationMap) Covers(values []string) bool {
	for _, v := range values {
		if _, ok := m[v]; !ok {
			return false
		}
	}
	return true
}

// Groups inverts the map: canonical term -> sorted raw terms.
func (m NormalizationMap) Groups() map[string][]string {
	groups := make(map[string][]string)
	for raw, canonical := range m {
		groups[canonical] = append(groups[canonical], raw)
	}
	for k := range groups {
		slices.Sort(groups[k])
	}
	return groups
}

// NormalizationState is the normalization stage checkpoint.
type NormalizationState struct {
	ProcessedFields   []string                    `json:"processed_fields"`
	NormalizationMaps map[string]NormalizationMap `json:"normalization_maps"`
}

// NewNormalizationState returns an empty checkpoint.
func NewNormalizationState() *NormalizationState {
	return &NormalizationState{
		ProcessedFields:   []string{},
		NormalizationMaps: map[string]NormalizationMap{},
	}
}

// Processed reports whether the field has been committed.
func (s *NormalizationState) Processed(field string) bool {
	return slices.Contains(s.ProcessedFields, field)
}

// Commit records a completed field and its map.
func (s *NormalizationState) Commit(field string, m NormalizationMap) {
	if s.NormalizationMaps == nil {
		s.NormalizationMaps = map[string]NormalizationMap{}
	}
	s.NormalizationMaps[field] = m
	if !s.Processed(field) {
		s.ProcessedFields = append(s.ProcessedFields, field)
	}
}
