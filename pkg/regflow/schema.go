package regflow

import "strings"

// FieldTemplate is one entry of an event's ordered field template list. Fields
// absent from the list are neither rendered nor validated.
type FieldTemplate struct {
	Key           string     `json:"key"`
	Type          string     `json:"type"`
	Required      bool       `json:"required"`
	ConditionalOn *Condition `json:"conditionalOn,omitempty"`
}

// Condition activates a conditional field only while the controlling field
// holds the given value.
type Condition struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Schema is the required-field rule set built from an event's template list.
// One evaluator owns the required / conditional-required / not-present rules
// so the conditional-clearing invariant is enforced in a single place.
type Schema struct {
	entries []FieldTemplate
	byKey   map[string]FieldTemplate
}

func NewSchema(entries []FieldTemplate) *Schema {
	byKey := make(map[string]FieldTemplate, len(entries))
	for _, e := range entries {
		byKey[e.Key] = e
	}
	return &Schema{entries: entries, byKey: byKey}
}

// Fields returns the template entries in event order.
func (s *Schema) Fields() []FieldTemplate {
	return s.entries
}

// Has reports whether the field is part of this event's template at all.
func (s *Schema) Has(key string) bool {
	_, ok := s.byKey[key]
	return ok
}

// Active reports whether the field is currently rendered and validated given
// the form values. A field missing from the template is never active; a
// conditional field is active only while its controlling field holds the
// activating value.
func (s *Schema) Active(key string, values map[string]string) bool {
	entry, ok := s.byKey[key]
	if !ok {
		return false
	}
	if entry.ConditionalOn == nil {
		return true
	}
	return values[entry.ConditionalOn.Field] == entry.ConditionalOn.Value
}

// Missing returns the keys of required, currently-active fields that have no
// value, in template order. Failures are collected, not first-error.
func (s *Schema) Missing(values map[string]string) []string {
	var missing []string
	for _, entry := range s.entries {
		if !entry.Required || !s.Active(entry.Key, values) {
			continue
		}
		if strings.TrimSpace(values[entry.Key]) == "" {
			missing = append(missing, entry.Key)
		}
	}
	return missing
}

// Validate returns a *ValidationError naming every missing required field, or
// nil when the values satisfy the schema.
func (s *Schema) Validate(values map[string]string) error {
	if missing := s.Missing(values); len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Prune drops values for fields outside the template and for conditional
// fields whose controlling value moved away: a hidden field's value must not
// be silently submitted. Deactivation cascades, so a field conditioned on a
// pruned field is pruned too.
func (s *Schema) Prune(values map[string]string) map[string]string {
	pruned := make(map[string]string, len(values))
	for k, v := range values {
		if s.Has(k) {
			pruned[k] = v
		}
	}

	for {
		removed := false
		for k := range pruned {
			if !s.Active(k, pruned) {
				delete(pruned, k)
				removed = true
			}
		}
		if !removed {
			return pruned
		}
	}
}
