package preferences

// ProtectionPolicy classifies fields that automatic adjustments must never change.
type ProtectionPolicy interface {
	IsProtected(field Field) bool
}

// ProtectedFields is a static policy table: field -> protected.
type ProtectedFields map[Field]bool

// IsProtected implements ProtectionPolicy
func (p ProtectedFields) IsProtected(field Field) bool {
	return p[field]
}

// DefaultProtectedFields are the explicit user choices automation may not override.
func DefaultProtectedFields() ProtectedFields {
	return ProtectedFields{
		FieldCategory:         true,
		FieldDifficulty:       true,
		FieldTimeLimit:        true,
		FieldQuestionCount:    true,
		FieldAudioEnabled:     true,
		FieldHighContrast:     true,
		FieldLargeText:        true,
		FieldLanguage:         true,
		FieldRemindersEnabled: true,
		FieldHintsEnabled:     false,
		FieldPracticeFocus:    false,
	}
}

// DefaultRotatableFields are the fields the adjustment policy may propose.
func DefaultRotatableFields() []Field {
	return []Field{FieldPracticeFocus, FieldHintsEnabled}
}

// StripProtected splits partial into the fields policy allows and the names it removed.
func StripProtected(policy ProtectionPolicy, partial Partial) (Partial, []string) {
	allowed := make(Partial, len(partial))
	var stripped []string
	for f, v := range partial {
		if policy != nil && policy.IsProtected(f) {
			stripped = append(stripped, string(f))
			continue
		}
		allowed[f] = v
	}
	return allowed, stripped
}
