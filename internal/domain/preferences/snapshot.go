package preferences

import (
	"sort"
	"time"
)

// Default preference values
const (
	DefaultCategory      = "addition"
	DefaultDifficulty    = 1
	DefaultTimeLimit     = 30
	DefaultQuestionCount = 10
	DefaultLanguage      = "en"
	DefaultPracticeFocus = "single_digit"
)

// Partial is a set of field updates. Fields not present keep their prior value.
type Partial map[Field]Value

// Clone returns an independent copy
func (p Partial) Clone() Partial {
	out := make(Partial, len(p))
	for f, v := range p {
		out[f] = v
	}
	return out
}

// Apply merges other into p, later values winning per field.
func (p Partial) Apply(other Partial) {
	for f, v := range other {
		p[f] = v
	}
}

// Names returns the field names in sorted order, for logging.
func (p Partial) Names() []string {
	names := make([]string, 0, len(p))
	for f := range p {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// Snapshot is an immutable, versioned view of one user's preferences.
type Snapshot struct {
	version   uint64
	fields    map[Field]Value
	updatedAt time.Time
}

// NewSnapshot builds a snapshot from the given fields, copying them.
func NewSnapshot(version uint64, fields Partial, updatedAt time.Time) Snapshot {
	return Snapshot{
		version:   version,
		fields:    map[Field]Value(fields.Clone()),
		updatedAt: updatedAt,
	}
}

// Defaults returns the version 0 snapshot used before anything was persisted.
func Defaults() Snapshot {
	return NewSnapshot(0, Partial{
		FieldCategory:         String(DefaultCategory),
		FieldDifficulty:       Int(DefaultDifficulty),
		FieldTimeLimit:        Int(DefaultTimeLimit),
		FieldQuestionCount:    Int(DefaultQuestionCount),
		FieldAudioEnabled:     Bool(true),
		FieldHighContrast:     Bool(false),
		FieldLargeText:        Bool(false),
		FieldLanguage:         String(DefaultLanguage),
		FieldHintsEnabled:     Bool(true),
		FieldRemindersEnabled: Bool(true),
		FieldPracticeFocus:    String(DefaultPracticeFocus),
	}, time.Time{})
}

// Getters
func (s Snapshot) Version() uint64      { return s.version }
func (s Snapshot) UpdatedAt() time.Time { return s.updatedAt }

// Get returns the value of a field and whether it is set.
func (s Snapshot) Get(field Field) (Value, bool) {
	v, ok := s.fields[field]
	return v, ok
}

// Fields returns a copy of all fields.
func (s Snapshot) Fields() Partial {
	return Partial(s.fields).Clone()
}

// Changes returns the subset of partial that would alter this snapshot.
func (s Snapshot) Changes(partial Partial) Partial {
	changed := make(Partial)
	for f, v := range partial {
		if current, ok := s.fields[f]; ok && current.Equal(v) {
			continue
		}
		changed[f] = v
	}
	return changed
}

// Merge returns the successor snapshot: version+1, partial applied on top of
// the current fields, updatedAt set to now.
func (s Snapshot) Merge(partial Partial, now time.Time) Snapshot {
	fields := Partial(s.fields).Clone()
	fields.Apply(partial)
	return Snapshot{
		version:   s.version + 1,
		fields:    map[Field]Value(fields),
		updatedAt: now,
	}
}

// Convenience accessors for known preferences
func (s Snapshot) Category() string      { return s.stringField(FieldCategory, DefaultCategory) }
func (s Snapshot) Language() string      { return s.stringField(FieldLanguage, DefaultLanguage) }
func (s Snapshot) PracticeFocus() string { return s.stringField(FieldPracticeFocus, DefaultPracticeFocus) }
func (s Snapshot) Difficulty() int       { return s.intField(FieldDifficulty, DefaultDifficulty) }
func (s Snapshot) QuestionCount() int    { return s.intField(FieldQuestionCount, DefaultQuestionCount) }
func (s Snapshot) AudioEnabled() bool    { return s.boolField(FieldAudioEnabled, true) }
func (s Snapshot) HintsEnabled() bool    { return s.boolField(FieldHintsEnabled, true) }
func (s Snapshot) RemindersEnabled() bool {
	return s.boolField(FieldRemindersEnabled, true)
}

// TimeLimit returns the per-question limit; zero means no limit.
func (s Snapshot) TimeLimit() time.Duration {
	return time.Duration(s.intField(FieldTimeLimit, DefaultTimeLimit)) * time.Second
}

func (s Snapshot) stringField(f Field, def string) string {
	if v, ok := s.fields[f]; ok && v.Kind() == KindString {
		return v.AsString()
	}
	return def
}

func (s Snapshot) intField(f Field, def int) int {
	if v, ok := s.fields[f]; ok && v.Kind() == KindInt {
		return v.AsInt()
	}
	return def
}

func (s Snapshot) boolField(f Field, def bool) bool {
	if v, ok := s.fields[f]; ok && v.Kind() == KindBool {
		return v.AsBool()
	}
	return def
}
