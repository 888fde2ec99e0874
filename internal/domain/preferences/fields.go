package preferences

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Field names a single user-configurable setting.
type Field string

// Known preference fields
const (
	FieldCategory         Field = "category"
	FieldDifficulty       Field = "difficulty"
	FieldTimeLimit        Field = "time_limit"
	FieldQuestionCount    Field = "question_count"
	FieldAudioEnabled     Field = "audio_enabled"
	FieldHighContrast     Field = "high_contrast"
	FieldLargeText        Field = "large_text"
	FieldLanguage         Field = "language"
	FieldHintsEnabled     Field = "hints_enabled"
	FieldRemindersEnabled Field = "reminders_enabled"
	FieldPracticeFocus    Field = "practice_focus"
)

// Kind is the scalar type carried by a Value.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

type fieldSpec struct {
	kind     Kind
	min, max int
}

var schema = map[Field]fieldSpec{
	FieldCategory:         {kind: KindString},
	FieldDifficulty:       {kind: KindInt, min: 1, max: 5},
	FieldTimeLimit:        {kind: KindInt, min: 0, max: 3600},
	FieldQuestionCount:    {kind: KindInt, min: 1, max: 50},
	FieldAudioEnabled:     {kind: KindBool},
	FieldHighContrast:     {kind: KindBool},
	FieldLargeText:        {kind: KindBool},
	FieldLanguage:         {kind: KindString},
	FieldHintsEnabled:     {kind: KindBool},
	FieldRemindersEnabled: {kind: KindBool},
	FieldPracticeFocus:    {kind: KindString},
}

// Kind returns the declared kind of the field and whether the field is known.
func (f Field) Kind() (Kind, bool) {
	spec, ok := schema[f]
	return spec.kind, ok
}

// KnownFields returns every field in the schema, sorted by name.
func KnownFields() []Field {
	fields := make([]Field, 0, len(schema))
	for f := range schema {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Value is a typed preference value: a string, an int or a bool.
type Value struct {
	kind Kind
	str  string
	num  int
	flag bool
}

// String creates a string value
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int creates an int value
func Int(n int) Value { return Value{kind: KindInt, num: n} }

// Bool creates a bool value
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

func (v Value) Kind() Kind       { return v.kind }
func (v Value) AsString() string { return v.str }
func (v Value) AsInt() int       { return v.num }
func (v Value) AsBool() bool     { return v.flag }
func (v Value) IsZero() bool     { return v.kind == 0 }

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(other Value) bool { return v == other }

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.Itoa(v.num)
	case KindBool:
		return strconv.FormatBool(v.flag)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindInt:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.flag)
	default:
		return []byte("null"), nil
	}
}

// decodeValue parses raw JSON according to the field's declared kind.
func decodeValue(field Field, raw json.RawMessage) (Value, error) {
	kind, ok := field.Kind()
	if !ok {
		return Value{}, fmt.Errorf("%w: unknown field %q", ErrInvalidField, field)
	}
	switch kind {
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, field, err)
		}
		return String(s), nil
	case KindInt:
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, field, err)
		}
		return Int(n), nil
	default:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, field, err)
		}
		return Bool(b), nil
	}
}

// ParseValue converts textual input (CLI flags, callback data) into a typed value.
func ParseValue(field Field, text string) (Value, error) {
	kind, ok := field.Kind()
	if !ok {
		return Value{}, fmt.Errorf("%w: unknown field %q", ErrInvalidField, field)
	}
	switch kind {
	case KindString:
		return String(text), nil
	case KindInt:
		n, err := strconv.Atoi(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s expects a number", ErrInvalidField, field)
		}
		return Int(n), nil
	default:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s expects true or false", ErrInvalidField, field)
		}
		return Bool(b), nil
	}
}

// Validate checks that every field is known, carries the declared kind and
// stays inside its range.
func Validate(partial Partial) error {
	for field, value := range partial {
		spec, ok := schema[field]
		if !ok {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidField, field)
		}
		if value.Kind() != spec.kind {
			return fmt.Errorf("%w: %s must be %s, got %s", ErrInvalidField, field, spec.kind, value.Kind())
		}
		switch spec.kind {
		case KindInt:
			if value.AsInt() < spec.min || value.AsInt() > spec.max {
				return fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidField, field, spec.min, spec.max)
			}
		case KindString:
			if value.AsString() == "" {
				return fmt.Errorf("%w: %s must not be empty", ErrInvalidField, field)
			}
		}
	}
	return nil
}
