package csvimport

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldType names the parse check applied to a column value.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInt     FieldType = "int"
	TypeDecimal FieldType = "decimal"
	TypeDate    FieldType = "date"
	TypeEmail   FieldType = "email"
	TypeBool    FieldType = "bool"
	TypeUUID    FieldType = "uuid"
)

// FieldRule is the full set of constraints for one CSV column.
type FieldRule struct {
	Column      string
	Type        FieldType
	Required    bool
	MinLength   int
	MaxLength   int
	MinValue    *decimal.Decimal
	MaxValue    *decimal.Decimal
	Pattern     *regexp.Regexp
	PatternDesc string
	DateFormat  string
	Unique      bool
	Reference   string
	CustomFunc  func(value string) error
}

// FieldRuleBuilder assembles a FieldRule one constraint at a time.
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field starts a rule for the named column. The type defaults to string
// and dates to ISO format until overridden.
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{
		rule: FieldRule{
			Column:     column,
			Type:       TypeString,
			DateFormat: "2006-01-02",
		},
	}
}

// Required rejects empty values for this column.
func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

func (b *FieldRuleBuilder) String() *FieldRuleBuilder {
	b.rule.Type = TypeString
	return b
}

func (b *FieldRuleBuilder) Int() *FieldRuleBuilder {
	b.rule.Type = TypeInt
	return b
}

func (b *FieldRuleBuilder) Decimal() *FieldRuleBuilder {
	b.rule.Type = TypeDecimal
	return b
}

func (b *FieldRuleBuilder) Date() *FieldRuleBuilder {
	b.rule.Type = TypeDate
	return b
}

// DateFormat overrides the layout used to parse date columns.
func (b *FieldRuleBuilder) DateFormat(format string) *FieldRuleBuilder {
	b.rule.DateFormat = format
	return b
}

func (b *FieldRuleBuilder) Email() *FieldRuleBuilder {
	b.rule.Type = TypeEmail
	return b
}

func (b *FieldRuleBuilder) Bool() *FieldRuleBuilder {
	b.rule.Type = TypeBool
	return b
}

func (b *FieldRuleBuilder) UUID() *FieldRuleBuilder {
	b.rule.Type = TypeUUID
	return b
}

// MinLength sets the lower length bound.
func (b *FieldRuleBuilder) MinLength(n int) *FieldRuleBuilder {
	b.rule.MinLength = n
	return b
}

// MaxLength sets the upper length bound.
func (b *FieldRuleBuilder) MaxLength(n int) *FieldRuleBuilder {
	b.rule.MaxLength = n
	return b
}

// Length sets both length bounds at once.
func (b *FieldRuleBuilder) Length(min, max int) *FieldRuleBuilder {
	b.rule.MinLength = min
	b.rule.MaxLength = max
	return b
}

// MinValue sets the lower numeric bound.
func (b *FieldRuleBuilder) MinValue(v decimal.Decimal) *FieldRuleBuilder {
	b.rule.MinValue = &v
	return b
}

// MaxValue sets the upper numeric bound.
func (b *FieldRuleBuilder) MaxValue(v decimal.Decimal) *FieldRuleBuilder {
	b.rule.MaxValue = &v
	return b
}

// Range sets both numeric bounds at once.
func (b *FieldRuleBuilder) Range(min, max decimal.Decimal) *FieldRuleBuilder {
	b.rule.MinValue = &min
	b.rule.MaxValue = &max
	return b
}

// Pattern requires the value to match a regexp. The description is what
// gets reported to the user, not the raw pattern.
func (b *FieldRuleBuilder) Pattern(pattern, description string) *FieldRuleBuilder {
	b.rule.Pattern = regexp.MustCompile(pattern)
	b.rule.PatternDesc = description
	return b
}

// Unique rejects values already seen earlier in the same file.
func (b *FieldRuleBuilder) Unique() *FieldRuleBuilder {
	b.rule.Unique = true
	return b
}

// Reference marks the column as a lookup against an existing entity,
// checked separately by a ReferenceValidator.
func (b *FieldRuleBuilder) Reference(refType string) *FieldRuleBuilder {
	b.rule.Reference = refType
	return b
}

// Custom attaches an arbitrary check run after the built-in ones.
func (b *FieldRuleBuilder) Custom(fn func(value string) error) *FieldRuleBuilder {
	b.rule.CustomFunc = fn
	return b
}

// Build finalizes the rule.
func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// FieldValidator applies a rule set row by row, accumulating errors and
// tracking in-file duplicates for columns marked Unique.
type FieldValidator struct {
	rules  map[string]FieldRule
	seen   map[string]map[string]int
	errors *ErrorCollection
}

// NewFieldValidator indexes the rules by column.
func NewFieldValidator(rules []FieldRule, maxErrors int) *FieldValidator {
	byColumn := make(map[string]FieldRule, len(rules))
	for _, r := range rules {
		byColumn[r.Column] = r
	}
	return &FieldValidator{
		rules:  byColumn,
		seen:   make(map[string]map[string]int),
		errors: NewErrorCollection(maxErrors),
	}
}

// ValidateRow runs every rule against the row and reports whether it is
// clean. A failed required or type check short-circuits the remaining
// checks for that column, since they would only repeat the noise.
func (v *FieldValidator) ValidateRow(row *Row) bool {
	clean := true
	for column, rule := range v.rules {
		value := row.Get(column)

		if value == "" {
			if rule.Required {
				v.errors.AddRequiredError(row.LineNumber, column)
				clean = false
			}
			continue
		}

		if err := parseAs(value, rule.Type, rule.DateFormat); err != nil {
			v.errors.AddTypeError(row.LineNumber, column, string(rule.Type), value)
			clean = false
			continue
		}

		if !v.checkConstraints(row.LineNumber, column, value, rule) {
			clean = false
		}
	}
	return clean
}

func (v *FieldValidator) checkConstraints(line int, column, value string, rule FieldRule) bool {
	ok := true

	if (rule.MinLength > 0 && len(value) < rule.MinLength) ||
		(rule.MaxLength > 0 && len(value) > rule.MaxLength) {
		v.errors.AddLengthError(line, column, rule.MinLength, rule.MaxLength)
		ok = false
	}

	if rule.Type == TypeInt || rule.Type == TypeDecimal {
		if err := checkBounds(value, rule.MinValue, rule.MaxValue); err != nil {
			if rule.MinValue != nil && rule.MaxValue != nil {
				lo, _ := rule.MinValue.Float64()
				hi, _ := rule.MaxValue.Float64()
				v.errors.AddRangeError(line, column, lo, hi)
			}
			ok = false
		}
	}

	if rule.Pattern != nil && !rule.Pattern.MatchString(value) {
		v.errors.AddPatternError(line, column, rule.PatternDesc, value)
		ok = false
	}

	if rule.Unique {
		if v.seen[column] == nil {
			v.seen[column] = make(map[string]int)
		}
		if first, dup := v.seen[column][value]; dup {
			v.errors.Add(NewRowErrorWithValue(line, column, ErrCodeImportDuplicateInFile,
				fmt.Sprintf("duplicate value '%s' (first seen in row %d)", value, first), value))
			ok = false
		} else {
			v.seen[column][value] = line
		}
	}

	if rule.CustomFunc != nil {
		if err := rule.CustomFunc(value); err != nil {
			v.errors.AddValidationError(line, column, ErrCodeImportValidation, err.Error())
			ok = false
		}
	}

	return ok
}

func parseAs(value string, fieldType FieldType, dateFormat string) error {
	switch fieldType {
	case TypeInt:
		_, err := strconv.ParseInt(value, 10, 64)
		return err
	case TypeDecimal:
		_, err := decimal.NewFromString(value)
		return err
	case TypeDate:
		_, err := time.Parse(dateFormat, value)
		return err
	case TypeEmail:
		_, err := mail.ParseAddress(value)
		return err
	case TypeBool:
		switch strings.ToLower(value) {
		case "true", "false", "1", "0", "yes", "no", "y", "n":
			return nil
		}
		return fmt.Errorf("invalid boolean value: %s", value)
	case TypeUUID:
		return checkUUID(value)
	}
	return nil
}

func checkUUID(s string) error {
	if len(s) != 36 {
		return fmt.Errorf("invalid UUID length")
	}
	for i, c := range s {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return fmt.Errorf("invalid UUID format")
			}
		default:
			isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
			if !isHex {
				return fmt.Errorf("invalid UUID character")
			}
		}
	}
	return nil
}

func checkBounds(value string, min, max *decimal.Decimal) error {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return err
	}
	if min != nil && d.LessThan(*min) {
		return fmt.Errorf("value %s is less than minimum %s", value, min.String())
	}
	if max != nil && d.GreaterThan(*max) {
		return fmt.Errorf("value %s is greater than maximum %s", value, max.String())
	}
	return nil
}

// Errors returns the accumulated errors.
func (v *FieldValidator) Errors() *ErrorCollection {
	return v.errors
}

// Reset clears errors and duplicate tracking so the validator can run
// another file.
func (v *FieldValidator) Reset() {
	v.seen = make(map[string]map[string]int)
	v.errors.Clear()
}

// ReferenceValidator resolves lookup columns against existing entities,
// caching each answer so a reference repeated across thousands of rows
// costs one query.
type ReferenceValidator struct {
	cache  map[string]map[string]bool
	lookup func(refType, value string) (bool, error)
	errors *ErrorCollection
}

// NewReferenceValidator wraps a lookup function with a result cache.
func NewReferenceValidator(lookup func(refType, value string) (bool, error), maxErrors int) *ReferenceValidator {
	return &ReferenceValidator{
		cache:  make(map[string]map[string]bool),
		lookup: lookup,
		errors: NewErrorCollection(maxErrors),
	}
}

// PreloadReferences warms the cache for a batch of values up front.
func (v *ReferenceValidator) PreloadReferences(refType string, values []string) error {
	if v.cache[refType] == nil {
		v.cache[refType] = make(map[string]bool)
	}
	for _, value := range values {
		exists, err := v.lookup(refType, value)
		if err != nil {
			return err
		}
		v.cache[refType][value] = exists
	}
	return nil
}

// ValidateReference checks one value, consulting the cache before the
// lookup function. Empty values pass; absence is the required rule's job.
func (v *ReferenceValidator) ValidateReference(row int, column, refType, value string) bool {
	if value == "" {
		return true
	}

	exists, cached := false, false
	if byValue := v.cache[refType]; byValue != nil {
		exists, cached = byValue[value]
	}
	if !cached {
		var err error
		exists, err = v.lookup(refType, value)
		if err != nil {
			v.errors.AddValidationError(row, column, ErrCodeImportValidation,
				fmt.Sprintf("error checking %s reference: %v", refType, err))
			return false
		}
		if v.cache[refType] == nil {
			v.cache[refType] = make(map[string]bool)
		}
		v.cache[refType][value] = exists
	}

	if !exists {
		v.errors.AddReferenceError(row, column, value, refType)
		return false
	}
	return true
}

// Errors returns the accumulated errors.
func (v *ReferenceValidator) Errors() *ErrorCollection {
	return v.errors
}

// Reset drops the cache and errors.
func (v *ReferenceValidator) Reset() {
	v.cache = make(map[string]map[string]bool)
	v.errors.Clear()
}

// UniquenessValidator checks values against rows already persisted, for
// columns that must be unique across imports and not just within a file.
type UniquenessValidator struct {
	lookup func(entityType, field, value string) (bool, error)
	errors *ErrorCollection
}

func NewUniquenessValidator(lookup func(entityType, field, value string) (bool, error), maxErrors int) *UniquenessValidator {
	return &UniquenessValidator{
		lookup: lookup,
		errors: NewErrorCollection(maxErrors),
	}
}

// ValidateUnique reports whether the value is absent from storage.
func (v *UniquenessValidator) ValidateUnique(row int, column, entityType, value string) bool {
	if value == "" {
		return true
	}

	exists, err := v.lookup(entityType, column, value)
	if err != nil {
		v.errors.AddValidationError(row, column, ErrCodeImportValidation,
			fmt.Sprintf("error checking uniqueness: %v", err))
		return false
	}
	if exists {
		v.errors.AddDuplicateError(row, column, value, true)
		return false
	}
	return true
}

// Errors returns the accumulated errors.
func (v *UniquenessValidator) Errors() *ErrorCollection {
	return v.errors
}
