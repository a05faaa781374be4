// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package account

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Password length bounds applied by DefaultPasswordPolicy.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 255
)

// Punctuation is the set of characters accepted by PunctuationRule.
const Punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Violation is a single failed password rule.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Rule checks one property of a candidate password.
type Rule interface {
	// Check returns the violation for password, or nil if the rule holds.
	Check(password string) *Violation
}

// PasswordPolicy validates passwords against an ordered set of rules.
type PasswordPolicy struct {
	rules []Rule
}

// NewPasswordPolicy creates a policy evaluating rules in the given order.
func NewPasswordPolicy(rules ...Rule) *PasswordPolicy {
	return &PasswordPolicy{rules: rules}
}

// DefaultPasswordPolicy returns the length, lowercase, uppercase, digit and
// punctuation rules in that order.
func DefaultPasswordPolicy() *PasswordPolicy {
	return NewPasswordPolicy(
		LengthRule{Min: MinPasswordLength, Max: MaxPasswordLength},
		LowercaseRule(),
		UppercaseRule(),
		DigitRule(),
		PunctuationRule(),
	)
}

// Validate returns every violated rule. An empty result means the password
// is acceptable.
func (p *PasswordPolicy) Validate(password string) []Violation {
	var violations []Violation
	for _, rule := range p.rules {
		if v := rule.Check(password); v != nil {
			violations = append(violations, *v)
		}
	}
	return violations
}

// Check is Validate folded into an error with code CodePasswordPolicy.
// The messages are reported under the "password" field.
func (p *PasswordPolicy) Check(password string) error {
	return p.checkField("password", password)
}

func (p *PasswordPolicy) checkField(field, password string) error {
	violations := p.Validate(password)
	if len(violations) == 0 {
		return nil
	}
	messages := make([]string, len(violations))
	codes := make([]string, len(violations))
	for i, v := range violations {
		messages[i] = v.Message
		codes[i] = v.Code
	}
	return oops.Code(CodePasswordPolicy).
		With("violations", violations).
		With("fields", map[string][]string{field: messages}).
		Errorf("password rejected: %s", strings.Join(codes, ", "))
}

// LengthRule bounds the password length in characters.
type LengthRule struct {
	Min int
	Max int
}

// Check implements Rule.
func (r LengthRule) Check(password string) *Violation {
	n := utf8.RuneCountInString(password)
	switch {
	case n < r.Min:
		return &Violation{
			Code:    "password_too_short",
			Message: fmt.Sprintf("This password is too short. It must contain at least %d characters.", r.Min),
		}
	case r.Max > 0 && n > r.Max:
		return &Violation{
			Code:    "password_too_long",
			Message: fmt.Sprintf("Ensure this field has no more than %d characters.", r.Max),
		}
	}
	return nil
}

// CharacterClassRule requires at least one character from a class.
type CharacterClassRule struct {
	Code    string
	Message string
	Match   func(r rune) bool
}

// Check implements Rule.
func (r CharacterClassRule) Check(password string) *Violation {
	if strings.ContainsFunc(password, r.Match) {
		return nil
	}
	return &Violation{Code: r.Code, Message: r.Message}
}

// LowercaseRule requires an ASCII lowercase letter.
func LowercaseRule() CharacterClassRule {
	return CharacterClassRule{
		Code:    "password_must_contain_lowercase_letter",
		Message: "This password must contain at least one lowercase letter.",
		Match:   func(r rune) bool { return r >= 'a' && r <= 'z' },
	}
}

// UppercaseRule requires an ASCII uppercase letter.
func UppercaseRule() CharacterClassRule {
	return CharacterClassRule{
		Code:    "password_must_contain_uppercase_letter",
		Message: "This password must contain at least one uppercase letter.",
		Match:   func(r rune) bool { return r >= 'A' && r <= 'Z' },
	}
}

// DigitRule requires a decimal digit.
func DigitRule() CharacterClassRule {
	return CharacterClassRule{
		Code:    "password_must_contain_digits",
		Message: "This password must contain at least one digit.",
		Match:   func(r rune) bool { return r >= '0' && r <= '9' },
	}
}

// PunctuationRule requires one of the ASCII characters in Punctuation.
func PunctuationRule() CharacterClassRule {
	return CharacterClassRule{
		Code:    "password_must_contain_punctuation",
		Message: fmt.Sprintf("This password must contain at least one punctuation %s.", Punctuation),
		Match:   func(r rune) bool { return r < utf8.RuneSelf && strings.ContainsRune(Punctuation, r) },
	}
}
