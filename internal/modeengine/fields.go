// Package modeengine implements progressive field collection for the
// appointment/order/reschedule modes: pure functions over (fields config,
// collected answers) plus the deterministic price calculator. Nothing here
// does I/O, so it is unit-tested directly — the orchestrator calls
// ComputeModeContext once per character-mode turn and appends the result to
// the system prompt so the LLM asks exactly one question at a time.
package modeengine

import (
	"strings"

	"github.com/vidinsight-tech/queryon/internal/model"
)

const skipSentinel = model.SkipSentinel

var validationHints = map[model.FieldValidation]string{
	model.ValidationPhone:  "(Format: 05XX XXX XX XX — sadece rakam)",
	model.ValidationEmail:  "(Geçerli bir e-posta adresi)",
	model.ValidationDate:   "(Format: GG Ay YYYY, örn: 15 Mart 2026)",
	model.ValidationTime:   "(Format: SS:DD, örn: 14:30 veya 09:00)",
	model.ValidationNumber: "(Sadece sayısal değer)",
}

// FieldIsVisible reports whether a field should be asked/considered given
// collected data. A field without ShowIf is always visible; a field with
// ShowIf is visible only when its dependency field's collected value
// (case-insensitively) matches one of the trigger values.
func FieldIsVisible(field model.FieldConfig, collected map[string]string) bool {
	if field.ShowIf == nil {
		return true
	}
	showIf := field.ShowIf
	if showIf.Field == "" {
		return true // malformed show_if — treat as always visible
	}

	depVal, has := collected[showIf.Field]
	if !has || depVal == "" || depVal == skipSentinel {
		return false // dependency not yet collected -> conditional field invisible
	}

	depValLower := strings.ToLower(strings.TrimSpace(depVal))
	for _, v := range showIf.Values {
		if strings.ToLower(v) == depValLower {
			return true
		}
	}
	return false
}

// IsComplete reports whether every visible required field has a non-empty,
// non-skip value in collected.
func IsComplete(fields []model.FieldConfig, collected map[string]string) bool {
	for _, f := range fields {
		if !f.Required || !FieldIsVisible(f, collected) {
			continue
		}
		val := collected[f.Key]
		if val == "" || val == skipSentinel {
			return false
		}
	}
	return true
}

// AllFieldsHandled reports whether every visible field (required or
// optional) is either filled or explicitly skipped. Invisible fields are not
// counted — they are evaluated again if visibility changes.
func AllFieldsHandled(fields []model.FieldConfig, collected map[string]string) bool {
	for _, f := range fields {
		if !FieldIsVisible(f, collected) {
			continue
		}
		if collected[f.Key] == "" {
			return false
		}
	}
	return true
}

// GetNextField returns the first visible required field not yet collected,
// or nil. A value of SkipSentinel counts as not-filled: required fields
// cannot be skipped.
func GetNextField(fields []model.FieldConfig, collected map[string]string) *model.FieldConfig {
	for i := range fields {
		f := &fields[i]
		if !f.Required || !FieldIsVisible(*f, collected) {
			continue
		}
		val := collected[f.Key]
		if val == "" || val == skipSentinel {
			return f
		}
	}
	return nil
}

// GetNextOptionalField returns the first visible optional field not yet
// filled or skipped, or nil.
func GetNextOptionalField(fields []model.FieldConfig, collected map[string]string) *model.FieldConfig {
	for i := range fields {
		f := &fields[i]
		if f.Required || !FieldIsVisible(*f, collected) {
			continue
		}
		if collected[f.Key] == "" {
			return f
		}
	}
	return nil
}

func remainingRequired(fields []model.FieldConfig, collected map[string]string) []model.FieldConfig {
	var out []model.FieldConfig
	for _, f := range fields {
		if !f.Required || !FieldIsVisible(f, collected) {
			continue
		}
		val := collected[f.Key]
		if val == "" || val == skipSentinel {
			out = append(out, f)
		}
	}
	return out
}

// formatQuestion builds the question string for a field, including options
// and validation hints.
func formatQuestion(field model.FieldConfig, optional bool) string {
	question := field.Question
	if question == "" {
		label := field.Label
		if label == "" {
			label = field.Key
		}
		question = label + " nedir?"
	}

	if len(field.Options) > 0 {
		var allowed []string
		for _, o := range field.Options {
			o = strings.TrimSpace(o)
			if o != "" {
				allowed = append(allowed, o)
			}
		}
		if len(allowed) > 0 {
			question = question + " (Seçenekler: " + strings.Join(allowed, ", ") + ")"
		}
	} else if field.Validation != nil && *field.Validation != model.ValidationText {
		if hint, ok := validationHints[*field.Validation]; ok {
			question = question + " " + hint
		}
	}

	if optional {
		question = question + " (Opsiyonel — istemiyorsanız 'geç' diyebilirsiniz)"
	}
	return question
}

func fieldLabel(f model.FieldConfig) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Key
}
