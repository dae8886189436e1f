package modeengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidinsight-tech/queryon/internal/model"
)

func validationPtr(v model.FieldValidation) *model.FieldValidation { return &v }

func sampleFields() []model.FieldConfig {
	return []model.FieldConfig{
		{Key: "event_type", Label: "Etkinlik Türü", Required: true, Options: []string{"Düğün", "Nişan"}},
		{Key: "location", Label: "Lokasyon", Required: true, Options: []string{"Stüdyo", "Otel / Ev", "Şehir Dışı"}},
		{Key: "artist", Label: "Sanatçı", Required: true},
		{Key: "extra_people", Label: "Ek Kişi Sayısı", Required: false, Validation: validationPtr(model.ValidationNumber)},
		{
			Key: "travel_notes", Label: "Seyahat Notu", Required: true,
			ShowIf: &model.ShowIf{Field: "location", Values: []string{"Şehir Dışı"}},
		},
	}
}

func TestFieldIsVisible_NoShowIfAlwaysVisible(t *testing.T) {
	assert.True(t, FieldIsVisible(model.FieldConfig{Key: "x"}, map[string]string{}))
}

func TestFieldIsVisible_ShowIfHiddenUntilDependencyCollected(t *testing.T) {
	f := model.FieldConfig{Key: "travel_notes", ShowIf: &model.ShowIf{Field: "location", Values: []string{"Şehir Dışı"}}}
	assert.False(t, FieldIsVisible(f, map[string]string{}))
	assert.False(t, FieldIsVisible(f, map[string]string{"location": "Stüdyo"}))
	assert.True(t, FieldIsVisible(f, map[string]string{"location": "şehir dışı"}))
}

func TestFieldIsVisible_SkippedDependencyKeepsFieldHidden(t *testing.T) {
	f := model.FieldConfig{Key: "travel_notes", ShowIf: &model.ShowIf{Field: "location", Values: []string{"Şehir Dışı"}}}
	assert.False(t, FieldIsVisible(f, map[string]string{"location": skipSentinel}))
}

func TestIsComplete_SkipDoesNotCountForRequired(t *testing.T) {
	fields := sampleFields()
	collected := map[string]string{
		"event_type": "Düğün",
		"location":   "Stüdyo",
		"artist":     skipSentinel,
	}
	assert.False(t, IsComplete(fields, collected))
}

func TestIsComplete_InvisibleRequiredFieldNotNeeded(t *testing.T) {
	fields := sampleFields()
	collected := map[string]string{
		"event_type": "Düğün",
		"location":   "Stüdyo",
		"artist":     "İzel",
	}
	assert.True(t, IsComplete(fields, collected))
}

func TestGetNextField_ReturnsFirstMissingRequiredInOrder(t *testing.T) {
	fields := sampleFields()
	f := GetNextField(fields, map[string]string{"event_type": "Düğün"})
	require.NotNil(t, f)
	assert.Equal(t, "location", f.Key)
}

func TestGetNextField_SkipsInvisibleConditionalField(t *testing.T) {
	fields := sampleFields()
	collected := map[string]string{
		"event_type": "Düğün",
		"location":   "Stüdyo",
		"artist":     "İzel",
	}
	assert.Nil(t, GetNextField(fields, collected))
}

func TestGetNextField_AsksConditionalFieldWhenTriggered(t *testing.T) {
	fields := sampleFields()
	collected := map[string]string{
		"event_type": "Düğün",
		"location":   "Şehir Dışı",
		"artist":     "İzel",
	}
	f := GetNextField(fields, collected)
	require.NotNil(t, f)
	assert.Equal(t, "travel_notes", f.Key)
}

func TestGetNextOptionalField(t *testing.T) {
	fields := sampleFields()
	collected := map[string]string{
		"event_type": "Düğün", "location": "Stüdyo", "artist": "İzel",
	}
	f := GetNextOptionalField(fields, collected)
	require.NotNil(t, f)
	assert.Equal(t, "extra_people", f.Key)

	collected["extra_people"] = skipSentinel
	assert.Nil(t, GetNextOptionalField(fields, collected))
}

func TestAllFieldsHandled(t *testing.T) {
	fields := sampleFields()
	collected := map[string]string{
		"event_type": "Düğün", "location": "Stüdyo", "artist": "İzel",
	}
	assert.False(t, AllFieldsHandled(fields, collected))

	collected["extra_people"] = skipSentinel
	assert.True(t, AllFieldsHandled(fields, collected))
}

func TestFormatQuestion_IncludesOptionsAndOptionalSuffix(t *testing.T) {
	f := model.FieldConfig{Key: "location", Question: "Nerede?", Options: []string{"Stüdyo", "Otel / Ev"}}
	q := formatQuestion(f, true)
	assert.Contains(t, q, "Seçenekler: Stüdyo, Otel / Ev")
	assert.Contains(t, q, "Opsiyonel")
}

func TestFormatQuestion_ValidationHintWithoutOptions(t *testing.T) {
	f := model.FieldConfig{Key: "phone", Question: "Telefon numaranız?", Validation: validationPtr(model.ValidationPhone)}
	q := formatQuestion(f, false)
	assert.Contains(t, q, "05XX XXX XX XX")
}
