package i18n

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		tag  string
		want Language
	}{
		{"ko", Korean},
		{"en", English},
		{"EN", English},
		{"en-US", English},
		{"ko_KR", Korean},
		{" en ", English},
		{"fi", Default},
		{"", Default},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.tag))
		})
	}
}

func TestToggle_IsReversible(t *testing.T) {
	for _, lang := range Languages() {
		toggled := Toggle(lang)
		assert.NotEqual(t, lang, toggled)
		assert.Equal(t, lang, Toggle(toggled))
	}
}

func TestFor_UnknownLanguageFallsBack(t *testing.T) {
	assert.Equal(t, For(Default), For(Language("xx")))
}

func TestFor_ReturnsCopy(t *testing.T) {
	s := For(English)
	s.ReportTitle = "changed"
	s.Metrics.Hydration = "changed"

	again := For(English)
	assert.Equal(t, "Skin Analysis Report", again.ReportTitle)
	assert.NotEqual(t, "changed", again.Metrics.Hydration)
}

// Every string in every table must be filled in, otherwise a toggle would
// show a blank label in one language.
func TestTables_NoEmptyStrings(t *testing.T) {
	for _, lang := range Languages() {
		checkNoEmpty(t, string(lang), reflect.ValueOf(For(lang)))
	}
}

func checkNoEmpty(t *testing.T, path string, v reflect.Value) {
	t.Helper()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		name := path + "." + v.Type().Field(i).Name
		switch field.Kind() {
		case reflect.String:
			assert.NotEmpty(t, field.String(), name)
		case reflect.Struct:
			checkNoEmpty(t, name, field)
		}
	}
}

func TestTables_LanguagesDiffer(t *testing.T) {
	ko := For(Korean)
	en := For(English)
	assert.NotEqual(t, ko.AnalysisFailed, en.AnalysisFailed)
	assert.NotEqual(t, ko.Metrics.Hydration, en.Metrics.Hydration)
	assert.Equal(t, "AI analysis failed. Please try again with a clearer photo.", en.AnalysisFailed)
}
