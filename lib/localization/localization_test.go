package localization

import (
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/nicksnyder/go-i18n/v2/i18n"
)

var requiredKeys = []string{
	"instructions_text", "instructions_math", "instructions_grid",
	"instructions_slider", "instructions_audio", "error_failed_to_create",
	"error_missing_parameters", "demo_title", "demo_new_challenge", "demo_verify", "lang",
}

func TestLocalizationService(t *testing.T) {
	service := NewLocalizationService()

	for _, tt := range []struct {
		lang string
		want string
	}{
		{lang: "en", want: "Enter the characters you see"},
		{lang: "de", want: "Gib die angezeigten Zeichen ein"},
		{lang: "fr", want: "Saisissez les caractères affichés"},
		{lang: "xx", want: "Enter the characters you see"},
	} {
		t.Run(tt.lang, func(t *testing.T) {
			localizer := service.GetLocalizer(tt.lang)
			result := localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: "instructions_text"})
			if result != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, result)
			}
		})
	}

	t.Run("All required keys exist in every language", func(t *testing.T) {
		for _, tag := range service.Languages() {
			localizer := service.GetLocalizer(tag.String())
			for _, key := range requiredKeys {
				result, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: key})
				if err != nil || result == "" {
					t.Errorf("%s: key %q missing: %v", tag, key, err)
				}
			}
		}
	})
}

func TestTemplateData(t *testing.T) {
	sl := ForLanguage("en")
	if got := sl.TData("instructions_grid", map[string]any{"Category": "traffic lights"}); got != "Select all images containing traffic lights" {
		t.Errorf("wrong grid instructions: %q", got)
	}

	if got := sl.T("no_such_key"); got != "no_such_key" {
		t.Errorf("missing keys should fall back to the message ID, got %q", got)
	}
}

func TestGetLocalizerFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/?lang=fr", nil)
	r.Header.Set("Accept-Language", "de-DE,de;q=0.9")

	if got := GetLocalizer(r).T("demo_verify"); got != "Vérifier" {
		t.Errorf("lang query parameter should win, got %q", got)
	}

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Accept-Language", "de-DE,de;q=0.9")

	if got := GetLocalizer(r).T("demo_verify"); got != "Prüfen" {
		t.Errorf("Accept-Language should be honored, got %q", got)
	}
}

func TestLanguagesSorted(t *testing.T) {
	var langs []string
	for _, tag := range NewLocalizationService().Languages() {
		langs = append(langs, tag.String())
	}
	sort.Strings(langs)

	want := []string{"de", "en", "fr"}
	if len(langs) != len(want) {
		t.Fatalf("wanted languages %v, got %v", want, langs)
	}
	for i := range want {
		if langs[i] != want[i] {
			t.Errorf("wanted languages %v, got %v", want, langs)
		}
	}
}
