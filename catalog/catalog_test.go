package catalog

import "testing"

func testMessages() map[string]map[string]string {
	return map[string]map[string]string{
		"en": {
			"invalid_credentials": "These credentials do not match our records.",
			"updated_settings":    "Successfully updated settings",
			"inactive_logout":     "You were logged out due to inactivity.",
		},
		"pt-BR": {
			"invalid_credentials": "Estas credenciais não correspondem aos nossos registros.",
		},
	}
}

func TestNewRequiresBaseLocale(t *testing.T) {
	_, err := New(map[string]map[string]string{
		"pt-BR": {"invalid_credentials": "..."},
	})
	if err == nil {
		t.Fatal("expected error when base locale is missing")
	}
}

func TestHasAndTranslateBaseLocale(t *testing.T) {
	c, err := New(testMessages())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	view := c.Base()

	if !view.Has("invalid_credentials") {
		t.Fatal("expected base locale to have invalid_credentials")
	}
	if got := view.Translate("invalid_credentials"); got != "These credentials do not match our records." {
		t.Fatalf("unexpected translation: %q", got)
	}
}

func TestUnknownKeyIsNotAnError(t *testing.T) {
	c, err := New(testMessages())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	view := c.Base()

	if view.Has("surprise_logout") {
		t.Fatal("expected unknown key to report false")
	}
	// Translate of an unknown key degrades to the key itself.
	if got := view.Translate("surprise_logout"); got != "surprise_logout" {
		t.Fatalf("unexpected fallback: %q", got)
	}
}

func TestMatchPrefersRequestedLocale(t *testing.T) {
	c, err := New(testMessages())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	view := c.Match("pt-BR")
	got := view.Translate("invalid_credentials")
	if got != "Estas credenciais não correspondem aos nossos registros." {
		t.Fatalf("expected pt-BR translation, got %q", got)
	}
}

func TestMatchFallsBackToBasePerKey(t *testing.T) {
	c, err := New(testMessages())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	view := c.Match("pt-BR")
	if !view.Has("inactive_logout") {
		t.Fatal("expected fallback to base locale for missing key")
	}
	if got := view.Translate("inactive_logout"); got != "You were logged out due to inactivity." {
		t.Fatalf("expected base translation, got %q", got)
	}
}

func TestMatchUnknownLocaleUsesBase(t *testing.T) {
	c, err := New(testMessages())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	view := c.Match("zz-highly-invalid")
	if got := view.Translate("updated_settings"); got != "Successfully updated settings" {
		t.Fatalf("expected base translation, got %q", got)
	}
}

func TestMatchSnapsDeterministically(t *testing.T) {
	// Two locales share the "en" base; an unregistered variant must
	// resolve to the same one on every call.
	c, err := New(map[string]map[string]string{
		"en": {
			"updated_settings": "Successfully updated settings",
		},
		"en-GB": {
			"updated_settings": "Settings updated successfully",
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	want := c.Match("en-AU").Translate("updated_settings")
	if want != "Successfully updated settings" {
		t.Fatalf("expected snap to the base locale, got %q", want)
	}
	for i := 0; i < 50; i++ {
		if got := c.Match("en-AU").Translate("updated_settings"); got != want {
			t.Fatalf("match drifted on iteration %d: %q vs %q", i, got, want)
		}
	}
}

func TestDefaultCatalogCoversEngineKeys(t *testing.T) {
	view := Default().Base()
	for _, key := range []string{"invalid_credentials", "updated_settings"} {
		if !view.Has(key) {
			t.Fatalf("expected default catalog to define %s", key)
		}
	}
}
