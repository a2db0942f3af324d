package localization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalizeJoinLiveEvent(t *testing.T) {
	c := NewCatalog("en")
	const link = "https://live.example/ev1"

	tests := []struct {
		locale string
		want   string
	}{
		{"en-US", `Join the live event: <a href="` + link + `">` + link + `</a>`},
		{"fr-FR", `Rejoindre l'événement en direct : <a href="` + link + `">` + link + `</a>`},
		{"de", `Am Live-Event teilnehmen: <a href="` + link + `">` + link + `</a>`},
		{"", `Join the live event: <a href="` + link + `">` + link + `</a>`},
		{"ja-JP", `Join the live event: <a href="` + link + `">` + link + `</a>`},
		{"not a locale!", `Join the live event: <a href="` + link + `">` + link + `</a>`},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Localize(tt.locale, KeyJoinLiveEvent, link))
		})
	}
}

func TestDefaultLocaleApplies(t *testing.T) {
	c := NewCatalog("fr")
	assert.Contains(t, c.Localize("", KeyJoinLiveEvent, "x"), "Rejoindre")
}

func TestUnknownKeyIsReturnedAsIs(t *testing.T) {
	c := NewCatalog("en")
	assert.Equal(t, "missing_key", c.Localize("en", "missing_key"))
}
