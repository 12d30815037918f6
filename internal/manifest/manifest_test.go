package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianApollo/Ops-dashboard/internal/launch"
	"github.com/BrianApollo/Ops-dashboard/internal/validate"
)

const validManifest = `
account:
  pixel_id: "px-9"
campaign:
  name: Spring launch
  objective: OUTCOME_SALES
  status: paused
  daily_budget: 5000
adset:
  name: Spring US
  billing_event: IMPRESSIONS
  optimization_goal: OFFSITE_CONVERSIONS
  targeting:
    geo_locations:
      countries: [US]
creative:
  message: Try it
  headline: New
  link: https://shop.example.com/spring
  call_to_action: shop_now
media:
  - type: video
    name: Hero Cut
    url: https://cdn.example.com/hero.mp4
    fallback_url: https://backup.example.com/hero.mp4
  - type: Image
    name: Still 1
    url: https://cdn.example.com/still1.jpg
  - type: video
    name: Existing
    video_id: "v-77"
    thumbnail_url: https://cdn.example.com/existing.jpg
`

func TestParse_Valid(t *testing.T) {
	m, err := Parse([]byte(validManifest))
	require.NoError(t, err)

	assert.Equal(t, "PAUSED", m.Campaign.Status)
	assert.Equal(t, "SHOP_NOW", m.Creative.CallToAction)
	require.Len(t, m.Media, 3)
	assert.Equal(t, launch.MediaImage, m.Media[1].Type)
	assert.Equal(t, "v-77", m.Media[2].VideoID)

	geo, ok := m.AdSet.Targeting["geo_locations"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"US"}, geo["countries"])
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(validManifest + "\nbudget: 10\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict manifest parse error")
}

func TestParse_RejectsMultipleDocuments(t *testing.T) {
	_, err := Parse([]byte(validManifest + "\n---\nmedia: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, launch.ErrNoMedia)
}

func TestValidate_EnumeratesProblems(t *testing.T) {
	doc := `
campaign:
  objective: OUTCOME_SALES
adset:
  name: s
  billing_event: IMPRESSIONS
  optimization_goal: REACH
  daily_budget: 100
creative:
  link: ftp://example.com
media:
  - type: audio
    name: a
    url: https://cdn.example.com/a.mp3
  - type: image
    name: " B "
    url: http://cdn.example.com/
  - type: image
    name: b
    url: https://cdn.example.com/b.png
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)

	var verr validate.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"campaign.name"}, verr.Missing())

	fields := make([]string, 0, len(verr.Errors()))
	for _, e := range verr.Errors() {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"campaign.name",
		"creative.link",
		"media[0].type",
		"media[1].url",
		"media[2].name",
	}, fields)
}

func TestValidate_DuplicateNamesFoldCase(t *testing.T) {
	doc := strings.Replace(validManifest, "name: Still 1", "name: hero cut", 1)
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicates "Hero Cut"`)
}

func TestValidate_BudgetRequired(t *testing.T) {
	doc := strings.Replace(validManifest, "  daily_budget: 5000\n", "", 1)
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily budget")
}

func TestParams_MergesAccount(t *testing.T) {
	m, err := Parse([]byte(validManifest))
	require.NoError(t, err)

	p := m.Params(Account{AccountID: "act_123", PageID: "page-1", PixelID: "px-1"})
	assert.Equal(t, "123", p.AccountID)
	assert.Equal(t, "page-1", p.PageID)
	assert.Equal(t, "px-9", p.PixelID)
	assert.Equal(t, "Spring launch", p.Campaign.Name)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "launch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validManifest), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Inputs(), 3)

	_, err = Load(filepath.Join(dir, "launch.json"))
	assert.ErrorContains(t, err, "only YAML")
}
