package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-insights/models"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "WORKERS", "TOP_GAPS", "STORE_PATH", "MONGO_URI"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 15, cfg.TopGaps)
	assert.Equal(t, "content_store.json", cfg.StorePath)
	assert.Empty(t, cfg.MongoURI)
	assert.Contains(t, cfg.DatabaseURL, "geo_insights")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKERS", "8")
	t.Setenv("TOP_GAPS", "not-a-number")
	t.Setenv("RATE_LIMIT", "-3")
	t.Setenv("REQUEST_TIMEOUT", "30")
	t.Setenv("DATABASE_URL", "sqlite://geo.db")

	cfg := Load()
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 15, cfg.TopGaps)
	assert.Equal(t, 1, cfg.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, "sqlite://geo.db", cfg.DatabaseURL)
}

func writeTargets(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTargets(t *testing.T) {
	path := writeTargets(t, `
owned:
  name: Acme
  site: https://acme.example/
  max_pages: 10
competitors:
  - name: Rival
    urls:
      - https://rival.example/widgets
      - https://rival.example/gizmos
  - name: Bravo
    site: https://bravo.example/
third_party:
  - name: Review Hub
    urls: [https://reviews.example/acme-vs-rival]
`)
	targets, err := LoadTargets(path)
	require.NoError(t, err)

	assert.Equal(t, models.EntityOwnedBrand, targets.Owned.Type)
	assert.Equal(t, 10, targets.Owned.MaxPages)
	assert.Equal(t, []string{"Rival", "Bravo"}, targets.CompetitorNames())
	assert.Equal(t, models.EntityCompetitor, targets.Competitors[0].Type)
	assert.Len(t, targets.Competitors[0].URLs, 2)
	assert.Equal(t, models.EntityThirdParty, targets.ThirdParty[0].Type)

	all := targets.All()
	require.Len(t, all, 4)
	assert.Equal(t, "Acme", all[0].Name)
	assert.Equal(t, "Review Hub", all[3].Name)
}

func TestLoadTargets_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing name":  "owned: {site: https://acme.example/}\n",
		"no urls":       "owned: {name: Acme}\n",
		"duplicate":     "owned: {name: Acme, site: https://a.example/}\ncompetitors:\n  - {name: Acme, site: https://b.example/}\n",
		"bad type":      "owned: {name: Acme, type: partner, site: https://a.example/}\n",
		"not yaml":      "owned: [unterminated\n",
	}
	for name, body := range cases {
		_, err := LoadTargets(writeTargets(t, body))
		assert.Error(t, err, name)
	}

	_, err := LoadTargets(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
