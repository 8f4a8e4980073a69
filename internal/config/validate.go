package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Stage names accepted by Validate and MissingCredentials.
const (
	StageHomepages = "homepages"
	StageProfiles  = "profiles"
	StageFeatures  = "features"
)

// Validate checks the settings that would make a run misbehave. Missing
// credentials are not errors; see MissingCredentials.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for driver "+c.Store.Driver)
		}
	case "none", "":
	default:
		errs = append(errs, "store.driver must be sqlite, postgres or none")
	}

	switch c.Search.Provider {
	case "serper", "jina":
	default:
		errs = append(errs, "search.provider must be serper or jina")
	}

	if !strings.Contains(c.Homepage.QueryTemplate, "%s") {
		errs = append(errs, "homepage.query_template must contain %s")
	}
	if c.Homepage.NumResults < 1 || c.Homepage.NumResults > 100 {
		errs = append(errs, "homepage.num_results must be between 1 and 100")
	}
	if c.Profile.MaxRetries < 0 {
		errs = append(errs, "profile.max_retries must be >= 0")
	}
	if c.Features.FetchAttempts < 1 {
		errs = append(errs, "features.fetch_attempts must be >= 1")
	}
	if c.Anthropic.WindowSize < 0 || c.Anthropic.WindowSecs < 0 {
		errs = append(errs, "anthropic.window_calls and anthropic.window_secs must be >= 0")
	}
	if c.Homepage.PacingMs < 0 || c.Profile.PacingMs < 0 || c.Features.PacingMs < 0 {
		errs = append(errs, "pacing_ms values must be >= 0")
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// MissingCredentials lists the env variables a stage needs but that are
// unset.
func (c *Config) MissingCredentials(stage string) []string {
	var missing []string
	switch stage {
	case StageHomepages:
		if c.Search.Provider == "jina" {
			if c.Jina.Key == "" {
				missing = append(missing, "ENRICH_JINA_KEY")
			}
		} else if c.Serper.Key == "" {
			missing = append(missing, "ENRICH_SERPER_KEY")
		}
	case StageProfiles:
		if c.BigPicture.Key == "" {
			missing = append(missing, "ENRICH_BIGPICTURE_KEY")
		}
	case StageFeatures:
		if c.Anthropic.Key == "" {
			missing = append(missing, "ENRICH_ANTHROPIC_KEY")
		}
	}
	return missing
}
