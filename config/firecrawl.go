package config

import (
	"github.com/pkg/errors"
)

type FireCrawlConfig struct {
	APIKey string `yaml:"apiKey"`
	APIUrl string `yaml:"apiUrl"`
	// SiteURL is the support site searched by web_search.
	SiteURL  string `yaml:"siteUrl"`
	MaxPages int    `yaml:"maxPages"`
}

func (c *FireCrawlConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("api_key is required")
	}
	if c.SiteURL == "" {
		return errors.New("site_url is required")
	}
	return nil
}

func NewFireCrawlConfig() *FireCrawlConfig {
	return &FireCrawlConfig{
		APIUrl:   "https://api.firecrawl.dev",
		MaxPages: 2,
	}
}

func (c *FireCrawlConfig) applyEnv() {
	setString(&c.APIKey, "FIRECRAWL_API_KEY")
	setString(&c.APIUrl, "FIRECRAWL_API_URL")
	setString(&c.SiteURL, "SUPPORT_SITE_URL")
}
