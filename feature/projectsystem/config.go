package projectsystem

import (
	"time"

	"crm-bridge/core/models"
	"crm-bridge/core/remote"
)

// Config holds the project system connection settings.
type Config struct {
	// BaseURL is the API root.
	BaseURL string `mapstructure:"base_url" default:"https://www.wrike.com/api/v4"`
	// Token is the permanent access token.
	Token string `mapstructure:"token" default:""`
	// TimeoutSeconds bounds connection setup and response headers.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// CompanyFolder holds one task per company.
	CompanyFolder string `mapstructure:"company_folder" default:""`
	// ContactFolder holds one task per contact.
	ContactFolder string `mapstructure:"contact_folder" default:""`
	// DealFolder holds one task per deal.
	DealFolder string `mapstructure:"deal_folder" default:""`
	// Limits configures rate limiting and retries.
	Limits remote.Config `mapstructure:"limits"`
}

// Folders returns the folder id of each configured entity type.
func (c Config) Folders() map[models.EntityType]string {
	out := make(map[models.EntityType]string, 3)
	for et, id := range map[models.EntityType]string{
		models.EntityCompany: c.CompanyFolder,
		models.EntityContact: c.ContactFolder,
		models.EntityDeal:    c.DealFolder,
	} {
		if id != "" {
			out[et] = id
		}
	}
	return out
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
