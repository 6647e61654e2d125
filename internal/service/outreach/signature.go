package outreach

import (
	"context"
	"errors"

	"github.com/mact/ops-server/internal/domain"
)

// resolveSignature picks the signature appended to every outgoing email.
// Priority: campaign-specific override, then the automation default for
// automation-sourced campaigns, then the tenant's general default. A missing
// setting is not an error; the email simply goes out unsigned.
func resolveSignature(ctx context.Context, settings SettingsRepository, c *domain.Campaign) (string, error) {
	if c.Signature != "" {
		return c.Signature, nil
	}

	if c.Source == "automation" {
		sig, err := settings.Get(ctx, c.TenantID, domain.SettingSignatureAutomation)
		if err == nil && sig != "" {
			return sig, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}

	sig, err := settings.Get(ctx, c.TenantID, domain.SettingSignatureGeneral)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sig, nil
}
