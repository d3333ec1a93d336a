package secrets

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups this app's secrets in the OS keychain.
	KeyringService = "jobtrack"
	webhookAccount = "jobtrack:webhook-url"
	webhookEnvVar  = "JOBTRACK_WEBHOOK_URL"
)

// GetWebhookURL resolves the webhook URL: environment first (CI, cron),
// then the OS keychain. Empty return means not configured — callers decide
// whether that is fatal.
func GetWebhookURL() string {
	if url := strings.TrimSpace(os.Getenv(webhookEnvVar)); url != "" {
		return url
	}
	url, err := keyring.Get(KeyringService, webhookAccount)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(url)
}

func SetWebhookURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("webhook URL is empty")
	}
	return keyring.Set(KeyringService, webhookAccount, url)
}

func DeleteWebhookURL() error {
	return keyring.Delete(KeyringService, webhookAccount)
}
