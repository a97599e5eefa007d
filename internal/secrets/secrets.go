package secrets

import (
	"fmt"
	"os"
	"strings"
)

// GetSecret retrieves a secret value. KEY_FILE (Docker/Kubernetes secret
// mounts) takes precedence over KEY; defaultValue applies when neither is set.
func GetSecret(envKey string, defaultValue string) (string, error) {
	if filePath := strings.TrimSpace(os.Getenv(envKey + "_FILE")); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("read secret file for %s: %w", envKey, err)
		}
		value := strings.TrimSpace(string(data))
		if value == "" {
			return "", fmt.Errorf("secret file for %s is empty", envKey)
		}
		return value, nil
	}

	if value := os.Getenv(envKey); value != "" {
		return value, nil
	}

	return defaultValue, nil
}

// GetOptionalSecret retrieves a secret with a default value, never fails.
// Unreadable secret files fall back to the default; config validation then
// reports the missing value.
func GetOptionalSecret(envKey string, defaultValue string) string {
	value, err := GetSecret(envKey, defaultValue)
	if err != nil {
		return defaultValue
	}
	return value
}
