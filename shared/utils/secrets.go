package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretsDir - стандартный путь Docker Secrets. Переменная для тестов.
var SecretsDir = "/run/secrets"

// ReadSecret читает секрет из файла Docker Secrets. Если файла нет,
// используется переменная окружения с именем секрета в верхнем регистре
// (jwt_secret -> JWT_SECRET).
func ReadSecret(secretName string) (string, error) {
	filePath := filepath.Join(SecretsDir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err == nil {
		secret := strings.TrimSpace(string(secretBytes))
		if secret == "" {
			return "", fmt.Errorf("secret file %s is empty", filePath)
		}
		return secret, nil
	}

	envName := strings.ToUpper(secretName)
	if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("failed to read secret file %s and %s is not set: %w", filePath, envName, err)
}

// TokenPrefix возвращает начало токена для логирования.
func TokenPrefix(token string) string {
	const prefixLen = 10
	if len(token) < prefixLen {
		return token
	}
	return token[:prefixLen] + "..."
}
