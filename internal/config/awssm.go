package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// resolveAWSSecretsManager resolves an AWS Secrets Manager reference.
// Format: secret-name, or secret-name#key for a JSON secret such as the
// ones RDS generates ({"username": ..., "password": ...}).
func resolveAWSSecretsManager(ref string) (string, error) {
	name, key, _ := strings.Cut(ref, "#")

	ctx := context.Background()
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("loading AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg)
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("getting secret %q: %w", name, err)
	}

	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q has no string value (binary secrets not supported)", name)
	}
	if key == "" {
		return *out.SecretString, nil
	}
	return secretField(name, *out.SecretString, key)
}

// secretField extracts one string field from a JSON secret.
func secretField(name, secret, key string) (string, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(secret), &fields); err != nil {
		return "", fmt.Errorf("secret %q is not a JSON object: %w", name, err)
	}
	v, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, name)
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v), nil
	}
	return s, nil
}
