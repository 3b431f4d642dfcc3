package aws_handler

import (
	"context"
	"fmt"

	"depotbook/src/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
)

type secretsAPI interface {
	GetSecretValueWithContext(ctx aws.Context, input *secretsmanager.GetSecretValueInput, opts ...request.Option) (*secretsmanager.GetSecretValueOutput, error)
}

type SecretManager struct {
	svc secretsAPI
}

func NewSecretManager(svc secretsAPI) *SecretManager {
	return &SecretManager{svc: svc}
}

func (s *SecretManager) GetSecretValue(ctx context.Context, secretID string) (string, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	}

	result, err := s.svc.GetSecretValueWithContext(ctx, input)
	if err != nil {
		return "", err
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretID)
	}
	return *result.SecretString, nil
}

// ApplySecrets replaces the database password and JWT key of cfg with the
// values of the configured secrets. Empty secret ids are skipped.
func (s *SecretManager) ApplySecrets(ctx context.Context, cfg *config.Config) error {
	if id := cfg.Secrets.DBPasswordSecret; id != "" {
		value, err := s.GetSecretValue(ctx, id)
		if err != nil {
			return fmt.Errorf("db password secret: %w", err)
		}
		cfg.Databases.SQL.Password = value
	}
	if id := cfg.Secrets.JWTSecretSecret; id != "" {
		value, err := s.GetSecretValue(ctx, id)
		if err != nil {
			return fmt.Errorf("jwt secret: %w", err)
		}
		cfg.Auth.JWTSecret = value
	}
	return nil
}
