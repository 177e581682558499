package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/wdm0006/songlake/pkg/apperrors"
)

const credentialsSection = "AWS CREDS"

// loadCredentials fills the access key pair from an ini file with an
// [AWS CREDS] section. Keys already set from the environment win. A missing
// file is only an error when required.
func (a *AWSConfig) loadCredentials(path string, required bool) error {
	ok, err := fileExists(path)
	if err != nil {
		return fmt.Errorf("credentials %s: %w", path, err)
	}
	if !ok {
		if required {
			return fmt.Errorf("%w: credentials file %s not found", apperrors.ErrMissingCredentials, path)
		}
		return nil
	}
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("%w: credentials %s: %v", apperrors.ErrInvalidConfig, path, err)
	}
	sec, err := f.GetSection(credentialsSection)
	if err != nil {
		return fmt.Errorf("%w: %s has no [%s] section", apperrors.ErrMissingCredentials, path, credentialsSection)
	}
	id := sec.Key("AWS_ACCESS_KEY_ID").String()
	secret := sec.Key("AWS_SECRET_ACCESS_KEY").String()
	if id == "" || secret == "" {
		return fmt.Errorf("%w: %s needs AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY", apperrors.ErrMissingCredentials, path)
	}
	if a.AccessKeyID == "" && a.SecretAccessKey == "" {
		a.AccessKeyID = id
		a.SecretAccessKey = secret
	}
	return nil
}
