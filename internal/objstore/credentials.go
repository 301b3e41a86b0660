package objstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
)

// Credentials locate and authorize access to an R2 bucket.
type Credentials struct {
	AccountID       string `json:"accountId"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Bucket          string `json:"bucketName"`
	PublicURL       string `json:"publicUrl,omitempty"`
}

// Complete reports whether every required field is set.
func (c Credentials) Complete() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Bucket != ""
}

// CredentialSource yields credentials if it has a complete set.
type CredentialSource struct {
	Name string
	Load func() (Credentials, bool, error)
}

// LoadCredentials tries sources in order and returns the first complete
// set along with the name of the source that provided it. If none match
// the error wraps ErrNotConfigured and any source failures.
func LoadCredentials(sources ...CredentialSource) (Credentials, string, error) {
	var errs []error
	for _, src := range sources {
		c, ok, err := src.Load()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		if ok && c.Complete() {
			return c, src.Name, nil
		}
	}
	return Credentials{}, "", errors.Join(append([]error{apperr.ErrNotConfigured}, errs...)...)
}

// FromValues uses credentials given directly, typically from the config file.
func FromValues(c Credentials) CredentialSource {
	return CredentialSource{Name: "config", Load: func() (Credentials, bool, error) {
		return c, c.Complete(), nil
	}}
}

// Environment variable names read by FromEnv.
const (
	EnvAccountID       = "R2_ACCOUNT_ID"
	EnvAccessKeyID     = "R2_ACCESS_KEY_ID"
	EnvSecretAccessKey = "R2_SECRET_ACCESS_KEY"
	EnvBucket          = "R2_BUCKET_NAME"
	EnvPublicURL       = "R2_PUBLIC_URL"
)

// FromEnv reads the R2_* variables through getenv (os.Getenv when nil).
func FromEnv(getenv func(string) string) CredentialSource {
	if getenv == nil {
		getenv = os.Getenv
	}
	return CredentialSource{Name: "env", Load: func() (Credentials, bool, error) {
		c := Credentials{
			AccountID:       getenv(EnvAccountID),
			AccessKeyID:     getenv(EnvAccessKeyID),
			SecretAccessKey: getenv(EnvSecretAccessKey),
			Bucket:          getenv(EnvBucket),
			PublicURL:       getenv(EnvPublicURL),
		}
		return c, c.Complete(), nil
	}}
}

// FromJSONFile reads a credentials file. A missing file is not an error.
func FromJSONFile(path string) CredentialSource {
	return CredentialSource{Name: "file:" + path, Load: func() (Credentials, bool, error) {
		if path == "" {
			return Credentials{}, false, nil
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, false, nil
		}
		if err != nil {
			return Credentials{}, false, err
		}
		var c Credentials
		if err := json.Unmarshal(data, &c); err != nil {
			return Credentials{}, false, fmt.Errorf("parse %s: %w", path, err)
		}
		return c, c.Complete(), nil
	}}
}

// Keyring item keys read by FromKeyring.
const (
	KeyringAccountID       = "r2_account_id"
	KeyringAccessKeyID     = "r2_access_key_id"
	KeyringSecretAccessKey = "r2_secret_access_key"
	KeyringBucket          = "r2_bucket_name"
	KeyringPublicURL       = "r2_public_url"
)

// FromKeyring reads credentials stored in the OS keyring.
func FromKeyring(ring keyring.Keyring) CredentialSource {
	return CredentialSource{Name: "keyring", Load: func() (Credentials, bool, error) {
		get := func(key string) (string, error) {
			item, err := ring.Get(key)
			if errors.Is(err, keyring.ErrKeyNotFound) {
				return "", nil
			}
			if err != nil {
				return "", fmt.Errorf("getting %q: %w", key, err)
			}
			return string(item.Data), nil
		}
		var c Credentials
		for _, f := range []struct {
			key string
			dst *string
		}{
			{KeyringAccountID, &c.AccountID},
			{KeyringAccessKeyID, &c.AccessKeyID},
			{KeyringSecretAccessKey, &c.SecretAccessKey},
			{KeyringBucket, &c.Bucket},
			{KeyringPublicURL, &c.PublicURL},
		} {
			v, err := get(f.key)
			if err != nil {
				return Credentials{}, false, err
			}
			*f.dst = v
		}
		return c, c.Complete(), nil
	}}
}

// OpenKeyring opens the system keyring for service. The encrypted file
// store under fileDir is only offered when filePassword is set.
func OpenKeyring(service, fileDir, filePassword string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyringConfig(service, fileDir, filePassword))
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

func keyringConfig(service, fileDir, filePassword string) keyring.Config {
	cfg := keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
		},
		KeychainTrustApplication: true,
	}
	if filePassword != "" {
		cfg.AllowedBackends = append(cfg.AllowedBackends, keyring.FileBackend)
		cfg.FileDir = fileDir
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(filePassword)
	}
	return cfg
}
