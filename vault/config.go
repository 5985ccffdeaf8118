package vault

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/oxcryptfs/oxcryptfs/crypto"
	"github.com/oxcryptfs/oxcryptfs/oxerr"
)

const (
	configKeyIDHeader = "kid"
	configFileName    = "vault.cryptomator"
	masterKeyFileName = "masterkey.cryptomator"

	// SupportedFormat is the only vault format version this module opens or
	// creates.
	SupportedFormat = 8
)

// keyID is the JWT header's "kid" claim, "<scheme>:<uri>".
type keyID string

func (k keyID) scheme() string { return strings.SplitN(string(k), ":", 2)[0] }
func (k keyID) uri() string {
	parts := strings.SplitN(string(k), ":", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Config is the parsed, verified vault.cryptomator document.
type Config struct {
	Format              int    `json:"format"`
	ShorteningThreshold int    `json:"shorteningThreshold"`
	Jti                 string `json:"jti"`
	CipherCombo         string `json:"cipherCombo"`
}

// Valid implements jwt.Claims. It is invoked during jwt.ParseWithClaims and
// rejects anything this module cannot safely operate on.
func (c *Config) Valid() error {
	if c.Format != SupportedFormat {
		return fmt.Errorf("unsupported vault format: %d", c.Format)
	}
	switch c.CipherCombo {
	case crypto.CipherComboSivGcm, crypto.CipherComboSivCtrMac:
	default:
		return fmt.Errorf("unsupported cipher combo: %q", c.CipherCombo)
	}
	return nil
}

// NewConfig builds the default configuration for a freshly created vault:
// format 8, SIV_GCM, the default shortening threshold, and a fresh jti.
func NewConfig() Config {
	return Config{
		Format:              SupportedFormat,
		ShorteningThreshold: DefaultShorteningThreshold,
		Jti:                 uuid.NewString(),
		CipherCombo:         crypto.CipherComboSivGcm,
	}
}

// Marshal signs c as a JWT keyed by master, the way Cryptomator writes
// vault.cryptomator: HS256 over the JSON claims, with a "kid" header
// pointing at the masterkey file.
func Marshal(c Config, master crypto.MasterKey) ([]byte, error) {
	kid := keyID("masterkeyfile:" + masterKeyFileName)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &c)
	token.Header[configKeyIDHeader] = string(kid)

	raw, err := token.SignedString(signingKeyOf(master))
	if err != nil {
		return nil, oxerr.Wrap(oxerr.KindInvalidVaultStructure, "vault_config.marshal", err)
	}
	return []byte(raw), nil
}

// Unmarshal parses and verifies tokenBytes. keyFunc is invoked with the
// "kid" header's URI (normally "masterkey.cryptomator") and must return the
// unwrapped MasterKey whose signing key verifies the token; it is the
// caller's hook for reading and unwrapping the masterkey file.
func Unmarshal(tokenBytes []byte, keyFunc func(masterKeyURI string) (crypto.MasterKey, error)) (Config, error) {
	var c Config
	_, err := jwt.ParseWithClaims(string(tokenBytes), &c, func(token *jwt.Token) (any, error) {
		raw, ok := token.Header[configKeyIDHeader]
		if !ok {
			return nil, fmt.Errorf("vault.cryptomator jwt has no kid header")
		}
		kidStr, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("vault.cryptomator jwt kid header is not a string")
		}
		master, err := keyFunc(keyID(kidStr).uri())
		if err != nil {
			return nil, err
		}
		return signingKeyOf(master), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return Config{}, oxerr.Wrap(oxerr.KindInvalidVaultStructure, "vault_config.unmarshal", err)
	}
	return c, nil
}

// UnmarshalUnverified reads the format, cipher combo, and shortening
// threshold out of a vault.cryptomator document without verifying its
// signature, i.e. without the master key. Used by the admin CLI's "info"
// subcommand, which reports on a vault without unlocking it.
func UnmarshalUnverified(tokenBytes []byte) (Config, error) {
	var c Config
	if _, _, err := jwt.NewParser().ParseUnverified(string(tokenBytes), &c); err != nil {
		return Config{}, oxerr.Wrap(oxerr.KindInvalidVaultStructure, "vault_config.unmarshal_unverified", err)
	}
	return c, nil
}

// signingKeyOf extracts the JWT HMAC key (encryptKey‖macKey) from master
// without exposing either half to the caller.
func signingKeyOf(master crypto.MasterKey) []byte {
	var key []byte
	_ = master.WithRawKey(func(encryptKey, macKey []byte) error {
		key = append(append([]byte(nil), encryptKey...), macKey...)
		return nil
	})
	return key
}
