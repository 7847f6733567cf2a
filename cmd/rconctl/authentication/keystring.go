package authentication

// keystring.go keeps session tokens in the OS keyring, one entry per server.
import (
	"encoding/json"
	"errors"
	"time"

	"github.com/zalando/go-keyring"
)

const serviceName = "rconctl"

// ErrNoCredentials is returned when nothing is stored for a server.
var ErrNoCredentials = errors.New("no stored credentials")

type StoredCredentials struct {
	Server    string `json:"server"`
	Name      string `json:"name"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// Expired reports whether the token is past its expiry.
func (c *StoredCredentials) Expired(now time.Time) bool {
	return c.ExpiresAt > 0 && now.Unix() >= c.ExpiresAt
}

func StoreTokens(creds *StoredCredentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return keyring.Set(serviceName, creds.Server, string(data))
}

func GetTokens(server string) (*StoredCredentials, error) {
	value, err := keyring.Get(serviceName, server)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNoCredentials
		}
		return nil, err
	}

	var creds StoredCredentials
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func DeleteTokens(server string) error {
	err := keyring.Delete(serviceName, server)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNoCredentials
	}
	return err
}
