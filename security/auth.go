package security

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/shaj13/go-guardian/v2/auth"
	"github.com/shaj13/go-guardian/v2/auth/strategies/basic"
	"github.com/shaj13/go-guardian/v2/auth/strategies/token"
	"github.com/shaj13/go-guardian/v2/auth/strategies/union"
	"github.com/shaj13/libcache"
	_ "github.com/shaj13/libcache/lru"
)

var strategy union.Union
var authEnabled bool

const ApiKeyHeader = "api-key"

// SetupGoGuardian registers static api keys (name -> key) and basic auth users (user -> password).
// Authentication stays disabled when both are empty.
func SetupGoGuardian(apiKeys map[string]string, users map[string]string) error {
	authEnabled = len(apiKeys) > 0 || len(users) > 0
	if !authEnabled {
		strategy = nil
		return nil
	}

	var strategies []auth.Strategy
	if len(apiKeys) > 0 {
		tokens := make(map[string]auth.Info, len(apiKeys))
		for name, key := range apiKeys {
			if _, exists := tokens[key]; exists {
				return fmt.Errorf("api key of '%s' is not unique", name)
			}
			tokens[key] = auth.NewDefaultUser(name, name, []string{}, auth.Extensions{})
		}
		strategies = append(strategies,
			token.NewStatic(tokens, token.SetParser(token.XHeaderParser(ApiKeyHeader))),
			token.NewStatic(tokens))
	}

	if len(users) > 0 {
		cache := libcache.LRU.New(1000)
		cache.SetTTL(time.Minute * 10)
		cache.RegisterOnExpired(func(key, _ interface{}) {
			cache.Delete(key)
		})
		strategies = append(strategies, basic.NewCached(validateUser(users), cache))
	}

	strategy = union.New(strategies...)
	return nil
}

func IsAuthEnabled() bool {
	return authEnabled
}

func validateUser(users map[string]string) basic.AuthenticateFunc {
	return func(ctx context.Context, r *http.Request, userName, password string) (auth.Info, error) {
		expected, ok := users[userName]
		if !ok || subtle.ConstantTimeCompare([]byte(expected), []byte(password)) != 1 {
			return nil, fmt.Errorf("authentication failed: invalid credentials of user %s", userName)
		}
		return auth.NewDefaultUser(userName, userName, []string{}, auth.Extensions{}), nil
	}
}
