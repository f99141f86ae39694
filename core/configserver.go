package core

import (
	"sync"

	"github.com/spf13/viper"
)

// ConfigServer is the domain/parameter key-value service behind the
// same handle-and-dataport pattern as the rest of the suite (spec.md
// §2), backed by the same viper-loaded tree pkg/config uses so
// cmd/config/default.yaml doubles as its seed data.
type ConfigServer struct {
	mu sync.RWMutex
	v  *viper.Viper
}

// NewConfigServer wraps an already-loaded viper instance. Passing nil
// starts from an empty in-memory tree.
func NewConfigServer(v *viper.Viper) *ConfigServer {
	if v == nil {
		v = viper.New()
	}
	return &ConfigServer{v: v}
}

// GetString reads domain.parameter as a string. CONFIG_DOMAIN_NOT_FOUND
// if the domain has no keys at all; CONFIG_PARAMETER_NOT_FOUND if the
// domain exists but the parameter does not.
func (c *ConfigServer) GetString(domain, parameter string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := domain + "." + parameter
	if !c.v.IsSet(domain) {
		return "", ErrConfigDomainNotFound
	}
	if !c.v.IsSet(key) {
		return "", ErrConfigParameterNotFound
	}
	val := c.v.Get(key)
	s, ok := val.(string)
	if !ok {
		return "", ErrConfigTypeMismatch
	}
	return s, nil
}

// GetInt reads domain.parameter as an int.
func (c *ConfigServer) GetInt(domain, parameter string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := domain + "." + parameter
	if !c.v.IsSet(domain) {
		return 0, ErrConfigDomainNotFound
	}
	if !c.v.IsSet(key) {
		return 0, ErrConfigParameterNotFound
	}
	switch n := c.v.Get(key).(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, ErrConfigTypeMismatch
	}
}

// SetString writes domain.parameter, creating the domain implicitly.
func (c *ConfigServer) SetString(domain, parameter, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Set(domain+"."+parameter, value)
}

// SetInt writes domain.parameter as an int, creating the domain
// implicitly.
func (c *ConfigServer) SetInt(domain, parameter string, value int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Set(domain+"."+parameter, value)
}

// Domains lists every known top-level domain.
func (c *ConfigServer) Domains() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, k := range c.v.AllKeys() {
		for i, r := range k {
			if r == '.' {
				d := k[:i]
				if !seen[d] {
					seen[d] = true
					out = append(out, d)
				}
				break
			}
		}
	}
	return out
}
