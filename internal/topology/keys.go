package topology

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	serviceKeyPrefix          = "services"
	connectionStringKeyPrefix = "ConnectionStrings"
	keySeparator              = "__"
)

// ServiceKey is a config key following services__{resource}__{scheme}__{index}.
type ServiceKey struct {
	Resource string
	Scheme   string
	Index    int
}

func (k ServiceKey) String() string {
	return strings.Join([]string{serviceKeyPrefix, k.Resource, k.Scheme, strconv.Itoa(k.Index)}, keySeparator)
}

// ParseServiceKey parses a config key following the service key convention.
// It returns false for any other key.
func ParseServiceKey(key string) (ServiceKey, bool) {
	parts := strings.Split(key, keySeparator)
	if len(parts) != 4 || parts[0] != serviceKeyPrefix {
		return ServiceKey{}, false
	}
	if parts[1] == "" || !isKnownScheme(parts[2]) {
		return ServiceKey{}, false
	}
	index, err := strconv.Atoi(parts[3])
	if err != nil || index < 0 {
		return ServiceKey{}, false
	}
	return ServiceKey{Resource: parts[1], Scheme: parts[2], Index: index}, true
}

// ConnectionStringKey returns the config key a connection string for
// resource is injected under.
func ConnectionStringKey(resource string) string {
	return connectionStringKeyPrefix + keySeparator + resource
}

func isKnownScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

// ValidateScheme rejects schemes other than http and https.
func ValidateScheme(scheme string) error {
	if !isKnownScheme(scheme) {
		return fmt.Errorf("unsupported endpoint scheme %q (must be http or https)", scheme)
	}
	return nil
}
