package model

// Credentials maps credential field names (e.g. "secret_key") to values.
type Credentials map[string]string

// Get returns the value for key, or "" when absent. It is safe on a nil map.
func (c Credentials) Get(key string) string {
	if c == nil {
		return ""
	}
	return c[key]
}
