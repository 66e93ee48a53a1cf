package rediskey

import "fmt"

// Session keys shared by every host that points at the same redis.
const (
	SessionPrefix = "legion:session"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSessionKey returns "legion:session:{name}"
func BuildSessionKey(name string) string {
	return NamespaceKey(SessionPrefix, name)
}
