package cache

import "fmt"

// GenerateKeyWithParams builds a cache key from a prefix and the query
// parameters that distinguish one cached response from another.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key = fmt.Sprintf("%s:%v", key, param)
	}
	return key
}
