package config

import "fmt"

type CacheKeyStruct struct {
	prefix string
}

func NewCacheKeyStruct(prefix string) *CacheKeyStruct {
	return &CacheKeyStruct{prefix: prefix}
}

// RetakeTokensKey returns the hash holding every live retake token, keyed by student id.
func (r *CacheKeyStruct) RetakeTokensKey() string {
	return fmt.Sprintf("%s:retake_tokens", r.prefix)
}

var CacheKey = NewCacheKeyStruct("labquiz")
