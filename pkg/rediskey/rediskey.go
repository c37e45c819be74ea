package rediskey

import "fmt"

// Key prefixes shared by the engine and the worker.
const (
	MarketCapPrefix = "marketcap"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildMarketCapKey returns "marketcap:{tokenAddress}"
func BuildMarketCapKey(tokenAddress string) string {
	return NamespaceKey(MarketCapPrefix, tokenAddress)
}
