package common

import "fmt"

const keyPrefix = "facility"

var Keys = &redisKeys{}

type redisKeys struct{}

// GatewayInitLock guards a one-time startup step shared by every replica,
// e.g. schema migrations
func (rk *redisKeys) GatewayInitLock(name string) string {
	return fmt.Sprintf("%s:gateway:init:%s:lock", keyPrefix, name)
}
