package app

import "testing"

func TestNewRedisBridgeCloseWithoutConnecting(t *testing.T) {
	b := newRedisBridge("127.0.0.1:6379", "cipadapter:connections", testLogger(t))
	b.close()
}
