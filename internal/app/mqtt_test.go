package app

import "testing"

func TestMQTTBridgePublishNoopsWhenNotConnected(t *testing.T) {
	b := newMQTTBridge("tcp://127.0.0.1:1883", "cipadapter/assemblies", testLogger(t))
	b.publish(0x65, []byte{1, 2, 3})
	b.disconnect()
}
