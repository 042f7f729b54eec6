// Package mqtt provides the broker connection for Fleet Core.
//
// It wraps paho.mqtt.golang with subscription tracking (restored
// automatically on reconnect), panic-recovering message handlers,
// Last Will and Testament on the server status topic, and publish
// helpers with timeouts.
//
// The package also owns the topic grammar. Device-originated traffic
// follows device/{device_id}/{category}; the server sends unicast
// commands on command/{device_id}/{command_type} and fleet-wide
// messages on broadcast/{message_type}. The Topics helper builds
// concrete topics and the wildcard patterns the ingest pipeline
// subscribes with.
package mqtt
