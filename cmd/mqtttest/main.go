package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/hubertat/pacball/mqtt"
)

const clientID = "pacball-mqtttest" // Change this to something random if using a public test server

var (
	broker = flag.String("broker", "tcp://127.0.0.1:1883", "mqtt broker url")
	prefix = flag.String("prefix", "pacball", "topic prefix the controller publishes under")
)

// Prints every state change a controller publishes.
func main() {
	flag.Parse()
	log.SetLevel(log.DebugLevel)

	mc := mqtt.NewMqttClient(*broker, clientID, "", "", *prefix+"/mqtttest")
	err := mc.Connect()
	if err != nil {
		log.Error("failed to connect to mqtt broker", "error", err)
		return
	}
	defer mc.Disconnect()

	err = mc.Subscribe(*prefix+"/#", func(topic string, payload []byte) {
		log.Info("received mqtt message", "topic", topic, "payload", string(payload))
	})
	if err != nil {
		log.Error("failed to subscribe", "error", err)
		return
	}
	log.Info("mqtt client connected, waiting for messages", "prefix", *prefix)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}
