package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localnerve/voicehome/internal/devstack"
	"github.com/localnerve/voicehome/internal/logging"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	var withMQTT bool
	flag.BoolVar(&withMQTT, "mqtt", false, "also start an MQTT broker")
	flag.Parse()

	usage := `
Start a disposable database (and optionally an MQTT broker) for voicehome.

Usage:

devdb [-h] [-mqtt] [-f ENV_FILE_PATH]

ENV_FILE_PATH: path to a .env file with DB_TYPE, DB_IMAGE, DB_DATABASE, DB_USER, DB_PASSWORD

example
  devdb -mqtt -f /path/to/something/.env
`
	if showHelp {
		fmt.Println(usage)
		return
	}

	log := logging.New(logging.Options{Level: "info", Output: os.Stderr})

	if envFilename != "" {
		log.Infof("Loading environment variables from %s", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	opts := devstack.OptionsFromEnv()
	opts.WithMQTT = opts.WithMQTT || withMQTT

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	stack, err := devstack.Start(ctx, opts, log.Infof)
	if err != nil {
		log.Fatalf("Failed to start containers: %v", err)
	}

	env := stack.Env()
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("%s=%s\n", key, env[key])
	}

	<-ctx.Done()
	log.Info("Received signal, terminating containers...")
	if err := stack.Terminate(context.Background()); err != nil {
		log.Errorf("Failed to terminate containers: %v", err)
		os.Exit(1)
	}
}
