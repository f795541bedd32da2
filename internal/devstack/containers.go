// Package devstack starts disposable backing services in Docker for local
// development and integration tests: a database and, optionally, an MQTT broker.
package devstack

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	dbAlias   = "voicehome-db"
	mqttAlias = "voicehome-mqtt"
)

// Options selects the containers to start
type Options struct {
	DBType       string // postgres, mysql or mariadb
	DBImage      string
	Database     string
	User         string
	Password     string
	RootPassword string

	WithMQTT  bool
	MQTTImage string
}

// OptionsFromEnv reads options from DB_TYPE, DB_IMAGE, DB_DATABASE, DB_USER,
// DB_PASSWORD, DB_ROOT_PASSWORD, DEVSTACK_MQTT and MQTT_IMAGE
func OptionsFromEnv() Options {
	opts := Options{
		DBType:       getEnv("DB_TYPE", "postgres"),
		DBImage:      os.Getenv("DB_IMAGE"),
		Database:     getEnv("DB_DATABASE", "voicehome"),
		User:         getEnv("DB_USER", "voicehome"),
		Password:     getEnv("DB_PASSWORD", "voicehome"),
		RootPassword: getEnv("DB_ROOT_PASSWORD", "voicehome-root"),
		WithMQTT:     os.Getenv("DEVSTACK_MQTT") == "true",
		MQTTImage:    os.Getenv("MQTT_IMAGE"),
	}
	return opts.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.DBType == "" {
		o.DBType = "postgres"
	}
	if o.DBImage == "" {
		switch o.DBType {
		case "mysql":
			o.DBImage = "mysql:8.4"
		case "mariadb":
			o.DBImage = "mariadb:11"
		default:
			o.DBImage = "postgres:17-alpine"
		}
	}
	if o.MQTTImage == "" {
		o.MQTTImage = "eclipse-mosquitto:2"
	}
	return o
}

// Stack is a running set of containers
type Stack struct {
	Options Options
	Network *testcontainers.DockerNetwork
	DB      testcontainers.Container
	MQTT    testcontainers.Container

	DBHost     string
	DBPort     string
	MQTTBroker string
}

// Start starts the containers described by opts. On failure everything
// already started is terminated.
func Start(ctx context.Context, opts Options, logf func(format string, args ...any)) (*Stack, error) {
	opts = opts.withDefaults()
	if logf == nil {
		logf = func(string, ...any) {}
	}

	stack := &Stack{Options: opts}

	nw, err := network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create network: %w", err)
	}
	stack.Network = nw

	if err := stack.startDB(ctx, logf); err != nil {
		_ = stack.Terminate(ctx)
		return nil, err
	}

	if opts.WithMQTT {
		if err := stack.startMQTT(ctx, logf); err != nil {
			_ = stack.Terminate(ctx)
			return nil, err
		}
	}

	return stack, nil
}

// StartBroker starts only an MQTT broker; an empty image uses the default
func StartBroker(ctx context.Context, mqttImage string, logf func(format string, args ...any)) (*Stack, error) {
	opts := Options{WithMQTT: true, MQTTImage: mqttImage}.withDefaults()
	if logf == nil {
		logf = func(string, ...any) {}
	}

	stack := &Stack{Options: opts}

	nw, err := network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create network: %w", err)
	}
	stack.Network = nw

	if err := stack.startMQTT(ctx, logf); err != nil {
		_ = stack.Terminate(ctx)
		return nil, err
	}
	return stack, nil
}

func (s *Stack) startDB(ctx context.Context, logf func(string, ...any)) error {
	opts := s.Options

	portNumber := "5432"
	var env map[string]string
	var ready wait.Strategy
	switch opts.DBType {
	case "postgres":
		env = map[string]string{
			"POSTGRES_USER":     opts.User,
			"POSTGRES_PASSWORD": opts.Password,
			"POSTGRES_DB":       opts.Database,
		}
		ready = wait.ForLog("database system is ready to accept connections").WithOccurrence(2)
	case "mysql", "mariadb":
		portNumber = "3306"
		env = map[string]string{
			"MYSQL_ROOT_PASSWORD": opts.RootPassword,
			"MYSQL_DATABASE":      opts.Database,
			"MYSQL_USER":          opts.User,
			"MYSQL_PASSWORD":      opts.Password,
		}
	default:
		return fmt.Errorf("devstack: unsupported database type %q", opts.DBType)
	}

	tcpPort, err := nat.NewPort("tcp", portNumber)
	if err != nil {
		return fmt.Errorf("db port: %w", err)
	}

	strategies := []wait.Strategy{wait.ForListeningPort(tcpPort)}
	if ready != nil {
		strategies = append(strategies, ready)
	}

	logImageStatus(ctx, opts.DBImage, logf)
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        opts.DBImage,
			ExposedPorts: []string{string(tcpPort)},
			Env:          env,
			WaitingFor:   wait.ForAll(strategies...).WithDeadline(90 * time.Second),
			Networks:     []string{s.Network.Name},
			NetworkAliases: map[string][]string{
				s.Network.Name: {dbAlias},
			},
		},
		Started: true,
	})
	if err != nil {
		return fmt.Errorf("start %s: %w", opts.DBType, err)
	}
	s.DB = container

	host, err := container.Host(ctx)
	if err != nil {
		return fmt.Errorf("db host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, tcpPort)
	if err != nil {
		return fmt.Errorf("db port: %w", err)
	}
	s.DBHost = host
	s.DBPort = mapped.Port()

	if opts.DBType != "postgres" {
		if err := waitForMySQL(ctx, opts, host, s.DBPort); err != nil {
			return err
		}
	}

	logf("%s ready at %s:%s", opts.DBType, s.DBHost, s.DBPort)
	return nil
}

func (s *Stack) startMQTT(ctx context.Context, logf func(string, ...any)) error {
	tcpPort, err := nat.NewPort("tcp", "1883")
	if err != nil {
		return fmt.Errorf("mqtt port: %w", err)
	}

	logImageStatus(ctx, s.Options.MQTTImage, logf)
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        s.Options.MQTTImage,
			ExposedPorts: []string{string(tcpPort)},
			Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
			WaitingFor:   wait.ForListeningPort(tcpPort).WithStartupTimeout(30 * time.Second),
			Networks:     []string{s.Network.Name},
			NetworkAliases: map[string][]string{
				s.Network.Name: {mqttAlias},
			},
		},
		Started: true,
	})
	if err != nil {
		return fmt.Errorf("start mqtt broker: %w", err)
	}
	s.MQTT = container

	host, err := container.Host(ctx)
	if err != nil {
		return fmt.Errorf("mqtt host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, tcpPort)
	if err != nil {
		return fmt.Errorf("mqtt port: %w", err)
	}
	s.MQTTBroker = fmt.Sprintf("tcp://%s:%s", host, mapped.Port())

	logf("mqtt broker ready at %s", s.MQTTBroker)
	return nil
}

// Env returns the environment that points the server at the stack
func (s *Stack) Env() map[string]string {
	env := map[string]string{
		"DB_TYPE":     s.Options.DBType,
		"DB_HOST":     s.DBHost,
		"DB_PORT":     s.DBPort,
		"DB_DATABASE": s.Options.Database,
		"DB_USER":     s.Options.User,
		"DB_PASSWORD": s.Options.Password,
	}
	if s.MQTTBroker != "" {
		env["MQTT_BROKER"] = s.MQTTBroker
	}
	return env
}

// Terminate stops every container and removes the network
func (s *Stack) Terminate(ctx context.Context) error {
	var errs []error
	if s.MQTT != nil {
		if err := s.MQTT.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("terminate mqtt broker: %w", err))
		}
	}
	if s.DB != nil {
		if err := s.DB.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("terminate database: %w", err))
		}
	}
	if s.Network != nil {
		if err := s.Network.Remove(ctx); err != nil {
			errs = append(errs, fmt.Errorf("remove network: %w", err))
		}
	}
	return errors.Join(errs...)
}

// waitForMySQL pings until the server accepts the application user
func waitForMySQL(ctx context.Context, opts Options, host, port string) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", opts.User, opts.Password, host, port, opts.Database)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("connect to %s for setup: %w", opts.DBType, err)
	}
	defer db.Close()

	for i := 0; i < 30; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("%s not ready after 30 seconds: %w", opts.DBType, err)
}

// logImageStatus reports whether an image must be pulled before start
func logImageStatus(ctx context.Context, imageName string, logf func(string, ...any)) {
	exists, err := imageExists(ctx, imageName)
	if err != nil {
		logf("could not inspect local images: %v", err)
		return
	}
	if !exists {
		logf("image %s not found locally, pulling", imageName)
	}
}

func imageExists(ctx context.Context, imageName string) (bool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return false, err
	}
	defer cli.Close()

	images, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == imageName {
				return true, nil
			}
		}
	}
	return false, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
