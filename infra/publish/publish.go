// Package publish streams simulation rows to an MQTT broker so dashboards
// and downstream consumers can follow a run live.
package publish

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/evgrid/fleetsim/core/logger"
	"github.com/evgrid/fleetsim/core/sim"
	infralog "github.com/evgrid/fleetsim/infra/logger"
)

// Config defines the connection parameters for the live MQTT publisher.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	Retain      bool   `json:"retain"`
	UseTLS      bool   `json:"use_tls"`
	ClientCert  string `json:"client_cert"`
	ClientKey   string `json:"client_key"`
	CABundle    string `json:"ca_bundle"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Publisher forwards rows and the final summary to MQTT topics under the
// configured prefix.
type Publisher struct {
	cli    pahoClient
	prefix string
	qos    byte
	retain bool
	log    logger.Logger
}

// NewPublisher connects to the broker and returns a ready publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	opts, err := newClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := infralog.New("publish")
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "fleetsim"
	}
	return &Publisher{cli: c, prefix: prefix, qos: cfg.QoS, retain: cfg.Retain, log: log}, nil
}

func newClientOptions(cfg Config) (*paho.ClientOptions, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("publish: broker address missing")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "fleetsim-publisher"
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCert == "" || cfg.ClientKey == "" || cfg.CABundle == "" {
		return nil, fmt.Errorf("publish: tls requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("publish: load cert: %w", err)
	}
	caBytes, err := os.ReadFile(cfg.CABundle)
	if err != nil {
		return nil, fmt.Errorf("publish: read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// PublishRow sends one row to <prefix>/runs/<runID>/rows.
func (p *Publisher) PublishRow(runID string, row sim.Row) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/runs/%s/rows", p.prefix, runID)
	token := p.cli.Publish(topic, p.qos, p.retain, payload)
	token.Wait()
	return token.Error()
}

// PublishSummary sends the final run summary to <prefix>/runs/<runID>/summary.
func (p *Publisher) PublishSummary(res *sim.Result) error {
	payload, err := json.Marshal(res.Summary)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/runs/%s/summary", p.prefix, res.RunID)
	token := p.cli.Publish(topic, p.qos, p.retain, payload)
	token.Wait()
	return token.Error()
}

// Pump forwards rows from the channel until it closes or ctx is canceled.
// Publish failures are logged and do not stop the pump.
func (p *Publisher) Pump(ctx context.Context, runID string, rows <-chan sim.Row) {
	for {
		select {
		case <-ctx.Done():
			return
		case row, ok := <-rows:
			if !ok {
				return
			}
			if err := p.PublishRow(runID, row); err != nil {
				p.log.Errorf("publish row %d: %v", row.Step, err)
			}
		}
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *Publisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
