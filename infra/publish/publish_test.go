package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/evgrid/fleetsim/core/sim"
)

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type publishedMsg struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	connected bool
	published []publishedMsg
}

func (f *fakeClient) IsConnected() bool { return f.connected }
func (f *fakeClient) Connect() paho.Token {
	f.connected = true
	return fakeToken{}
}
func (f *fakeClient) Disconnect(uint) { f.connected = false }
func (f *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	f.published = append(f.published, publishedMsg{topic: topic, payload: payload.([]byte)})
	return fakeToken{}
}

func withFakeClient(t *testing.T) *fakeClient {
	t.Helper()
	fake := &fakeClient{}
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return fake }
	t.Cleanup(func() { newMQTTClient = orig })
	return fake
}

func TestPublishRow(t *testing.T) {
	fake := withFakeClient(t)
	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883"})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer p.Disconnect()

	row := sim.Row{Step: 4, ConnectorPowerKW: map[string]float64{"gc1": 9}}
	if err := p.PublishRow("run-1", row); err != nil {
		t.Fatalf("PublishRow: %v", err)
	}

	if len(fake.published) != 1 {
		t.Fatalf("published %d messages", len(fake.published))
	}
	msg := fake.published[0]
	if msg.topic != "fleetsim/runs/run-1/rows" {
		t.Errorf("topic = %q", msg.topic)
	}
	var got sim.Row
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Step != 4 || got.ConnectorPowerKW["gc1"] != 9 {
		t.Errorf("row = %+v", got)
	}
}

func TestPublishSummaryTopicPrefix(t *testing.T) {
	fake := withFakeClient(t)
	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883", TopicPrefix: "depot"})
	if err != nil {
		t.Fatal(err)
	}
	res := &sim.Result{RunID: "r9", Summary: sim.Summary{Steps: 3}}
	if err := p.PublishSummary(res); err != nil {
		t.Fatal(err)
	}
	if fake.published[0].topic != "depot/runs/r9/summary" {
		t.Errorf("topic = %q", fake.published[0].topic)
	}
}

func TestPumpForwardsUntilClosed(t *testing.T) {
	fake := withFakeClient(t)
	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883"})
	if err != nil {
		t.Fatal(err)
	}

	rows := make(chan sim.Row, 2)
	rows <- sim.Row{Step: 0}
	rows <- sim.Row{Step: 1}
	close(rows)

	p.Pump(context.Background(), "run-2", rows)
	if len(fake.published) != 2 {
		t.Fatalf("published %d messages, want 2", len(fake.published))
	}
}

func TestNewPublisherRequiresBroker(t *testing.T) {
	if _, err := NewPublisher(Config{}); err == nil {
		t.Fatal("expected an error without a broker")
	}
}
