package raspiaprs

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	err error
}

func (d doneToken) Wait() bool                     { return true }
func (d doneToken) WaitTimeout(time.Duration) bool { return true }
func (d doneToken) Error() error                   { return d.err }

func (d doneToken) Done() <-chan struct{} {
	var ch = make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return doneToken{err: f.err}
}

func TestMQTTNotifierPublishes(t *testing.T) {
	var pub = &fakePublisher{}
	var n = newMQTTNotifier(pub, "raspiaprs", "N0CALL-9", quietLogger())

	var when = time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	n.ObserveTransmit(Transmission{Kind: KindPosition, Line: "N0CALL-9>APP642:/x", Time: when})
	n.ObserveTransmit(Transmission{Kind: KindTelemetry, Line: "N0CALL-9>APP642:T#001", Time: when, Err: errors.New("broken pipe")})

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "raspiaprs/N0CALL-9/position", pub.msgs[0].topic)
	assert.Equal(t, "raspiaprs/N0CALL-9/telemetry", pub.msgs[1].topic)

	var ev BeaconEvent
	require.NoError(t, json.Unmarshal(pub.msgs[1].payload, &ev))
	assert.Equal(t, BeaconEvent{
		Station: "N0CALL-9",
		Kind:    "telemetry",
		Packet:  "N0CALL-9>APP642:T#001",
		Time:    when,
		OK:      false,
		Error:   "broken pipe",
	}, ev)

	assert.JSONEq(t, `{"station":"N0CALL-9","kind":"position","packet":"N0CALL-9>APP642:/x","time":"2024-03-05T14:07:00Z","ok":true}`,
		string(pub.msgs[0].payload))
}

func TestMQTTNotifierFailureIsHarmless(t *testing.T) {
	var pub = &fakePublisher{err: errors.New("not connected")}
	var n = newMQTTNotifier(pub, "raspiaprs", "N0CALL", quietLogger())

	assert.NotPanics(t, func() {
		n.ObserveTransmit(Transmission{Kind: KindStatus, Line: "x", Time: time.Now()})
	})
	n.Close()
}
