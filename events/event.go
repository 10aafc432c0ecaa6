/*
 * Copyright (C) 2024 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package events

import (
	"errors"
	"fmt"
	"path"
	"time"

	natsServer "github.com/nats-io/nats-server/v2/server"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/events/log"
	"github.com/prometheus/client_golang/prometheus"
)

const moduleName = "Events"

// Manager is the events engine. It counts lifecycle events and, when enabled, runs an embedded NATS server
// that lifecycle events are published to.
type Manager struct {
	config   Config
	server   *natsServer.Server
	natsSink *NATSSink
	metrics  *MetricsSink
	// Registerer is used to register the lifecycle event counter, defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// NewManager returns a new event manager
func NewManager() *Manager {
	return &Manager{
		config:     DefaultConfig(),
		Registerer: prometheus.DefaultRegisterer,
	}
}

func (m *Manager) Name() string {
	return moduleName
}

func (m *Manager) Config() interface{} {
	return &m.config
}

func (m *Manager) Configure(config core.ServerConfig) error {
	metrics, err := NewMetricsSink(m.Registerer)
	if err != nil {
		return fmt.Errorf("unable to register lifecycle event metrics: %w", err)
	}
	m.metrics = metrics
	if !m.config.Nats.Enabled {
		return nil
	}
	if m.config.Nats.Port <= 0 {
		return errors.New("events.nats.port must be a positive number")
	}
	if m.config.Nats.StorageDir == "" && config.Datadir != "" {
		m.config.Nats.StorageDir = path.Join(config.Datadir, "events")
	}
	timeout := m.timeout()
	hostname, port := m.config.Nats.clientHostname(), m.config.Nats.Port
	m.natsSink = NewNATSSink(func() (Conn, error) {
		return Connect(hostname, port, timeout)
	})
	return nil
}

func (m *Manager) Start() error {
	if !m.config.Nats.Enabled {
		return nil
	}
	server, err := natsServer.NewServer(&natsServer.Options{
		JetStream: true,
		Port:      m.config.Nats.Port,
		Host:      m.config.Nats.Hostname,
		StoreDir:  m.config.Nats.StorageDir,
		NoSigs:    true, // Signals are handled by the siop server, NATS is shut down when the engine is shut down.
		NoLog:     true,
	})
	if err != nil {
		return err
	}
	m.server = server
	server.Start()
	if !server.ReadyForConnections(m.timeout()) {
		return fmt.Errorf("NATS server not ready for connections within %s (address=%s:%d)", m.timeout(), m.config.Nats.Hostname, m.config.Nats.Port)
	}
	log.Logger().Infof("Started NATS server (address=%s)", server.Addr())
	return nil
}

func (m *Manager) Shutdown() error {
	if m.natsSink != nil {
		m.natsSink.Close()
	}
	if m.server == nil {
		return nil
	}
	m.server.Shutdown()
	m.server.WaitForShutdown()
	return nil
}

// Sink returns the Sink lifecycle events should be emitted to.
// It always counts events and adds them to the span of the request, and publishes them on NATS when enabled.
func (m *Manager) Sink() Sink {
	result := Multicast{SpanSink{}}
	if m.metrics != nil {
		result = append(result, m.metrics)
	}
	if m.natsSink != nil {
		result = append(result, m.natsSink)
	}
	return result
}

func (m *Manager) timeout() time.Duration {
	if m.config.Nats.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.config.Nats.Timeout) * time.Second
}
