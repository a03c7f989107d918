// Copyright 2024-2025 NetCracker Technology Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/buraksezer/olric"
	discovery "github.com/buraksezer/olric-cloud-plugin/lib"
	"github.com/buraksezer/olric/config"
	log "github.com/sirupsen/logrus"
)

// OlricProvider owns the embedded olric node shared by the document text cache and task events.
type OlricProvider interface {
	// Get blocks until the node has joined the cluster.
	Get() *olric.Olric
	Shutdown(ctx context.Context) error
}

const (
	OlricModeLocal = "local"
	OlricModeCloud = "lan"
)

type OlricConfig struct {
	DiscoveryMode string
	ReplicaCount  int
	Namespace     string
}

const olricBindAddr = "0.0.0.0"

// pods of all service instances carry this label
const olricClusterLabel = "olric-cluster=bid-evaluation"

type olricProviderImpl struct {
	node    *olric.Olric
	started chan struct{}
}

func NewOlricProvider(cfg OlricConfig) (OlricProvider, error) {
	nodeCfg, err := makeOlricConfig(cfg)
	if err != nil {
		return nil, err
	}

	prov := &olricProviderImpl{started: make(chan struct{})}
	nodeCfg.Started = func() {
		log.Infof("Olric node started on %s:%d", nodeCfg.BindAddr, nodeCfg.BindPort)
		close(prov.started)
	}

	prov.node, err = olric.New(nodeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create olric node: %w", err)
	}

	go func() {
		if err := prov.node.Start(); err != nil {
			log.Panicf("Olric cache node cannot be started. Error: %s", err.Error())
		}
	}()

	return prov, nil
}

func (p *olricProviderImpl) Get() *olric.Olric {
	<-p.started
	return p.node
}

func (p *olricProviderImpl) Shutdown(ctx context.Context) error {
	select {
	case <-p.started:
		return p.node.Shutdown(ctx)
	default:
		// never joined, nothing to leave
		return nil
	}
}

func makeOlricConfig(cfg OlricConfig) (*config.Config, error) {
	switch cfg.DiscoveryMode {
	case OlricModeCloud:
		if cfg.Namespace == "" {
			return nil, fmt.Errorf("NAMESPACE env is required for olric discovery mode %s", OlricModeCloud)
		}
		replicas := cfg.ReplicaCount
		if replicas <= 0 {
			replicas = 1
		}
		log.Infof("Olric runs in cloud mode, namespace %s, %d replicas", cfg.Namespace, replicas)

		c := config.New(OlricModeCloud)
		c.LogLevel = "WARN"
		c.LogVerbosity = 2
		c.ServiceDiscovery = map[string]interface{}{
			"plugin":   &discovery.CloudDiscovery{},
			"provider": "k8s",
			"args":     fmt.Sprintf("namespace=%s label_selector=\"%s\"", cfg.Namespace, olricClusterLabel),
		}
		c.PartitionCount = uint64(replicas * 4)
		c.ReplicaCount = replicas
		c.MemberCountQuorum = int32(replicas)
		c.BootstrapTimeout = 60 * time.Second
		c.MaxJoinAttempts = 60
		return c, nil
	case OlricModeLocal, "":
		log.Info("Olric runs in local mode")
		c := config.New(OlricModeLocal)
		c.LogLevel = "WARN"
		c.LogVerbosity = 2
		c.BindAddr = olricBindAddr
		c.BindPort = freePort()
		c.MemberlistConfig.BindAddr = olricBindAddr
		c.MemberlistConfig.BindPort = freePort()
		c.PartitionCount = 5
		return c, nil
	default:
		return nil, fmt.Errorf("unknown olric discovery mode %q, expected %s or %s", cfg.DiscoveryMode, OlricModeLocal, OlricModeCloud)
	}
}

func freePort() int {
	for {
		port := rand.Intn(48127) + 1024
		ln, err := net.Listen("tcp", olricBindAddr+":"+strconv.Itoa(port))
		if err == nil {
			_ = ln.Close()
			return port
		}
	}
}
