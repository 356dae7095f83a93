// SPDX-License-Identifier: MPL-2.0

package service

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/simplensm/simplensm/internal/config"
	"github.com/simplensm/simplensm/internal/container"
)

const (
	// RoleSuricata is the packet inspection engine.
	RoleSuricata Role = "suricata"
	// RoleEveBox is the event viewer fed by Suricata's eve.json.
	RoleEveBox Role = "evebox"

	// SuricataContainerName is the fixed name of the Suricata container.
	SuricataContainerName = "simplensm-suricata"
	// EveBoxContainerName is the fixed name of the EveBox container.
	EveBoxContainerName = "simplensm-evebox"

	// EveBoxPort is the port EveBox serves on, inside and outside the container.
	EveBoxPort container.NetworkPort = 5636

	suricataLogDir = "/var/log/suricata"
	suricataLibDir = "/var/lib/suricata"
	suricataRunDir = "/run/suricata"
	eveBoxDataDir  = "/data"
)

// ErrUnknownRole is returned when a role name is neither suricata nor evebox.
var ErrUnknownRole = errors.New("unknown service")

type (
	// Role identifies one of the two managed services.
	Role string

	// Service describes one managed container. Values are built once from
	// the configuration and never change afterwards.
	Service struct {
		Role  Role
		Name  string
		Image string
		// Volumes are in the order they are passed to the engine.
		Volumes []container.VolumeMount
		// StopSignal is passed to Engine.Stop; empty means the engine default.
		StopSignal string
		Enabled    bool
	}

	// Topology is the fixed two-container deployment.
	Topology struct {
		Suricata Service
		EveBox   Service
	}
)

// ParseRole converts a user-supplied service name to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSuricata, RoleEveBox:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w %q (valid: suricata, evebox)", ErrUnknownRole, s)
	}
}

// String returns the role name.
func (r Role) String() string { return string(r) }

// NewTopology derives both services from cfg. When a data directory is
// configured the Suricata log and EveBox data volumes become bind mounts
// below it so they can be read from the host.
func NewTopology(cfg *config.Config) *Topology {
	source := func(name string) string {
		if cfg.DataDirectory == "" {
			return name
		}
		return filepath.Join(cfg.DataDirectory, name)
	}

	logVolume := container.VolumeMount{Source: source(SuricataContainerName + "-log"), Target: suricataLogDir}

	return &Topology{
		Suricata: Service{
			Role:  RoleSuricata,
			Name:  SuricataContainerName,
			Image: cfg.Suricata.Image,
			Volumes: []container.VolumeMount{
				logVolume,
				{Source: SuricataContainerName + "-lib", Target: suricataLibDir},
				{Source: SuricataContainerName + "-run", Target: suricataRunDir},
			},
			Enabled: true,
		},
		EveBox: Service{
			Role:  RoleEveBox,
			Name:  EveBoxContainerName,
			Image: cfg.EveBox.Image,
			Volumes: []container.VolumeMount{
				logVolume,
				{Source: source(EveBoxContainerName + "-data"), Target: eveBoxDataDir},
			},
			StopSignal: "SIGINT",
			Enabled:    cfg.EveBox.Enabled,
		},
	}
}

// Service returns the service with the given role.
func (t *Topology) Service(role Role) (Service, error) {
	switch role {
	case RoleSuricata:
		return t.Suricata, nil
	case RoleEveBox:
		return t.EveBox, nil
	default:
		return Service{}, fmt.Errorf("%w %q", ErrUnknownRole, role)
	}
}

// StartOrder returns every service in the order they are started.
// Stop order is the reverse.
func (t *Topology) StartOrder() []Service {
	return []Service{t.Suricata, t.EveBox}
}

// Names returns the container names of every service in start order.
func (t *Topology) Names() []string {
	return []string{t.Suricata.Name, t.EveBox.Name}
}

// volume returns the mount of s whose target is path.
func (s Service) volume(target string) (container.VolumeMount, bool) {
	for _, v := range s.Volumes {
		if v.Target == target {
			return v, true
		}
	}
	return container.VolumeMount{}, false
}
