// Copyright 2025 Alexandre Mahdhaoui
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

package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"libvirt.org/go/libvirt"
	"libvirt.org/go/libvirtxml"

	"github.com/alexandremahdhaoui/vigil/internal/types"
)

var (
	// ErrVMNotFound indicates the named VM does not exist on the provider.
	ErrVMNotFound = errors.New("VM not found")

	errConnectLibvirt  = errors.New("failed to connect to libvirt")
	errGetDomainState  = errors.New("failed to get domain state")
	errRebootDomain    = errors.New("failed to request domain reboot")
	errGetDomainXML    = errors.New("failed to get domain XML")
	errParseDomainXML  = errors.New("failed to parse domain XML")
	errListDomainAddrs = errors.New("failed to list domain interface addresses")
	errNoDomainAddr    = errors.New("domain has no IPv4 lease")
)

// --------------------------------------------------- INTERFACE ---------------------------------------------------- //

// CloudProvider is the VM control-plane collaborator: it answers power-state
// queries and accepts restart requests without awaiting boot completion.
type CloudProvider interface {
	// GetVMState returns the power state of the named VM. It returns an error
	// wrapping ErrVMNotFound when the VM does not exist.
	GetVMState(ctx context.Context, vmName string) (types.VMState, error)

	// RestartVM asks the provider to restart the named VM. The call returns
	// once the request is accepted; it never waits for the VM to boot.
	RestartVM(ctx context.Context, vmName string) error

	// GetVMAddress resolves the guest's IPv4 address.
	GetVMAddress(ctx context.Context, vmName string) (string, error)

	// DescribeVM returns static details about the VM definition.
	DescribeVM(ctx context.Context, vmName string) (VMDetails, error)

	// Close releases the provider connection.
	Close() error
}

// VMDetails holds static details about a VM definition.
type VMDetails struct {
	Name     string
	UUID     string
	MemoryMB uint
	VCPUs    uint
}

// ---------------------------------------------- LIBVIRT IMPLEMENTATION -------------------------------------------- //

// NewLibvirtProvider connects to libvirt and returns a CloudProvider backed
// by it. An empty uri defaults to qemu:///system.
func NewLibvirtProvider(uri string) (CloudProvider, error) {
	if uri == "" {
		uri = "qemu:///system"
	}

	conn, err := libvirt.NewConnect(uri)
	if err != nil {
		return nil, errors.Join(err, errConnectLibvirt)
	}

	return &libvirtProvider{conn: conn}, nil
}

type libvirtProvider struct {
	conn *libvirt.Connect
}

func (p *libvirtProvider) GetVMState(_ context.Context, vmName string) (types.VMState, error) {
	dom, err := p.lookup(vmName)
	if err != nil {
		return types.VMStateUnknown, err
	}
	defer freeDomain(dom)

	state, _, err := dom.GetState()
	if err != nil {
		return types.VMStateUnknown, errors.Join(err, fmt.Errorf("vmName=%s", vmName), errGetDomainState)
	}

	return mapDomainState(state), nil
}

func (p *libvirtProvider) RestartVM(_ context.Context, vmName string) error {
	dom, err := p.lookup(vmName)
	if err != nil {
		return err
	}
	defer freeDomain(dom)

	// Reboot returns once libvirt accepted the request; the guest reboots
	// asynchronously.
	if err := dom.Reboot(libvirt.DOMAIN_REBOOT_DEFAULT); err != nil {
		return errors.Join(err, fmt.Errorf("vmName=%s", vmName), errRebootDomain)
	}

	return nil
}

func (p *libvirtProvider) GetVMAddress(_ context.Context, vmName string) (string, error) {
	dom, err := p.lookup(vmName)
	if err != nil {
		return "", err
	}
	defer freeDomain(dom)

	ifaces, err := dom.ListAllInterfaceAddresses(libvirt.DOMAIN_INTERFACE_ADDRESSES_SRC_LEASE)
	if err != nil {
		return "", errors.Join(err, fmt.Errorf("vmName=%s", vmName), errListDomainAddrs)
	}

	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			if addr.Type == libvirt.IP_ADDR_TYPE_IPV4 {
				return strings.Split(addr.Addr, "/")[0], nil
			}
		}
	}

	return "", errors.Join(fmt.Errorf("vmName=%s", vmName), errNoDomainAddr)
}

func (p *libvirtProvider) DescribeVM(_ context.Context, vmName string) (VMDetails, error) {
	dom, err := p.lookup(vmName)
	if err != nil {
		return VMDetails{}, err
	}
	defer freeDomain(dom)

	xml, err := dom.GetXMLDesc(0)
	if err != nil {
		return VMDetails{}, errors.Join(err, fmt.Errorf("vmName=%s", vmName), errGetDomainXML)
	}

	def := &libvirtxml.Domain{}
	if err := def.Unmarshal(xml); err != nil {
		return VMDetails{}, errors.Join(err, fmt.Errorf("vmName=%s", vmName), errParseDomainXML)
	}

	details := VMDetails{Name: def.Name, UUID: def.UUID}
	if def.Memory != nil {
		details.MemoryMB = memoryToMiB(def.Memory.Value, def.Memory.Unit)
	}
	if def.VCPU != nil {
		details.VCPUs = def.VCPU.Value
	}

	return details, nil
}

func (p *libvirtProvider) Close() error {
	if p.conn == nil {
		return nil
	}
	_, err := p.conn.Close()
	return err
}

func (p *libvirtProvider) lookup(vmName string) (*libvirt.Domain, error) {
	dom, err := p.conn.LookupDomainByName(vmName)
	if err != nil {
		var lverr libvirt.Error
		if errors.As(err, &lverr) && lverr.Code == libvirt.ERR_NO_DOMAIN {
			return nil, errors.Join(fmt.Errorf("vmName=%s", vmName), ErrVMNotFound)
		}
		return nil, errors.Join(err, fmt.Errorf("vmName=%s", vmName))
	}

	return dom, nil
}

// mapDomainState maps a libvirt power state onto the monitoring state model.
// A defined but shut-off domain holds no resources, which matches
// DEALLOCATED; transitional and suspended states map to STOPPED.
func mapDomainState(state libvirt.DomainState) types.VMState {
	switch state {
	case libvirt.DOMAIN_RUNNING:
		return types.VMStateRunning
	case libvirt.DOMAIN_SHUTOFF:
		return types.VMStateDeallocated
	case libvirt.DOMAIN_SHUTDOWN,
		libvirt.DOMAIN_CRASHED,
		libvirt.DOMAIN_PAUSED,
		libvirt.DOMAIN_PMSUSPENDED,
		libvirt.DOMAIN_BLOCKED:
		return types.VMStateStopped
	default:
		return types.VMStateUnknown
	}
}

func memoryToMiB(value uint, unit string) uint {
	switch strings.ToLower(unit) {
	case "", "kib", "k":
		return value / 1024
	case "mib", "m":
		return value
	case "gib", "g":
		return value * 1024
	case "b", "bytes":
		return value / (1024 * 1024)
	default:
		return value
	}
}

func freeDomain(dom *libvirt.Domain) {
	_ = dom.Free()
}
