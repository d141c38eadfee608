// Package irblaster is the top-level API for driving IR-blaster peripherals
// It wires the transport channel, the wire link, and the transfer engine
// together so applications only deal with codes and slots.
package irblaster

import (
	"time"

	"kodalissri/irblaster-go/pkg/channel"
	"kodalissri/irblaster-go/pkg/device"
	"kodalissri/irblaster-go/pkg/hub"
	"kodalissri/irblaster-go/pkg/internal/logger"
	"kodalissri/irblaster-go/pkg/transfer"
)

// HubConfig configures a hub controller
type HubConfig struct {
	Transfer transfer.Config
	SlotFile string // Optional TOML slot store path; empty keeps slots in memory
}

// DefaultHubConfig returns a config with the standard transfer settings
func DefaultHubConfig() HubConfig {
	return HubConfig{Transfer: transfer.DefaultConfig()}
}

// NewHub creates a started hub controller over an existing channel
func NewHub(ch channel.PhysicalChannel, cfg HubConfig, log Logger) (*hub.Controller, error) {
	if log == nil {
		log = logger.GetDefault()
	}

	var slots hub.SlotStore
	if cfg.SlotFile != "" {
		fs, err := hub.NewFileSlotStore(cfg.SlotFile)
		if err != nil {
			return nil, err
		}
		slots = fs
	} else {
		slots = hub.NewMemorySlotStore()
	}

	ctrl := hub.New(ch, cfg.Transfer, slots, log)
	ctrl.Start()
	return ctrl, nil
}

// NewTCPHub creates a hub that dials the peripheral over TCP
func NewTCPHub(address string, cfg HubConfig, log Logger) (*hub.Controller, error) {
	ch, err := channel.NewTCPChannel(channel.TCPChannelConfig{
		Address:        address,
		IsServer:       false,
		ReconnectDelay: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return NewHub(ch, cfg, log)
}

// NewQUICHub creates a hub that dials the peripheral over QUIC
func NewQUICHub(address string, cfg HubConfig, log Logger) (*hub.Controller, error) {
	ch, err := channel.NewQUICChannel(channel.QUICChannelConfig{
		Address:        address,
		IsServer:       false,
		ReconnectDelay: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return NewHub(ch, cfg, log)
}

// NewDevice creates a started peripheral emulator over an existing channel
func NewDevice(ch channel.PhysicalChannel, log Logger) *device.Emulator {
	if log == nil {
		log = logger.GetDefault()
	}
	dev := device.NewEmulator(ch, log)
	dev.Start()
	return dev
}

// NewTCPDevice creates a peripheral emulator listening on a TCP address
func NewTCPDevice(address string, log Logger) (*device.Emulator, error) {
	ch, err := channel.NewTCPChannel(channel.TCPChannelConfig{
		Address:  address,
		IsServer: true,
	})
	if err != nil {
		return nil, err
	}
	return NewDevice(ch, log), nil
}

// NewQUICDevice creates a peripheral emulator listening on a QUIC address
func NewQUICDevice(address string, log Logger) (*device.Emulator, error) {
	ch, err := channel.NewQUICChannel(channel.QUICChannelConfig{
		Address:  address,
		IsServer: true,
	})
	if err != nil {
		return nil, err
	}
	return NewDevice(ch, log), nil
}
