// Package fujiapp bootstraps the device bus and services cmd/fujinetd's
// commands operate on: a thin operational front end, for demonstration
// and manual testing rather than the firmware's real transport loop.
package fujiapp

import (
	"fmt"

	"github.com/fujinet-nio/fujinet-nio/internal/logger"
	"github.com/fujinet-nio/fujinet-nio/internal/telemetry"
	"github.com/fujinet-nio/fujinet-nio/pkg/bus"
	"github.com/fujinet-nio/fujinet-nio/pkg/config"
	"github.com/fujinet-nio/fujinet-nio/pkg/disk"
	"github.com/fujinet-nio/fujinet-nio/pkg/diskdevice"
	"github.com/fujinet-nio/fujinet-nio/pkg/event"
	"github.com/fujinet-nio/fujinet-nio/pkg/fs"
	"github.com/fujinet-nio/fujinet-nio/pkg/metrics"
	"github.com/fujinet-nio/fujinet-nio/pkg/metrics/prometheus"
	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice"
	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend"
	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend/httpb"
	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend/tcp"
	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend/tls"
)

// Bus device IDs used by this demonstration binary, following the Atari
// SIO convention the original firmware targets: 0x31 is the first disk
// drive, 0x70 is the network device (N:).
const (
	DeviceIDDisk    uint8 = 0x31
	DeviceIDNetwork uint8 = 0x70
)

// App holds everything a command needs to talk to the bus: the loaded
// configuration, the device manager, and direct handles to the disk and
// network services for commands that want typed access instead of raw
// wire requests.
type App struct {
	Config  *config.FujiConfig
	Bus     *bus.DeviceManager
	Disk    *disk.Service
	Net     *netdevice.Device
	Events  *event.Stream
	Storage *fs.StorageManager

	link    *simulatedLink
	Monitor *event.NetworkLinkMonitor
}

// PollLink advances the simulated network link by one step and lets the
// monitor publish whatever transition that implies. It is what
// "fujinetd events tail" drives on a timer to produce a believable stream
// of link events with no real Wi-Fi/Ethernet hardware behind it.
func (a *App) PollLink() {
	a.link.tick()
	a.Monitor.Poll()
}

// Bootstrap loads configuration from configPath (empty for the default
// search path), wires metrics if enabled, and registers the disk and
// network devices on a fresh bus. It mirrors the teacher's runStart
// sequence (load config, init logger, init metrics, build services)
// scaled down to an in-process CLI with no server loop.
func Bootstrap(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	loggerCfg := logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}
	if err := logger.Init(loggerCfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var busMetrics metrics.BusMetrics
	var diskMetrics metrics.DiskMetrics
	var netMetrics metrics.NetworkMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		busMetrics = prometheus.NewBusMetrics()
		diskMetrics = prometheus.NewDiskMetrics()
		netMetrics = prometheus.NewNetworkMetrics()
	}

	storage := fs.NewStorageManager()
	if err := storage.Register(fs.NewMemFS("flash")); err != nil {
		return nil, fmt.Errorf("register storage: %w", err)
	}

	diskSvc := disk.NewService(storage)
	diskSvc.SetMetrics(diskMetrics)

	registry := netdevice.NewRegistry()
	registry.Register("tcp", func() backend.Backend { return tcp.New() })
	registry.Register("http", func() backend.Backend { return httpb.New() })
	registry.Register("https", func() backend.Backend { return httpb.New() })
	registry.Register("tls", func() backend.Backend { return tls.New() })
	netDev := netdevice.New(registry)
	netDev.SetMetrics(netMetrics)

	manager := bus.NewDeviceManager()
	manager.SetMetrics(busMetrics)
	if err := manager.Register(DeviceIDDisk, diskdevice.New(diskSvc)); err != nil {
		return nil, fmt.Errorf("register disk device: %w", err)
	}
	if err := manager.Register(DeviceIDNetwork, netDev); err != nil {
		return nil, fmt.Errorf("register network device: %w", err)
	}

	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled")
	}

	events := event.NewStream()
	link := &simulatedLink{}
	monitor := event.NewNetworkLinkMonitor(link, events)

	return &App{
		Config:  cfg,
		Bus:     manager,
		Disk:    diskSvc,
		Net:     netDev,
		Events:  events,
		Storage: storage,
		link:    link,
		Monitor: monitor,
	}, nil
}
