package schema

import (
	"fmt"
	"strings"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
)

const (
	devicePrefix = "d_"
	sensorPrefix = "s_"
)

// DeviceSchema describes one device: the group it is stored in, its name and its ordered sensors.
// Sensor order is significant: data type and function assignment are by index.
// A DeviceSchema is never modified after construction.
type DeviceSchema struct {
	Group    string
	Device   string
	DeviceID int
	Sensors  []string
	Types    []DataType
}

func (d *DeviceSchema) String() string {
	return d.Group + "." + d.Device
}

// SensorType returns the data type of the named sensor.
func (d *DeviceSchema) SensorType(sensor string) (DataType, bool) {
	for i, s := range d.Sensors {
		if s == sensor {
			return d.Types[i], true
		}
	}
	return 0, false
}

type GroupStrategy string

const (
	GroupByHash GroupStrategy = "hash"
	GroupByMod  GroupStrategy = "mod"
	GroupByDiv  GroupStrategy = "div"
)

func (g *GroupStrategy) UnmarshalText(text []byte) error {
	switch s := GroupStrategy(strings.ToLower(string(text))); s {
	case GroupByHash, GroupByMod, GroupByDiv:
		*g = s
		return nil
	default:
		return fmt.Errorf("unknown group strategy %q, expected one of hash, mod, div", string(text))
	}
}

// Layout describes how devices and sensors are named and distributed over groups and clients.
type Layout struct {
	DeviceNumber    int
	SensorNumber    int
	GroupNumber     int
	GroupNamePrefix string
	GroupStrategy   GroupStrategy
	ClientNumber    int
	Types           *TypeAssignment
}

// DataSchema holds every device schema of the run, plus the devices bound to each client.
type DataSchema struct {
	devices  []*DeviceSchema
	byClient [][]*DeviceSchema
}

// Build lays out all devices. Device d is bound to client d % ClientNumber.
func Build(layout Layout) (*DataSchema, error) {
	if layout.DeviceNumber <= 0 || layout.SensorNumber <= 0 {
		return nil, bencherrors.NewConfigError("deviceNumber/sensorNumber",
			fmt.Sprintf("%d/%d", layout.DeviceNumber, layout.SensorNumber), "must both be positive")
	}
	if layout.GroupNumber <= 0 || layout.GroupNumber > layout.DeviceNumber {
		return nil, bencherrors.NewConfigError("groupNumber", layout.GroupNumber, "must be in [1, deviceNumber]")
	}
	if layout.ClientNumber <= 0 {
		return nil, bencherrors.NewConfigError("clientNumber", layout.ClientNumber, "must be positive")
	}

	sensors := SensorNames(layout.SensorNumber)
	types := make([]DataType, len(sensors))
	for i := range sensors {
		types[i] = layout.Types.TypeOf(i, len(sensors))
	}

	ds := &DataSchema{
		devices:  make([]*DeviceSchema, layout.DeviceNumber),
		byClient: make([][]*DeviceSchema, layout.ClientNumber),
	}
	for id := range layout.DeviceNumber {
		device := &DeviceSchema{
			Group:    layout.GroupNamePrefix + fmt.Sprint(layout.groupIndex(id)),
			Device:   DeviceName(id),
			DeviceID: id,
			Sensors:  sensors,
			Types:    types,
		}
		ds.devices[id] = device
		client := id % layout.ClientNumber
		ds.byClient[client] = append(ds.byClient[client], device)
	}
	return ds, nil
}

func (l Layout) groupIndex(deviceID int) int {
	switch l.GroupStrategy {
	case GroupByMod:
		return deviceID % l.GroupNumber
	case GroupByDiv:
		return deviceID * l.GroupNumber / l.DeviceNumber
	default:
		return int(hashName(DeviceName(deviceID)) % uint64(l.GroupNumber))
	}
}

// Devices returns every device of the run, ordered by device id.
func (d *DataSchema) Devices() []*DeviceSchema {
	return d.devices
}

// ClientDevices returns the devices bound to the given client.
func (d *DataSchema) ClientDevices(clientID int) []*DeviceSchema {
	if clientID < 0 || clientID >= len(d.byClient) {
		return nil
	}
	return d.byClient[clientID]
}

// Groups returns the distinct group names in first-seen device order.
func (d *DataSchema) Groups() []string {
	seen := map[string]bool{}
	var groups []string
	for _, device := range d.devices {
		if !seen[device.Group] {
			seen[device.Group] = true
			groups = append(groups, device.Group)
		}
	}
	return groups
}

func DeviceName(id int) string {
	return fmt.Sprintf("%s%d", devicePrefix, id)
}

func SensorNames(n int) []string {
	names := make([]string, n)
	for i := range n {
		names[i] = fmt.Sprintf("%s%d", sensorPrefix, i)
	}
	return names
}

// FNV-1a
func hashName(name string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= 1099511628211
	}
	return h
}
