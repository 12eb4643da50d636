package blelink

import (
	"github.com/commatea/agt-go/pkg/agterrors"
	"github.com/commatea/agt-go/pkg/logger"
	"github.com/commatea/agt-go/pkg/wire"
)

// Control commands recognized on the CONTROL stream (SPEC_FULL.md §4.4).
const (
	CmdGetDeviceInformation byte = 0x01
	CmdGetDeviceFeatures    byte = 0x02
)

// DeviceInformation is the response payload for CmdGetDeviceInformation.
type DeviceInformation struct {
	SerialNumber        string
	Name                string
	SupportedTransports []string
	DeviceType          string
}

// DeviceFeatures is the response payload for CmdGetDeviceFeatures.
// Features 0x01 flags this gadget as AGT-style (SPEC_FULL.md Open Question b).
type DeviceFeatures struct {
	Features         uint8
	DeviceAttributes uint32
}

func encodeDeviceInformationResponse(info DeviceInformation) []byte {
	w := &wire.Writer{}
	w.WriteUint8(CmdGetDeviceInformation)
	w.WriteString(info.SerialNumber)
	w.WriteString(info.Name)
	w.WriteUint8(uint8(len(info.SupportedTransports)))
	for _, t := range info.SupportedTransports {
		w.WriteString(t)
	}
	w.WriteString(info.DeviceType)
	return w.Bytes()
}

func encodeDeviceFeaturesResponse(f DeviceFeatures) []byte {
	w := &wire.Writer{}
	w.WriteUint8(CmdGetDeviceFeatures)
	w.WriteUint8(f.Features)
	w.WriteUint32(f.DeviceAttributes)
	return w.Bytes()
}

// ControlHandler answers CONTROL-stream queries with device identity
// (SPEC_FULL.md §4.4). It is stateless beyond the identity it was built
// with.
type ControlHandler struct {
	Info     DeviceInformation
	Features DeviceFeatures
}

// NewControlHandler builds a handler that always answers with the same
// device identity.
func NewControlHandler(endpointID, friendlyName, amazonDeviceType string) *ControlHandler {
	return &ControlHandler{
		Info: DeviceInformation{
			SerialNumber:        endpointID,
			Name:                friendlyName,
			SupportedTransports: []string{"BLUETOOTH_LOW_ENERGY"},
			DeviceType:          amazonDeviceType,
		},
		Features: DeviceFeatures{Features: 0x01, DeviceAttributes: 0},
	}
}

// Handle parses a CONTROL-stream payload and returns the response bytes to
// write back on the CONTROL stream, or nil if the command is unrecognized
// (logged and ignored per SPEC_FULL.md §4.4).
func (h *ControlHandler) Handle(payload []byte) ([]byte, error) {
	r := wire.NewReader(payload)
	cmd, err := r.ReadUint8()
	if err != nil {
		return nil, agterrors.New(agterrors.KindDecode, "blelink.ControlHandler.Handle", err)
	}

	switch cmd {
	case CmdGetDeviceInformation:
		return encodeDeviceInformationResponse(h.Info), nil
	case CmdGetDeviceFeatures:
		return encodeDeviceFeaturesResponse(h.Features), nil
	default:
		logger.Global().Debug("blelink: ignoring unrecognized control command", "command", cmd)
		return nil, nil
	}
}
