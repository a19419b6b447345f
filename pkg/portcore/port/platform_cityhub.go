package port

// City Hub port identities: four external ports, A-D.
const (
	CityHubPortA ID = iota
	CityHubPortB
	CityHubPortC
	CityHubPortD
)

// CityHubCapabilities is the build-time capability table for the LEGO
// City Hub's four external ports. Every City Hub port supports LUMP
// smart devices, passive EV3/NXT analog devices via DCM, and a motor
// terminal.
var CityHubCapabilities = map[ID]Capabilities{
	CityHubPortA: CapLegoDcm | CapUart | CapMotor,
	CityHubPortB: CapLegoDcm | CapUart | CapMotor,
	CityHubPortC: CapLegoDcm | CapUart | CapMotor,
	CityHubPortD: CapLegoDcm | CapUart | CapMotor,
}
