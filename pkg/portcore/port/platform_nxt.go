package port

// NXT brick port identities: four sensor ports (1-4) and three motor
// ports (A-C).
const (
	NxtSensor1 ID = iota
	NxtSensor2
	NxtSensor3
	NxtSensor4
	NxtMotorA
	NxtMotorB
	NxtMotorC
)

// NxtCapabilities is the build-time capability table for the NXT brick.
// Sensor ports run the full DCM classifier (NXT/EV3 passive protocols
// plus LUMP); motor ports are quadrature-passive only and start directly
// in ModeQuadraturePassive rather than ModeNone.
var NxtCapabilities = map[ID]Capabilities{
	NxtSensor1: CapLegoDcm,
	NxtSensor2: CapLegoDcm,
	NxtSensor3: CapLegoDcm,
	NxtSensor4: CapLegoDcm,
	NxtMotorA:  CapQuadraturePassive | CapMotor,
	NxtMotorB:  CapQuadraturePassive | CapMotor,
	NxtMotorC:  CapQuadraturePassive | CapMotor,
}
