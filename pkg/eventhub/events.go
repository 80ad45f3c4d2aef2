package eventhub

import "github.com/gfiorelli/plantwatch/internal/model"

// Kind tags one of the closed set of event kinds flowing through the hub.
type Kind string

const (
	KindData           Kind = "data"
	KindReservoir      Kind = "reservoir"
	KindConnection     Kind = "connection"
	KindAlert          Kind = "alert"
	KindControlSuccess Kind = "controlSuccess"
	KindControlError   Kind = "controlError"
	KindError          Kind = "error"
)

// Event is the closed variant of hub payloads. Each kind carries its own
// strongly typed payload struct below.
type Event interface {
	Kind() Kind
}

// DataEvent carries the fused reading for the active plant.
type DataEvent struct {
	Reading model.CombinedReading
}

func (DataEvent) Kind() Kind { return KindData }

// ReservoirEvent carries the latest tank snapshot.
type ReservoirEvent struct {
	Levels model.ReservoirLevels
}

func (ReservoirEvent) Kind() Kind { return KindReservoir }

// ConnectionEvent signals link up/down transitions.
type ConnectionEvent struct {
	Status model.ConnectionStatus
}

func (ConnectionEvent) Kind() Kind { return KindConnection }

// AlertEvent carries an informational notification.
type AlertEvent struct {
	Alert model.Alert
}

func (AlertEvent) Kind() Kind { return KindAlert }

// ControlSuccessEvent reports a successfully applied actuation command.
type ControlSuccessEvent struct {
	Result model.ControlResult
}

func (ControlSuccessEvent) Kind() Kind { return KindControlSuccess }

// ControlErrorEvent reports a rejected or failed actuation command.
type ControlErrorEvent struct {
	Result model.ControlResult
}

func (ControlErrorEvent) Kind() Kind { return KindControlError }

// ErrorEvent reports a boundary-condition failure such as retry exhaustion.
type ErrorEvent struct {
	Message string
	Details string
}

func (ErrorEvent) Kind() Kind { return KindError }
