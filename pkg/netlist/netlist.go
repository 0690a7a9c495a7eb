// Package netlist renders SPICE-flavored transient decks for a single
// transmit/receive link over an S-parameter channel model.
package netlist

// TxSettings describes the driver attached to the transmit port: the
// pulse source and its series/shunt parasitics. Values carry display
// units the way the settings dialogs edit them.
type TxSettings struct {
	VHigh string // pulse high level
	TRise string // edge time, also used for the falling edge
	UI    string // unit interval; pulse period is two intervals
	Res   string // series resistance between source and port
	Cap   string // shunt capacitance at the port
}

// RxSettings describes the termination applied to every receive port.
type RxSettings struct {
	Res string
	Cap string
}

// TransientSettings bound the transient analysis.
type TransientSettings struct {
	TStep string
	TStop string
}

// DefaultTx returns the stock DDR-style driver settings.
func DefaultTx() TxSettings {
	return TxSettings{
		VHigh: "0.8V",
		TRise: "30ps",
		UI:    "133ps",
		Res:   "40ohm",
		Cap:   "1pF",
	}
}

// DefaultRx returns the stock receiver termination.
func DefaultRx() RxSettings {
	return RxSettings{Res: "30ohm", Cap: "1.8pF"}
}

// DefaultTransient returns the stock analysis window.
func DefaultTransient() TransientSettings {
	return TransientSettings{TStep: "100ps", TStop: "3ns"}
}
