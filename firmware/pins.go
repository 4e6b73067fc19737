//go:build tinygo

package main

import "machine"

const (
	// Timing configuration
	DISCHARGE_DELAY_MS = 10     // Capacitor discharge time before each trial
	CHARGE_TIMEOUT_US  = 100000 // Give up if the sense pin is not high by then

	// RC network pins. PIN_CHARGE feeds the thermistor, PIN_SENSE sits on the
	// capacitor and is used both to discharge it and to sense the threshold.
	PIN_CHARGE = machine.D7
	PIN_SENSE  = machine.D8

	// Serial configuration
	// One request "T\n" yields one reply "C,<us>\n" (at most ~10 bytes), so the
	// link is idle almost all the time. 115200 matches the host default.
	UART_BAUD_RATE = 115200
)
