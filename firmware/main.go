//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	uart = machine.UART0

	// Serial buffer for reading lines
	serialBuffer [8]byte
	serialPos    int
)

func main() {
	// Leave the network discharged and idle
	PIN_CHARGE.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_SENSE.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_SENSE.Low()

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	for {
		processSerial()
		time.Sleep(100 * time.Microsecond)
	}
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos == 1 && serialBuffer[0] == 'T' {
				runTrial()
			}
			serialPos = 0
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		}
	}
}

// runTrial discharges the capacitor, charges it through the thermistor and
// reports how long the sense pin took to read high.
func runTrial() {
	PIN_CHARGE.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_SENSE.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_SENSE.Low()
	time.Sleep(DISCHARGE_DELAY_MS * time.Millisecond)

	PIN_SENSE.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_CHARGE.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_CHARGE.High()

	start := time.Now()
	for !PIN_SENSE.Get() {
		if time.Since(start) > CHARGE_TIMEOUT_US*time.Microsecond {
			print("E,timeout\n")
			return
		}
	}
	elapsed := time.Since(start).Microseconds()

	// Output format: "C,<elapsed_us>\n"
	// Example: "C,16684\n"
	print("C,")
	print(elapsed)
	print("\n")
}
