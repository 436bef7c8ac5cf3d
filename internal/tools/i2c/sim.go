package i2c

import "context"

// SimulatedScanner is a host-side BusScanner for tests.
type SimulatedScanner struct {
	Devices []int // addresses that respond
	Closed  int   // count of Close calls, for exit-path assertions
}

func (s *SimulatedScanner) Open(_ context.Context, sdaPin, sclPin, frequencyHz int) (Bus, error) {
	return &simBus{scanner: s, devices: s.Devices}, nil
}

type simBus struct {
	scanner *SimulatedScanner
	devices []int
}

func (b *simBus) Probe(_ context.Context, address int) (bool, error) {
	for _, d := range b.devices {
		if d == address {
			return true, nil
		}
	}
	return false, nil
}

func (b *simBus) Close() error {
	b.scanner.Closed++
	return nil
}
