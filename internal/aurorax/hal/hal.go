// Package hal defines the hardware-abstraction surface the engine drives
// (spec §6): radio/IR/backscatter/RIS primitives, opaque to the core. The
// core never reaches for a process-global HAL — callers inject a
// Capabilities value at Engine construction (spec §9 design note).
package hal

// Capabilities is the full primitive set the engine's transmit path calls
// into. A concrete implementation (the Simulator, or eventually real
// radio/IR/backscatter/RIS drivers) satisfies this interface.
type Capabilities interface {
	RadioInit() error
	LoraCfg(freqHz uint64, bwKHz int, sf, cr, preambleSym int) error
	LoraTx(data []byte) error
	LoraRSSI() float64
	CWOn(seconds float64) error
	CWOff() error
	IRTx(data []byte, bitrateBps int) error
	BSModulate(bits []byte, bitrateBps int) error
	RISSetPhases(tiles []byte) error
	FHSSNext(salt byte) uint64
	DutyLeftHint() float64
}
