// Package audio implements the signal conditioning applied to recorded
// speech audio: removal of electrical mains interference and detection
// of the 1 kHz go-signal beep used in delayed naming experiments.
package audio
