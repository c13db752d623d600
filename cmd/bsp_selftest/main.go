//go:build !s32k144

// Command bsp_selftest runs the full board support bring-up against the
// simulated chip: clock and power sequencing, watchdog, CAN transmit and
// receive, the UART console and the crypto engine. It is the same path the
// firmware takes on hardware, runnable on any development machine.
//
// Exit status is zero when every stage passes.
package main

import (
	"flag"
	"fmt"

	"github.com/golang/glog"

	"github.com/jangala-dev/tinygo-s32k/csec"
	"github.com/jangala-dev/tinygo-s32k/flexcan"
	"github.com/jangala-dev/tinygo-s32k/lpuart"
	"github.com/jangala-dev/tinygo-s32k/pc"
	"github.com/jangala-dev/tinygo-s32k/pcc"
	"github.com/jangala-dev/tinygo-s32k/sim"
	"github.com/jangala-dev/tinygo-s32k/wdog"
)

var (
	oscFreq = flag.Uint("osc_hz", 8_000_000, "crystal frequency in Hz")
	baud    = flag.Uint("baud", 115200, "console baud rate")
	bitRate = flag.Uint("bitrate", 500_000, "CAN bit rate in bits/s")
	rounds  = flag.Int("rounds", 8, "CAN echo rounds to run")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	board := sim.NewBoard()
	p := board.Peripherals()

	scg, _ := p.TakeSCG()
	smc, _ := p.TakeSMC()
	pmc, _ := p.TakePMC()
	pccBlock, _ := p.TakePCC()
	wdogBlock, _ := p.TakeWDOG()
	canBlock, _ := p.TakeCAN0()
	uartBlock, _ := p.TakeLPUART1()
	ftfc, _ := p.TakeFTFC()
	pram, _ := p.TakeCSEPRAM()

	clocks := pc.New(scg, smc, pmc)
	if err := clocks.Configure(pc.Config{
		Source: pc.SourceSOSC,
		Oscillator: pc.Oscillator{
			Kind:      pc.OscCrystal,
			Frequency: uint32(*oscFreq),
		},
		SOSCDIV2: pc.OscDiv1,
	}); err != nil {
		glog.Exitf("clock configuration: %v", err)
	}
	glog.Infof("core clock %d Hz", clocks.CurrentFrequency())

	periphClock, ok := clocks.SOSCDIV2Frequency()
	if !ok {
		glog.Exit("soscdiv2 output disabled")
	}

	gates := pcc.New(pccBlock)
	if err := gates.EnableCAN0(); err != nil {
		glog.Exitf("clock gate CAN0: %v", err)
	}
	if err := gates.EnableLPUART1(pcc.SourceSOSCDIV2); err != nil {
		glog.Exitf("clock gate LPUART1: %v", err)
	}

	guard := wdog.New(wdogBlock)
	if err := guard.Init(wdog.Config{TimeoutMillis: 1000}); err != nil {
		glog.Exitf("watchdog: %v", err)
	}

	can := flexcan.New(canBlock)
	if err := can.Configure(flexcan.Settings{
		SourceFrequency: periphClock,
		BitRate:         uint32(*bitRate),
		Loopback:        true,
		SelfReception:   true,
	}); err != nil {
		glog.Exitf("CAN: %v", err)
	}

	console := lpuart.New(uartBlock)
	if err := console.Configure(lpuart.Config{
		BaudRate:        uint32(*baud),
		SourceFrequency: periphClock,
	}); err != nil {
		glog.Exitf("console: %v", err)
	}

	engine := csec.New(ftfc, pram, 0)
	key, err := engine.GenerateRandom()
	if err != nil {
		glog.Exitf("rng: %v", err)
	}
	if err := engine.LoadPlainKey(key); err != nil {
		glog.Exitf("load key: %v", err)
	}

	// Echo rounds: transmit an authenticated frame in loopback, receive it
	// back, verify its MAC, service the watchdog.
	for i := 0; i < *rounds; i++ {
		payload := []byte{byte(i), byte(i >> 8), 0xA5, 0x5A}
		frame, err := flexcan.NewFrame(0x123, payload)
		if err != nil {
			glog.Exitf("round %d: frame: %v", i, err)
		}
		if _, err := can.Enqueue(frame, 0); err != nil {
			glog.Exitf("round %d: enqueue: %v", i, err)
		}
		board.CompleteCANTransmit()

		got, err := can.PollReceive()
		if err != nil {
			glog.Exitf("round %d: receive: %v", i, err)
		}
		if got == nil {
			glog.Exitf("round %d: loopback frame lost", i)
		}
		mac, err := engine.GenerateMAC(csec.SlotRAMKey, got.Data[:got.Len])
		if err != nil {
			glog.Exitf("round %d: mac: %v", i, err)
		}
		verified, err := engine.VerifyMAC(csec.SlotRAMKey, got.Data[:got.Len], mac)
		if err != nil || !verified {
			glog.Exitf("round %d: verify failed: %v", i, err)
		}
		if err := guard.Refresh(); err != nil {
			glog.Exitf("round %d: watchdog refresh: %v", i, err)
		}

		line := fmt.Sprintf("round %d id=0x%03X ok\r\n", i, got.ID)
		if _, err := console.Write([]byte(line)); err != nil {
			glog.Exitf("round %d: console: %v", i, err)
		}
		glog.V(1).Infof("round %d: %d bytes echoed", i, got.Len)
	}

	if err := console.Flush(); err != nil {
		glog.Exitf("console flush: %v", err)
	}
	if board.WatchdogResets() != 0 {
		glog.Exitf("watchdog bit during the run")
	}
	glog.Infof("self-test passed: %d rounds, %d console bytes",
		*rounds, len(board.SerialOutput()))
}
