package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/jimsnab/go-cmdline"
	cosim_jtag "github.com/jimsnab/go-cosim-jtag"
	"github.com/jimsnab/go-lane"
	"golang.org/x/term"
)

type (
	serverEngine struct {
		mu          sync.Mutex
		args        cmdline.Values
		l           lane.Lane
		eng         cosim_jtag.JtagCosimEngine
		canExit     chan struct{}
		stopTicker  chan struct{}
		tickerDone  chan struct{}
		terminating bool
		socketPath  string
		tickRate    int
	}
)

func main() {
	cl := cmdline.NewCommandLine()

	cl.RegisterCommand(
		mainHandler,
		"~?Runs a loopback JTAG cosimulation server. tdi is wired back to tdo, so a debugger's remote bitbang driver can be exercised without a simulator.",
		"[--trace]?Enable trace logging",
		"[--socket <string-path>]?Specify the unix socket path. The default is /tmp/cosim_jtag.sock.",
		"[--rate <int-hz>]?Specify the simulated clock rate in ticks per second. The default is 1000.",
		"[--history <string-file>]?Record pin transitions, persisted to <file> on exit.",
	)

	args := os.Args[1:] // exclude executable name in os.Args[0]
	err := cl.Process(args)
	if err != nil {
		cl.Help(err, "cosim-jtag-server", args)
	}
}

func mainHandler(args cmdline.Values) error {
	srv := serverEngine{args: args}

	if err := srv.start(); err != nil {
		return err
	}
	srv.waitForTermination()

	return nil
}

func (srv *serverEngine) start() error {
	srv.l = lane.NewLogLane(context.Background())

	isTrace := srv.args["--trace"].(bool)
	if !isTrace {
		srv.l.SetLogLevel(lane.LogLevelInfo)
	}

	srv.socketPath = cosim_jtag.DefaultSocketPath
	if srv.args["--socket"].(bool) {
		srv.socketPath = srv.args["path"].(string)
	}

	srv.tickRate = 1000
	if srv.args["--rate"].(bool) {
		srv.tickRate = srv.args["hz"].(int)
		if srv.tickRate < 1 {
			return fmt.Errorf("invalid tick rate %d", srv.tickRate)
		}
	}

	opts := []cosim_jtag.EngineOption{cosim_jtag.WithSocketPath(srv.socketPath)}
	if srv.args["--history"].(bool) {
		ph, err := cosim_jtag.NewPinHistory(srv.l, srv.args["file"].(string))
		if err != nil {
			return err
		}
		opts = append(opts, cosim_jtag.WithHistory(ph))
	}

	srv.eng = cosim_jtag.NewJtagCosimEngine(srv.l, opts...)

	fmt.Printf("\n\nJTAG loopback server is now running\n\nPress any key to quit\n\n")

	// launch termination monitors
	srv.canExit = make(chan struct{})
	srv.killSignalMonitor()
	srv.exitKeyMonitor()

	// start the simulated clock
	srv.startTicker()

	return nil
}

func (srv *serverEngine) startTicker() {
	srv.stopTicker = make(chan struct{})
	srv.tickerDone = make(chan struct{})

	go func() {
		timer := time.NewTicker(time.Second / time.Duration(srv.tickRate))
		defer timer.Stop()

		// without a simulated design, loop the driven tdi back as the
		// sampled tdo of the next edge
		tdo := cosim_jtag.LogicX

		for {
			select {
			case <-srv.stopTicker:
				close(srv.tickerDone)
				return
			case <-timer.C:
				pins, err := srv.eng.Tick(tdo)
				if err != nil {
					srv.l.Errorf("tick failed: %s", err.Error())
					close(srv.tickerDone)
					srv.startTermination()
					return
				}
				tdo = pins.Tdi
			}
		}
	}()
}

func (srv *serverEngine) startTermination() {
	// ensure only one termination
	srv.mu.Lock()
	isTerminating := srv.terminating
	srv.terminating = true
	srv.mu.Unlock()

	if isTerminating {
		return
	}

	go func() { srv.onTerminate() }()
}

func (srv *serverEngine) onTerminate() {
	srv.l.Tracef("stopping the simulated clock")
	close(srv.stopTicker)
	<-srv.tickerDone

	if err := srv.eng.Close(); err != nil {
		srv.l.Errorf("shutdown error: %s", err.Error())
	}
	srv.l.Infof("termination of %s completed", srv.socketPath)

	srv.canExit <- struct{}{}
}

func (srv *serverEngine) killSignalMonitor() {
	// register a graceful termination handler
	sigs := make(chan os.Signal, 10)
	signal.Notify(sigs, os.Interrupt)

	go func() {
		sig := <-sigs
		srv.l.Infof("termination %s signaled for %s", sig, srv.socketPath)
		srv.startTermination()
	}()
}

func (srv *serverEngine) exitKeyMonitor() {
	// Start a go routine to detect a keypress. Upon termination
	// triggered another way, this goroutine will leak. Go does
	// not give a reasonable way to cancel a blocking I/O call.
	go func() {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			fmt.Println(err)
			return
		}
		defer term.Restore(int(os.Stdin.Fd()), oldState)

		b := make([]byte, 1)
		_, err = os.Stdin.Read(b)
		if err == nil {
			srv.startTermination()
		}
	}()
}

func (srv *serverEngine) waitForTermination() {
	// wait for the clock to stop and the socket to close
	<-srv.canExit
	srv.l.Info("finished serving debug requests")
}
