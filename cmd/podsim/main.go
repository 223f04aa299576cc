// podsim drives a full pod lifecycle — pairing, priming, cannula insertion,
// a bolus, and deactivation — against an in-memory simulated pod, optionally
// behind a flaky radio link that drops a configurable fraction of packets.
//
// Usage:
//
//	podsim [options]
//
// Options:
//
//	-address    pod radio address (default: 0x1f2e3d4c)
//	-lot        pod lot number (default: 43620)
//	-tid        pod tid (default: 7)
//	-drop-rate  probability each send is dropped by the simulated link (default: 0)
//	-reservoir  starting reservoir volume in units (default: 200)
//	-bolus      bolus size in units to deliver once setup completes (default: 2.5)
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"time"

	"github.com/dosewise/podcomms/pkg/config"
	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/podsession"
	"github.com/dosewise/podcomms/pkg/podstate"
	"github.com/dosewise/podcomms/pkg/transport"
)

// basalSchedule builds a flat 48-segment (half-hourly) schedule at rate
// units/hour, standing in for a real profile in this demo.
func basalSchedule(rate float64) []float64 {
	sched := make([]float64, 48)
	for i := range sched {
		sched[i] = rate
	}
	return sched
}

type loggingDelegate struct{}

func (loggingDelegate) PodCommsSessionDidChange(s *podsession.Session, ps *podstate.PodState) {
	log.Printf("[%s] setupProgress=%s suspended=%v faulted=%v",
		s.ID, ps.SetupProgress, ps.Suspend.IsSuspended(), ps.IsFaulted())
}

func main() {
	address := flag.Uint("address", 0x1f2e3d4c, "pod radio address")
	lot := flag.Uint("lot", 43620, "pod lot number")
	tid := flag.Uint("tid", 7, "pod tid")
	dropRate := flag.Float64("drop-rate", 0, "probability the simulated radio link drops a packet")
	reservoir := flag.Float64("reservoir", 200, "starting reservoir volume in units")
	bolusUnits := flag.Float64("bolus", 2.5, "bolus size in units to deliver once setup completes")
	flag.Parse()

	now := time.Now()
	state := podstate.New(uint32(*address), uint32(*lot), uint32(*tid), "1.0.0", "1.0.0", 0, now)
	state.ActivatedAt = &now

	pod := newFirmware(now, *reservoir)
	link := transport.NewSimulatedPod(pod.handle, nil)

	var tr transport.MessageTransport = link
	if *dropRate > 0 {
		tr = transport.NewFlakyLink(link, func(attempt int) bool {
			return attempt == 0 && rand.Float64() < *dropRate
		}, nil)
	}

	sess := podsession.New(state, tr, config.Default(), nil)
	defer sess.ForgetPod()
	sess.SetDelegate(loggingDelegate{})

	ctx := context.Background()
	log.Printf("session %s: pairing pod at address %#x (lot %d, tid %d)", sess.ID, state.Address, state.Lot, state.Tid)

	if _, err := sess.Prime(ctx, time.Now()); err != nil {
		log.Fatalf("prime: %v", err)
	}

	if err := sess.ProgramInitialBasalSchedule(ctx, basalSchedule(1.0), 0, time.Now()); err != nil {
		log.Fatalf("program initial basal schedule: %v", err)
	}

	if _, err := sess.InsertCannula(ctx, time.Now()); err != nil {
		log.Fatalf("insert cannula: %v", err)
	}

	done, err := sess.CheckInsertionCompleted(ctx, time.Now())
	if err != nil {
		log.Fatalf("check insertion completed: %v", err)
	}
	if !done {
		log.Println("cannula insertion still in progress, retry CheckInsertionCompleted later")
	}

	res := sess.Bolus(ctx, *bolusUnits, message.BeepBipBip, 0, time.Now())
	log.Printf("bolus of %.2fU: %s", *bolusUnits, res.Kind)

	status, err := sess.GetStatus(ctx, time.Now())
	if err != nil {
		log.Fatalf("get status: %v", err)
	}
	log.Printf("status: progress=%s delivered=%.2fU reservoir=%.2fU", status.PodProgress, status.InsulinDelivered, status.ReservoirLevel)

	if err := sess.DeactivatePod(ctx, time.Now()); err != nil {
		log.Fatalf("deactivate: %v", err)
	}
	log.Println("pod deactivated")
}
