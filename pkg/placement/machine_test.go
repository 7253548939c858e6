package placement_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fleetplacer/core/internal/ratelimit"
	"github.com/fleetplacer/core/pkg/lease"
	"github.com/fleetplacer/core/pkg/placement"
	"github.com/fleetplacer/core/pkg/ports"
)

func TestPlacement(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "placement")
}

type fakeTracker struct {
	assigned map[string]string
}

func newFakeTracker() *fakeTracker { return &fakeTracker{assigned: make(map[string]string)} }

func (f *fakeTracker) AssignedHosts(taskID string) []string {
	if h, ok := f.assigned[taskID]; ok {
		return []string{h}
	}
	return nil
}

func (f *fakeTracker) TrackAssignment(taskID, hostname string) error {
	if existing, ok := f.assigned[taskID]; ok && existing != hostname {
		return placement.ErrDuplicateTask
	}
	f.assigned[taskID] = hostname
	return nil
}

func (f *fakeTracker) Untrack(taskID string) { delete(f.assigned, taskID) }

func alwaysFit(*placement.TaskRequest, placement.VMCurrentState, placement.TaskTrackerState) float64 {
	return 1.0
}

func zeroFit(*placement.TaskRequest, placement.VMCurrentState, placement.TaskTrackerState) float64 {
	return 0.0
}

func newLease(id, host string, cpu, mem, net, disk float64, portRanges ...ports.Range) lease.Lease {
	return lease.Lease{
		LeaseID:     id,
		VMID:        "vm-" + id,
		Hostname:    host,
		CPUCores:    cpu,
		MemoryMB:    mem,
		NetworkMbps: net,
		DiskMB:      disk,
		PortRanges:  portRanges,
		Attributes:  lease.Attributes{},
		OfferedAt:   time.Now(),
	}
}

var _ = Describe("MachineState", func() {
	var (
		leaseIdx *lease.Index
		vmIdx    *lease.Index
		tracker  *fakeTracker
		m        *placement.MachineState
	)

	BeforeEach(func() {
		leaseIdx = lease.NewIndex()
		vmIdx = lease.NewIndex()
		tracker = newFakeTracker()
		m = placement.NewMachineState("host-1", leaseIdx, vmIdx, tracker)
	})

	Describe("simple placement", func() {
		It("assigns a task that fits and reserves its ports", func() {
			ok, err := m.AddLease(newLease("l1", "host-1", 4, 4096, 1000, 10000, ports.Range{Begin: 31000, End: 31001}))
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			req := &placement.TaskRequest{RequestID: "r1", TaskID: "t1", CPUCores: 1, MemoryMB: 512, Ports: 1}
			result := m.TryAssign(req, alwaysFit)
			Expect(result).NotTo(BeNil())
			Expect(result.Successful).To(BeTrue())
			Expect(result.Fitness).To(Equal(1.0))

			Expect(m.Assign(result)).To(Succeed())
			Expect(result.AssignedPorts).To(Equal([]int{31000}))

			status := m.ResourceStatus()
			Expect(status.UsedCPU).To(Equal(1.0))
			Expect(status.UsedMemory).To(Equal(512.0))
		})

		It("rejects a task whose fitness function returns zero", func() {
			Expect(mustAdd(m, newLease("l1", "host-1", 4, 4096, 1000, 10000))).To(BeTrue())
			req := &placement.TaskRequest{RequestID: "r1", TaskID: "t1", CPUCores: 1, MemoryMB: 512}
			result := m.TryAssign(req, zeroFit)
			Expect(result.Successful).To(BeFalse())
			Expect(result.ResourceFailures).To(HaveLen(1))
			Expect(result.ResourceFailures[0].Dimension).To(Equal(placement.DimFitness))
		})

		It("reports a resource failure per dimension that does not fit", func() {
			Expect(mustAdd(m, newLease("l1", "host-1", 1, 512, 100, 1000))).To(BeTrue())
			req := &placement.TaskRequest{RequestID: "r1", TaskID: "t1", CPUCores: 2, MemoryMB: 1024}
			result := m.TryAssign(req, alwaysFit)
			Expect(result.Successful).To(BeFalse())
			Expect(result.ResourceFailures).To(HaveLen(2))
		})

		It("returns nil when the machine holds no leases", func() {
			req := &placement.TaskRequest{RequestID: "r1", TaskID: "t1", CPUCores: 1}
			Expect(m.TryAssign(req, alwaysFit)).To(BeNil())
		})
	})

	Describe("exclusive-host stickiness", func() {
		It("rejects every later request once an exclusive task is assigned", func() {
			Expect(mustAdd(m, newLease("l1", "host-1", 8, 8192, 1000, 10000))).To(BeTrue())

			exclusiveReq := &placement.TaskRequest{RequestID: "r1", TaskID: "excl", CPUCores: 1, MemoryMB: 512, IsExclusive: true}
			result := m.TryAssign(exclusiveReq, alwaysFit)
			Expect(result.Successful).To(BeTrue())
			Expect(m.Assign(result)).To(Succeed())

			otherReq := &placement.TaskRequest{RequestID: "r2", TaskID: "other", CPUCores: 1, MemoryMB: 512}
			otherResult := m.TryAssign(otherReq, alwaysFit)
			Expect(otherResult.Successful).To(BeFalse())
			Expect(otherResult.ConstraintFailure).NotTo(BeNil())
			Expect(otherResult.ConstraintFailure.Name).To(Equal(placement.ExclusiveHostConstraintName))
		})

		It("releases the exclusive marker once the task is unassigned", func() {
			Expect(mustAdd(m, newLease("l1", "host-1", 8, 8192, 1000, 10000))).To(BeTrue())
			exclusiveReq := &placement.TaskRequest{RequestID: "r1", TaskID: "excl", CPUCores: 1, MemoryMB: 512, IsExclusive: true}
			result := m.TryAssign(exclusiveReq, alwaysFit)
			Expect(m.Assign(result)).To(Succeed())

			m.MarkTaskForUnassign("excl")
			m.PrepareForScheduling()

			Expect(mustAdd(m, newLease("l2", "host-1", 8, 8192, 1000, 10000))).To(BeTrue())
			otherReq := &placement.TaskRequest{RequestID: "r2", TaskID: "other", CPUCores: 1, MemoryMB: 512}
			otherResult := m.TryAssign(otherReq, alwaysFit)
			Expect(otherResult.Successful).To(BeTrue())
		})
	})

	Describe("lease lifecycle", func() {
		It("round-trips through addLease/expireLease/removeExpiredLeases", func() {
			before := m.UpdateTotalLeaseView()
			Expect(mustAdd(m, newLease("l1", "host-1", 4, 4096, 1000, 10000))).To(BeTrue())
			m.ExpireLease("l1")
			m.RemoveExpiredLeases(false)
			after := m.UpdateTotalLeaseView()
			Expect(after.CPUCores).To(Equal(before.CPUCores))
			Expect(after.MemoryMB).To(Equal(before.MemoryMB))
		})

		It("treats expireAllLeases as equivalent to a forced removal", func() {
			Expect(mustAdd(m, newLease("l1", "host-1", 4, 4096, 1000, 10000))).To(BeTrue())
			Expect(mustAdd(m, newLease("l2", "host-1", 2, 2048, 500, 5000))).To(BeTrue())
			m.ExpireAllLeases()
			m.RemoveExpiredLeases(false)
			view := m.UpdateTotalLeaseView()
			Expect(view.CPUCores).To(Equal(0.0))
		})

		It("rejects a duplicate lease id without mutating state", func() {
			l := newLease("l1", "host-1", 4, 4096, 1000, 10000)
			Expect(mustAdd(m, l)).To(BeTrue())
			ok, err := m.AddLease(l)
			Expect(ok).To(BeFalse())
			Expect(err).To(MatchError(placement.ErrDuplicateLease))
		})

		It("publishes the leaseId into the shared index on add and removes it on harvest", func() {
			Expect(mustAdd(m, newLease("l1", "host-1", 4, 4096, 1000, 10000))).To(BeTrue())
			host, ok := leaseIdx.Lookup("l1")
			Expect(ok).To(BeTrue())
			Expect(host).To(Equal("host-1"))

			req := &placement.TaskRequest{RequestID: "r1", TaskID: "t1", CPUCores: 1, MemoryMB: 512}
			result := m.TryAssign(req, alwaysFit)
			Expect(m.Assign(result)).To(Succeed())
			harvested := m.ResetAndHarvestSuccessful()
			Expect(harvested).NotTo(BeNil())
			Expect(harvested.Successful).To(HaveLen(1))

			_, ok = leaseIdx.Lookup("l1")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("disabling a machine", func() {
		It("rejects every held lease and refuses new offers until re-enabled", func() {
			var rejected []string
			m = placement.NewMachineState("host-2", leaseIdx, vmIdx, tracker,
				placement.WithRejectCallback(func(l lease.Lease) { rejected = append(rejected, l.LeaseID) }))
			Expect(mustAdd(m, newLease("l1", "host-2", 4, 4096, 1000, 10000))).To(BeTrue())

			m.SetDisabledUntil(time.Now().Add(time.Hour))
			Expect(rejected).To(ContainElement("l1"))
			Expect(m.UpdateTotalLeaseView().CPUCores).To(Equal(0.0))

			ok, err := m.AddLease(newLease("l2", "host-2", 4, 4096, 1000, 10000))
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			m.Enable()
			ok, err = m.AddLease(newLease("l3", "host-2", 4, 4096, 1000, 10000))
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})
	})

	Describe("ExpireLimitedLeases", func() {
		It("only rejects as many leases as the limiter allows", func() {
			old := time.Now().Add(-time.Hour)
			m = placement.NewMachineState("host-3", leaseIdx, vmIdx, tracker,
				placement.WithLeaseOfferExpiry(time.Minute))
			l1 := newLease("l1", "host-3", 1, 1024, 100, 1000)
			l1.OfferedAt = old
			l2 := newLease("l2", "host-3", 1, 1024, 100, 1000)
			l2.OfferedAt = old
			Expect(mustAdd(m, l1)).To(BeTrue())
			Expect(mustAdd(m, l2)).To(BeTrue())

			limiter := ratelimit.NewRejectLimiter(0, 1)
			n := m.ExpireLimitedLeases(limiter)
			Expect(n).To(Equal(1))
		})
	})

	Describe("MaxResources", func() {
		It("sums previously-assigned demand with current lease totals, counting ports exclusively", func() {
			Expect(mustAdd(m, newLease("l1", "host-1", 4, 4096, 1000, 10000, ports.Range{Begin: 100, End: 103}))).To(BeTrue())
			req := &placement.TaskRequest{RequestID: "r1", TaskID: "t1", CPUCores: 1, MemoryMB: 512, Ports: 1}
			result := m.TryAssign(req, alwaysFit)
			Expect(m.Assign(result)).To(Succeed())
			harvested := m.ResetAndHarvestSuccessful()
			Expect(harvested).NotTo(BeNil())

			Expect(mustAdd(m, newLease("l2", "host-1", 2, 2048, 500, 5000, ports.Range{Begin: 200, End: 201}))).To(BeTrue())

			want := placement.ResourceVector{
				CPUCores:    1 + 2,    // prevAssigned t1 + current lease l2
				MemoryMB:    512 + 2048,
				NetworkMbps: 0 + 500,
				DiskMB:      0 + 5000,
				Ports:       1 + (201 - 200), // prevAssigned t1's 1 port + l2's range, counted exclusively
			}
			got := m.MaxResources()
			if diff := cmp.Diff(want, got); diff != "" {
				Fail("MaxResources mismatch (-want +got):\n" + diff)
			}
		})
	})

	Describe("CompareTo", func() {
		It("orders machines holding leases before empty ones, then by descending CPU", func() {
			a := placement.NewMachineState("a", leaseIdx, vmIdx, tracker)
			b := placement.NewMachineState("b", leaseIdx, vmIdx, tracker)
			Expect(mustAdd(a, newLease("la", "a", 8, 8192, 1000, 10000))).To(BeTrue())
			Expect(a.CompareTo(b)).To(Equal(-1))
			Expect(b.CompareTo(a)).To(Equal(1))
		})
	})
})

func mustAdd(m *placement.MachineState, l lease.Lease) bool {
	ok, err := m.AddLease(l)
	Expect(err).NotTo(HaveOccurred())
	return ok
}
